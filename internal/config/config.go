package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Email      EmailConfig
	Auth       AuthConfig
	AWS        AWSConfig
	FaceSearch FaceSearchConfig
	QR         QRConfig
	PDF        PDFConfig
	Logger     LoggerConfig
	Valet      ValetConfig
}

type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:":8080"`
	BaseURL      string        `env:"BASE_URL" envDefault:"http://localhost:3000"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

type DatabaseConfig struct {
	DSN          string        `env:"DATABASE_DSN"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	MaxLifetime  time.Duration `env:"DB_MAX_LIFETIME" envDefault:"5m"`
	MaxRetries   int           `env:"DB_CONNECT_RETRIES" envDefault:"5"`
	RetryDelay   time.Duration `env:"DB_CONNECT_RETRY_DELAY" envDefault:"2s"`
	AutoMigrate  bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	GroupID string   `env:"KAFKA_GROUP_ID" envDefault:"eventpilot"`
	Enabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Topics  TopicConfig
}

type TopicConfig struct {
	RegistrationCreated  string `env:"KAFKA_TOPIC_REGISTRATION_CREATED" envDefault:"eventpilot.registration.created"`
	RegistrationApproved string `env:"KAFKA_TOPIC_REGISTRATION_APPROVED" envDefault:"eventpilot.registration.approved"`
	AttendanceCheckedIn  string `env:"KAFKA_TOPIC_ATTENDANCE" envDefault:"eventpilot.attendance.checked_in"`
	ValetStatusChanged   string `env:"KAFKA_TOPIC_VALET_STATUS" envDefault:"eventpilot.valet.status_changed"`
}

// All returns every topic the service publishes to.
func (t TopicConfig) All() []string {
	return []string{t.RegistrationCreated, t.RegistrationApproved, t.AttendanceCheckedIn, t.ValetStatusChanged}
}

type EmailConfig struct {
	Enabled      bool   `env:"EMAIL_ENABLED" envDefault:"false"`
	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	From         string `env:"EMAIL_FROM" envDefault:"EventPilot <noreply@eventpilot.sa>"`
}

type AuthConfig struct {
	OIDCIssuer       string        `env:"OIDC_ISSUER"`
	OIDCClientID     string        `env:"OIDC_CLIENT_ID"`
	RolesClaim       string        `env:"OIDC_ROLES_CLAIM" envDefault:"roles"`
	ValetTokenSecret string        `env:"VALET_JWT_SECRET"`
	ValetTokenTTL    time.Duration `env:"VALET_JWT_TTL" envDefault:"24h"`
}

type AWSConfig struct {
	Region          string `env:"AWS_REGION" envDefault:"me-south-1"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	RekognitionOn   bool   `env:"AWS_REKOGNITION_ENABLED" envDefault:"false"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	CloudFrontURL   string `env:"CLOUDFRONT_URL"`
}

type FaceSearchConfig struct {
	ImagesDir    string  `env:"FACE_SEARCH_DIR" envDefault:"./public/images"`
	Threshold    float32 `env:"FACE_SEARCH_THRESHOLD" envDefault:"80"`
	MaxImageSize int64   `env:"FACE_SEARCH_MAX_IMAGE_SIZE" envDefault:"5242880"`
}

type QRConfig struct {
	SecretKey string `env:"QR_SECRET_KEY"`
}

type PDFConfig struct {
	FontPath string `env:"PDF_FONT_PATH" envDefault:"./fonts/DejaVuSans.ttf"`
}

type LoggerConfig struct {
	Level      string `env:"LOG_LEVEL" envDefault:"info"`
	File       string `env:"LOG_FILE" envDefault:"logs/eventpilot.log"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"14"`
}

type ValetConfig struct {
	DefaultRetrievalNotice int           `env:"VALET_DEFAULT_RETRIEVAL_NOTICE" envDefault:"5"`
	ParkLockTTL            time.Duration `env:"VALET_PARK_LOCK_TTL" envDefault:"10s"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the API server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if c.Auth.ValetTokenSecret == "" {
		errs = append(errs, errors.New("VALET_JWT_SECRET is required"))
	}
	if c.FaceSearch.MaxImageSize <= 0 {
		errs = append(errs, errors.New("FACE_SEARCH_MAX_IMAGE_SIZE must be positive"))
	}
	return errors.Join(errs...)
}
