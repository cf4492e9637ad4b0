package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventpilot/internal/analytics"
	"eventpilot/internal/analytics/analytics_api"
	"eventpilot/internal/attendance"
	attendance_db "eventpilot/internal/attendance/db"
	"eventpilot/internal/attendance/attendance_api"
	"eventpilot/internal/auth"
	"eventpilot/internal/config"
	"eventpilot/internal/database"
	"eventpilot/internal/database/migrations"
	"eventpilot/internal/facesearch"
	"eventpilot/internal/facesearch/facesearch_api"
	"eventpilot/internal/gallery"
	gallery_db "eventpilot/internal/gallery/db"
	"eventpilot/internal/gallery/gallery_api"
	"eventpilot/internal/kafka"
	"eventpilot/internal/logger"
	"eventpilot/internal/notify"
	"eventpilot/internal/pdf"
	"eventpilot/internal/qr"
	"eventpilot/internal/registration"
	registration_db "eventpilot/internal/registration/db"
	"eventpilot/internal/registration/registration_api"
	"eventpilot/internal/session"
	session_db "eventpilot/internal/session/db"
	"eventpilot/internal/session/session_api"
	"eventpilot/internal/sponsor"
	sponsor_db "eventpilot/internal/sponsor/db"
	"eventpilot/internal/sponsor/sponsor_api"
	"eventpilot/internal/sse"
	"eventpilot/internal/storage"
	"eventpilot/internal/valet"
	valet_db "eventpilot/internal/valet/db"
	valetredis "eventpilot/internal/valet/redis"
	"eventpilot/internal/valet/valet_api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"
)

const (
	hubBuffer       = 32
	shutdownTimeout = 5 * time.Second
)

func runMigrations(cfg config.DatabaseConfig, log *logger.Logger) error {
	// the migrate postgres driver closes the handle it is given
	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	runner := migrations.NewRunner(sqldb, log)
	defer runner.Close()
	return runner.RunMigrations()
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewWithWriter(os.Stderr, "info").Fatal("CONFIG", fmt.Sprintf("Failed to load configuration: %v", err))
	}

	log := logger.NewLogger(cfg.Logger)
	defer log.Close()

	log.Info("APP", "Starting EventPilot API initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.ConnectPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := runMigrations(cfg.Database, log); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer redisClient.Close()

	var events kafka.Publisher = &kafka.LogPublisher{Logger: log}
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		events = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		log.Warn("KAFKA", "Kafka disabled, domain events are only logged")
	}

	codec, err := qr.NewCodec(cfg.QR.SecretKey)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Invalid QR secret: %v", err))
	}
	notifier := notify.NewNotifier(notify.NewMailer(cfg.Email, log), log, cfg.Server.BaseURL)
	cards := pdf.NewRegistrationCardGenerator(cfg.PDF.FontPath)
	hub := sse.NewHub(hubBuffer)

	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}
	valetTokens := auth.NewValetTokens(cfg.Auth.ValetTokenSecret, cfg.Auth.ValetTokenTTL, auth.NewRedisRevocationStore(redisClient))

	var comparer facesearch.Comparer
	rekognition, err := facesearch.NewRekognitionComparer(ctx, cfg.AWS)
	if err != nil {
		log.Fatal("AWS", fmt.Sprintf("Failed to set up Rekognition: %v", err))
	}
	if rekognition != nil {
		comparer = rekognition
	} else {
		log.Warn("AWS", "Rekognition disabled, face search will report not configured")
	}

	var objects gallery.ObjectStore
	s3Store, err := storage.NewS3Store(ctx, cfg.AWS)
	if err != nil {
		log.Fatal("AWS", fmt.Sprintf("Failed to set up S3: %v", err))
	}
	if s3Store != nil {
		objects = s3Store
	} else {
		log.Warn("AWS", "S3_BUCKET not set, gallery uploads are disabled")
	}

	sessionService := session.NewService(&session_db.DB{Bun: bunDB}, notifier, log)
	registrationService := registration.NewService(&registration_db.DB{Bun: bunDB}, codec, cards, notifier, events, cfg.Kafka.Topics, log)
	attendanceService := attendance.NewService(&attendance_db.DB{Bun: bunDB}, codec, events, cfg.Kafka.Topics.AttendanceCheckedIn, log)
	sponsorService := sponsor.NewService(&sponsor_db.DB{Bun: bunDB}, log)

	// with Kafka on, the stream is fed by the relay consumer instead
	valetHub := hub
	if cfg.Kafka.Enabled {
		valetHub = nil
	}
	valetStore := &valet_db.DB{Bun: bunDB}
	valetService := valet.NewService(valetStore, valetredis.NewParkLock(redisClient, cfg.Valet.ParkLockTTL), codec, notifier,
		events, cfg.Kafka.Topics.ValetStatusChanged, valetHub, cfg.Valet, log)
	employees := valet.NewEmployees(valetStore, valetTokens, log)

	faceService := facesearch.NewService(comparer, cfg.FaceSearch, log)
	galleryService := gallery.NewService(&gallery_db.DB{Bun: bunDB}, objects, log)
	analyticsService := analytics.NewService(analytics.NewDB(bunDB))

	sessionHandler := session_api.NewHandler(sessionService, log)
	registrationHandler := registration_api.NewHandler(registrationService, log)
	attendanceHandler := attendance_api.NewHandler(attendanceService, log)
	sponsorHandler := sponsor_api.NewHandler(sponsorService, log)
	valetHandler := valet_api.NewHandler(valetService, employees, hub, log)
	faceHandler := facesearch_api.NewHandler(faceService, log)
	galleryHandler := gallery_api.NewHandler(galleryService, log)
	analyticsHandler := analytics_api.NewHandler(analyticsService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.ValetTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		// --- Public Routes ---
		sessionHandler.PublicRoutes(r)
		registrationHandler.PublicRoutes(r)
		sponsorHandler.PublicRoutes(r)
		valetHandler.PublicRoutes(r)
		log.Info("ROUTER", "Public routes registered under /api")

		// --- Valet Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.ValetMiddleware(valetTokens, log))
			valetHandler.ValetRoutes(r)
		})
		log.Info("ROUTER", "Valet routes registered under /api/valet")

		// --- Signed-in User Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier, log))
			attendanceHandler.UserRoutes(r)
			valetHandler.UserRoutes(r)
		})

		// --- Admin Routes ---
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Middleware(verifier, log))
			r.Use(auth.RequireAdmin(log))
			sessionHandler.AdminRoutes(r)
			registrationHandler.AdminRoutes(r)
			attendanceHandler.AdminRoutes(r)
			sponsorHandler.AdminRoutes(r)
			valetHandler.AdminRoutes(r)
			faceHandler.AdminRoutes(r)
			galleryHandler.AdminRoutes(r)
			analyticsHandler.AdminRoutes(r)
		})
		log.Info("ROUTER", "Admin routes registered under /api/admin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	// Shutdown waits for handlers, and live streams only end when their hub does
	server.RegisterOnShutdown(hub.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP", fmt.Sprintf("EventPilot API running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if cfg.Kafka.Enabled {
		hostname, _ := os.Hostname()
		// one group per instance so every node sees every valet event
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ValetStatusChanged, cfg.Kafka.GroupID+"-valet-"+hostname, log)
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Start(gctx, valet.StreamRelay(hub))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("HTTP", "EventPilot API shutdown complete")
		return nil
	})

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	if err := g.Wait(); err != nil {
		log.Error("APP", err.Error())
	}
}
