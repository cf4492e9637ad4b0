// Package storage signs direct browser uploads to S3 (or an S3-compatible
// endpoint) and builds public URLs for stored objects.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eventpilot/internal/cloud"
	"eventpilot/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	UploadURLExpiry   = 15 * time.Minute
	DownloadURLExpiry = time.Hour
)

type S3Store struct {
	Client        *s3.Client
	Presigner     *s3.PresignClient
	Bucket        string
	CloudFrontURL string
}

// NewS3Store returns nil when no bucket is configured.
func NewS3Store(ctx context.Context, cfg config.AWSConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, nil
	}
	awsCfg, err := cloud.LoadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			// S3-compatible services (MinIO, R2) need path-style addressing
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreFromClient(client, cfg.S3Bucket, cfg.CloudFrontURL), nil
}

func NewS3StoreFromClient(client *s3.Client, bucket, cloudFrontURL string) *S3Store {
	return &S3Store{
		Client:        client,
		Presigner:     s3.NewPresignClient(client),
		Bucket:        bucket,
		CloudFrontURL: strings.TrimRight(cloudFrontURL, "/"),
	}
}

// PresignPut signs a PUT of exactly size bytes of contentType to key.
func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, size int64) (string, error) {
	req, err := s.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}, s3.WithPresignExpires(UploadURLExpiry))
	if err != nil {
		return "", fmt.Errorf("presign put %s: %w", key, err)
	}
	return req.URL, nil
}

// URL is the CloudFront URL of key when a distribution is configured,
// otherwise a presigned GET.
func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	if s.CloudFrontURL != "" {
		return s.CloudFrontURL + "/" + key, nil
	}
	req, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(DownloadURLExpiry))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
