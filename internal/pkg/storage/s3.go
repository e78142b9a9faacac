package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/Amparo/internal/pkg/env"
)

// S3Bucket stores objects in an S3 or S3-compatible bucket.
type S3Bucket struct {
	s3Client *s3.Client
	config   *Config
}

// NewS3Bucket creates the client and checks the bucket is reachable.
func NewS3Bucket(ctx context.Context, cfg *Config) (*S3Bucket, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("S3 storage is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	b := &S3Bucket{s3Client: s3Client, config: cfg}
	if err := b.testConnection(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[Storage] Successfully initialized S3 client for bucket: %s", cfg.BucketName)
	return b, nil
}

func (b *S3Bucket) testConnection(ctx context.Context) error {
	_, err := b.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.config.BucketName),
	})
	if err == nil {
		return nil
	}
	if b.config.EndpointURL == "" || !env.IsDev() {
		return fmt.Errorf("bucket %s not accessible: %w", b.config.BucketName, err)
	}

	// Local S3-compatible servers start without buckets.
	log.Warnf("[Storage] Bucket %s not found, attempting to create it", b.config.BucketName)
	input := &s3.CreateBucketInput{Bucket: aws.String(b.config.BucketName)}
	if b.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}
	if _, err := b.s3Client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", b.config.BucketName, err)
	}
	return nil
}

func (b *S3Bucket) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := b.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.config.BucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Infof("[Storage] uploaded s3://%s/%s (%d bytes)", b.config.BucketName, key, len(data))
	return b.config.ObjectURL(key), nil
}

func (b *S3Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

// KeyFromURL maps a public URL produced by Put back to its key.
func (b *S3Bucket) KeyFromURL(url string) (string, bool) {
	return trimBase(url, b.config.ObjectURL(""))
}
