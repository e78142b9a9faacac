package storage

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/ManuelReschke/Amparo/internal/pkg/env"
)

// Config holds object storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	PublicURL       string // Base URL objects are served from
	Enabled         bool
	LocalDir        string // Used when S3 is disabled
}

// LoadConfig loads storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		PublicURL:       strings.TrimRight(env.GetEnv("S3_PUBLIC_URL", ""), "/"),
		Enabled:         env.GetEnvBool("S3_ENABLED", false),
		LocalDir:        env.GetEnv("UPLOADS_DIR", "./uploads"),
	}

	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when S3 is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when S3 is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when S3 is enabled")
		}
	}

	return config, nil
}

// ObjectURL is the public URL of key.
func (c *Config) ObjectURL(key string) string {
	if c.PublicURL != "" {
		return c.PublicURL + "/" + key
	}
	if c.EndpointURL != "" {
		return strings.TrimRight(c.EndpointURL, "/") + "/" + c.BucketName + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.BucketName, c.Region, key)
}

// ObjectKey generates a standardized object key for an image of the given kind.
// Format: kind/YYYY/MM/id.ext
func ObjectKey(kind Kind, id, ext string, at time.Time) string {
	return path.Join(string(kind), fmt.Sprintf("%04d", at.Year()), fmt.Sprintf("%02d", int(at.Month())), id+ext)
}
