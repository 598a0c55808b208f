// Package objectstore uploads migrated photos to S3-compatible storage.
package objectstore

import (
	"bytes"
	"context"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
)

// Store persists an object and returns its permanent public URL.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Opts configures a MinioStore.
type Opts func(c *minioConfig)

type minioConfig struct {
	endpoint        string
	bucket          string
	region          string
	accessKey       string
	secretAccessKey string
	publicBaseURL   string
	useSSL          bool
}

func newConfig(opts ...Opts) *minioConfig {
	cfg := &minioConfig{region: "us-east-1"}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// MinioStore implements Store with minio-go.
type MinioStore struct {
	cfg    *minioConfig
	client *minio.Client
}

// NewMinioStore builds a store from the given options.
func NewMinioStore(opts ...Opts) (*MinioStore, error) {
	cfg := newConfig(opts...)
	if cfg.endpoint == "" {
		return nil, eris.New("objectstore: endpoint is required")
	}
	if cfg.bucket == "" {
		return nil, eris.New("objectstore: bucket is required")
	}

	client, err := minio.New(cfg.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.accessKey, cfg.secretAccessKey, ""),
		Secure: cfg.useSSL,
		Region: cfg.region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "objectstore: create client")
	}

	return &MinioStore{cfg: cfg, client: client}, nil
}

// Put uploads data under key and returns the object's public URL.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.cfg.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", eris.Wrapf(err, "objectstore: put %s", key)
	}
	return s.URL(key), nil
}

// URL returns the public URL for key.
func (s *MinioStore) URL(key string) string {
	if s.cfg.publicBaseURL != "" {
		return strings.TrimRight(s.cfg.publicBaseURL, "/") + "/" + key
	}
	scheme := "http"
	if s.cfg.useSSL {
		scheme = "https"
	}
	return scheme + "://" + s.cfg.endpoint + "/" + s.cfg.bucket + "/" + key
}

// WithEndpoint sets the host:port of the storage service.
func WithEndpoint(endpoint string) Opts {
	return func(c *minioConfig) {
		c.endpoint = endpoint
	}
}

// WithBucket sets the target bucket.
func WithBucket(bucket string) Opts {
	return func(c *minioConfig) {
		c.bucket = bucket
	}
}

// WithRegion sets the bucket region.
func WithRegion(region string) Opts {
	return func(c *minioConfig) {
		if region != "" {
			c.region = region
		}
	}
}

// WithAccessKey sets the access key ID.
func WithAccessKey(accessKey string) Opts {
	return func(c *minioConfig) {
		c.accessKey = accessKey
	}
}

// WithSecretKey sets the secret access key.
func WithSecretKey(secretKey string) Opts {
	return func(c *minioConfig) {
		c.secretAccessKey = secretKey
	}
}

// WithPublicBaseURL sets the CDN or public prefix used to build object URLs.
func WithPublicBaseURL(u string) Opts {
	return func(c *minioConfig) {
		c.publicBaseURL = u
	}
}

// WithSSL toggles https.
func WithSSL(useSSL bool) Opts {
	return func(c *minioConfig) {
		c.useSSL = useSSL
	}
}
