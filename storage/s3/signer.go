// Package s3store mints presigned download URLs from S3-compatible object
// storage. Presigning is a local signature computation; no round trip to the
// storage service happens per link.
package s3store

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config carries the object storage connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// Signer issues time-bounded GET URLs for objects in a single bucket.
type Signer struct {
	client *minio.Client
	bucket string
}

func NewSigner(cfg Config) (*Signer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3store: bucket required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3store: new client: %w", err)
	}
	return &Signer{client: client, bucket: cfg.Bucket}, nil
}

// SignedGetURL returns a presigned GET URL for the object, valid for expiry.
// The attachment filename is carried in the response-content-disposition
// override so browsers save the file under its display name.
func (s *Signer) SignedGetURL(ctx context.Context, objectKey, filename string, expiry time.Duration) (string, error) {
	params := url.Values{}
	if filename != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, expiry, params)
	if err != nil {
		return "", fmt.Errorf("s3store: presign %s: %w", objectKey, err)
	}
	return u.String(), nil
}
