package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tdeslauriers/portability/internal/util"
)

// New creates a new instance of the ObjectStorage interface backed by MinIO or any S3 compatible store.
func New(config Config, tls *tls.Config) (ObjectStorage, error) {

	// needed to add CA of minio endpoint cert
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: tls,
	}

	minioClient, err := minio.New(config.Url, &minio.Options{
		Creds:     credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure:    config.Secure,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client for %s: %w", config.Url, err)
	}

	return &minioStorage{
		client: minioClient,
		bucket: config.Bucket,

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentStorage)).
			With(slog.String(util.PackageKey, util.PackageStorage)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}, nil
}

var _ ObjectStorage = (*minioStorage)(nil)

// minioStorage is a concrete implementation of the ObjectStorage interface for MinIO.
type minioStorage struct {
	client *minio.Client
	bucket string

	logger *slog.Logger
}

// EnsureBucket is the concrete implementation of the ObjectStorage interface method
// which creates the bucket on first start.
func (m *minioStorage) EnsureBucket(ctx context.Context) error {

	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket '%s' exists: %w", m.bucket, err)
	}

	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		// another replica may have won the race
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("failed to create bucket '%s': %w", m.bucket, err)
	}

	m.logger.Info(fmt.Sprintf("created object storage bucket '%s'", m.bucket))

	return nil
}

// PutObject is the concrete implementation of the ObjectStorage interface method
// which uploads an object to the MinIO storage service.
func (m *minioStorage) PutObject(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {

	opts := minio.PutObjectOptions{
		ContentType: contentType,
	}

	_, err := m.client.PutObject(ctx, m.bucket, key, data, size, opts)
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, m.bucket, err)
	}

	return nil
}
