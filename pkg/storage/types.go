package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Config holds the configuration for connecting to an object storage service.
type Config struct {
	Url       string
	Bucket    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// ObjectStorage is the bucket surface the retriever writes archive contents to.
// It can be implemented by various object storage clients, such as MinIO, AWS S3, etc.
type ObjectStorage interface {

	// EnsureBucket creates the configured bucket if it does not exist.
	EnsureBucket(ctx context.Context) error

	// PutObject uploads size bytes from data under key.
	PutObject(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
}

// Retriever downloads a finished archive and stores its contents.
type Retriever interface {

	// FetchAndStore downloads the zip at url and uploads every file in it, keyed by
	// user, resource and retrieval time.  Non-zip content is rejected.
	FetchAndStore(ctx context.Context, userId, resource, url string) error
}

// ZipMimeTypes are the content types accepted as a zip archive download.
var ZipMimeTypes = []string{
	"application/zip",
	"application/x-zip",
	"application/x-zip-compressed",
	"multipart/x-zip",
}

// ObjectKey names an extracted archive file: <unix-ts>_<user>_<resource>_<name>.
// Directory separators in name are flattened so every file in an archive gets a distinct key.
func ObjectKey(at time.Time, userId, resource, name string) string {
	flat := strings.ReplaceAll(strings.Trim(name, "/"), "/", "_")
	return fmt.Sprintf("%d_%s_%s_%s", at.Unix(), userId, resource, flat)
}
