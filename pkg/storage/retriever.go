package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"slices"
	"time"

	"github.com/mholt/archives"
	"github.com/tdeslauriers/portability/internal/util"
	"github.com/tdeslauriers/portability/pkg/connect"
)

// NewRetriever returns a retriever that downloads with client into tmpDir
// (the os temp dir if empty) and uploads to store.
func NewRetriever(client connect.TlsClient, store ObjectStorage, tmpDir string) Retriever {
	return &retriever{
		client: client,
		store:  store,
		tmpDir: tmpDir,
		now:    time.Now,

		logger: slog.Default().
			With(slog.String(util.ComponentKey, util.ComponentRetriever)).
			With(slog.String(util.PackageKey, util.PackageStorage)).
			With(slog.String(util.ServiceKey, util.ServicePortability)),
	}
}

var _ Retriever = (*retriever)(nil)

type retriever struct {
	client connect.TlsClient
	store  ObjectStorage
	tmpDir string
	now    func() time.Time

	logger *slog.Logger
}

func (r *retriever) FetchAndStore(ctx context.Context, userId, resource, url string) error {

	log := r.logger.With(slog.String("user_id", userId), slog.String("resource", resource))

	archivePath, err := r.download(ctx, url)
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)

	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return fmt.Errorf("failed to open %s archive: %w", resource, err)
	}
	if closer, ok := fsys.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	// one timestamp per archive so every file of a retrieval shares it
	at := r.now()
	uploaded := 0

	err = fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := r.upload(ctx, fsys, name, ObjectKey(at, userId, resource, name)); err != nil {
			return err
		}
		uploaded++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store %s archive contents: %w", resource, err)
	}

	log.Info(fmt.Sprintf("stored %d file(s) from archive", uploaded))

	return nil
}

// download writes the archive at url to a temp file and returns its path.
func (r *retriever) download(ctx context.Context, url string) (string, error) {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build archive download request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &connect.ErrorHttp{StatusCode: resp.StatusCode, Message: "archive download failed"}
	}

	if err := checkZip(resp.Header.Get("Content-Type")); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(r.tmpDir, "portability-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for archive: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write archive to temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close archive temp file: %w", err)
	}

	return tmp.Name(), nil
}

// checkZip rejects anything not served as a zip.
func checkZip(contentType string) error {

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("archive has unparsable content type %q: %w", contentType, err)
	}

	if !slices.Contains(ZipMimeTypes, mediaType) {
		return fmt.Errorf("archive content type %q is not a zip", mediaType)
	}

	return nil
}

func (r *retriever) upload(ctx context.Context, fsys fs.FS, name, key string) error {

	f, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open %s in archive: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s in archive: %w", name, err)
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return r.store.PutObject(ctx, key, f, info.Size(), contentType)
}
