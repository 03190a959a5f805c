package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/yourorg/rendercore/internal/logging"
)

// FilesystemStore is a local-disk Store used in development and tests.
// Uploaded objects are copied under Root/key; PublicBaseURL is prepended
// to form the returned URL, mirroring the CDN-base-URL convention of
// S3Store so callers don't need to special-case the backend.
type FilesystemStore struct {
	Root          string
	PublicBaseURL string
	httpClient    *http.Client
	limiter       *rate.Limiter
}

// NewFilesystemStore creates a FilesystemStore rooted at dir.
func NewFilesystemStore(dir, publicBaseURL string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", dir, err)
	}
	return &FilesystemStore{
		Root:          dir,
		PublicBaseURL: publicBaseURL,
		httpClient:    defaultHTTPClient(),
		limiter:       rate.NewLimiter(rate.Limit(16), 1),
	}, nil
}

func (s *FilesystemStore) Download(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	return httpDownload(ctx, s.httpClient, s.limiter, url, maxBytes)
}

func (s *FilesystemStore) Upload(ctx context.Context, localPath, key, contentType, cacheControl string, overwrite bool) (string, error) {
	dest := filepath.Join(s.Root, filepath.FromSlash(key))
	if !overwrite {
		if _, err := os.Stat(dest); err == nil {
			return "", fmt.Errorf("upload %s: object already exists and overwrite=false", key)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir for %s: %w", key, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("copy %s to %s: %w", localPath, dest, err)
	}

	return fmt.Sprintf("%s/%s", s.PublicBaseURL, key), nil
}

func (s *FilesystemStore) PurgeURLs(ctx context.Context, urls ...string) {
	for _, u := range urls {
		logging.InfoWithComponent(logging.ComponentBlob, "CDN purge is a no-op for the filesystem store", "url", u)
	}
}
