// Package blobstore implements the Blob I/O contract: downloading
// facecam/CSV inputs, uploading finished artifacts to their
// stable public path, and a best-effort CDN purge.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourorg/rendercore/internal/logging"
)

const (
	maxFacecamBytes = 100 << 20 // 100 MB
	maxCSVBytes     = 5 << 20   // 5 MB
)

// Store is the upload/download surface the pipeline depends on. Two
// implementations are provided: FilesystemStore (local dev) and S3Store
// (production, aws-sdk-go-v2-backed).
type Store interface {
	// Download fetches a public or signed HTTPS URL into memory, capped at
	// maxBytes. It is used for facecam and CSV inputs.
	Download(ctx context.Context, url string, maxBytes int64) ([]byte, error)
	// Upload writes a local file to key (e.g. "renders/<public_id>.mp4")
	// with the given content type and cache-control, and returns the
	// object's stable public URL. With overwrite=false, FilesystemStore
	// refuses to replace an existing object and S3Store refuses the upload
	// outright — uploads never silently clobber without the caller opting in.
	Upload(ctx context.Context, localPath, key, contentType, cacheControl string, overwrite bool) (string, error)
	// PurgeURLs issues a best-effort CDN purge; failures are logged and
	// swallowed, never fatal.
	PurgeURLs(ctx context.Context, urls ...string)
}

// DownloadFacecam fetches a facecam video, enforcing the 100 MB cap.
func DownloadFacecam(ctx context.Context, s Store, url string) ([]byte, error) {
	return s.Download(ctx, url, maxFacecamBytes)
}

// DownloadCSV fetches a lead CSV, enforcing the 5 MB cap.
func DownloadCSV(ctx context.Context, s Store, url string) ([]byte, error) {
	return s.Download(ctx, url, maxCSVBytes)
}

// UploadVideo uploads a render's final video under the contracted path
// and content type.
func UploadVideo(ctx context.Context, s Store, localPath, publicID string) (string, error) {
	return s.Upload(ctx, localPath, fmt.Sprintf("renders/%s.mp4", publicID), "video/mp4", "public, max-age=3600", true)
}

// UploadThumbnail uploads a render's thumbnail under the contracted path
// and content type.
func UploadThumbnail(ctx context.Context, s Store, localPath, publicID string) (string, error) {
	return s.Upload(ctx, localPath, fmt.Sprintf("renders/%s.jpg", publicID), "image/jpeg", "public, max-age=3600", true)
}

// httpDownload performs the shared plain-HTTPS download path used by
// both backends, enforcing maxBytes via io.LimitReader plus a final size
// check (a server that lies about Content-Length must not be trusted).
func httpDownload(ctx context.Context, client *http.Client, limiter *rate.Limiter, url string, maxBytes int64) ([]byte, error) {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", url, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("fetch %s: exceeds %d byte limit", url, maxBytes)
	}
	return data, nil
}

// logPurgeFailure is the shared best-effort logging used by both
// backends' PurgeURLs.
func logPurgeFailure(url string, err error) {
	logging.WarnWithComponent(logging.ComponentBlob, "CDN purge failed, ignoring", "url", url, "error", err)
}

// defaultHTTPClient is shared by both backends for downloads.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
