package blobstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFilesystemStoreUploadContractsAndNoOverwrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFilesystemStore(filepath.Join(dir, "store"), "https://cdn.example")
	require.NoError(t, err)

	src := filepath.Join(dir, "final.mp4")
	require.NoError(t, os.WriteFile(src, []byte("not really an mp4"), 0o644))

	url, err := UploadVideo(context.Background(), store, src, "abc12345678901234567")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/renders/abc12345678901234567.mp4", url)

	_, err = store.Upload(context.Background(), src, "renders/abc12345678901234567.mp4", "video/mp4", "", false)
	require.Error(t, err, "uploading to an existing key without overwrite=true must fail")

	_, err = store.Upload(context.Background(), src, "renders/abc12345678901234567.mp4", "video/mp4", "", true)
	require.NoError(t, err, "uploading with overwrite=true must succeed")
}

func TestDownloadEnforcesSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 6<<20))) // 6 MB, over the 5 MB CSV cap
	}))
	defer srv.Close()

	dir := t.TempDir()
	store, err := NewFilesystemStore(dir, "https://cdn.example")
	require.NoError(t, err)

	_, err = DownloadCSV(context.Background(), store, srv.URL)
	require.Error(t, err, "a CSV over 5MB must be rejected")
}

func TestThumbnailUploadUsesContractedKey(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFilesystemStore(filepath.Join(dir, "store"), "https://cdn.example")
	require.NoError(t, err)

	src := filepath.Join(dir, "thumb.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg"), 0o644))

	url, err := UploadThumbnail(context.Background(), store, src, "xyz98765432109876543")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/renders/xyz98765432109876543.jpg", url)
}
