package adapter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillvault/syncengine/internal/config"
	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/internal/store"
)

func newFileStore(t *testing.T, srv *httptest.Server) (store.FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	server := config.Server{Host: srv.URL, RequestTimeout: 5 * time.Second}
	storage := config.Storage{BlobDir: dir}
	tokens := staticTokens{token: signedToken(t, true, time.Now().Add(time.Hour))}
	return NewFileStore(server, storage, tokens, logger.Nop()), dir
}

func writeBlob(t *testing.T, dir, hash string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, hash), data, 0o600))
}

func TestFileStoreUpload_SendsBlob(t *testing.T) {
	var gotBody []byte
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	files, dir := newFileStore(t, srv)
	writeBlob(t, dir, "abc123", []byte("binary payload"))

	ok, err := files.Upload(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/api/v1/attachments/abc123", gotPath)
	assert.Contains(t, gotAuth, "Bearer ")
	assert.Equal(t, []byte("binary payload"), gotBody)
}

func TestFileStoreUpload_MissingBlobIsNotAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a missing blob")
	}))
	defer srv.Close()

	files, _ := newFileStore(t, srv)

	ok, err := files.Upload(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreUpload_ServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	files, dir := newFileStore(t, srv)
	writeBlob(t, dir, "abc123", []byte("x"))

	ok, err := files.Upload(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFileStoreUpload_RejectionIsNotAccepted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	files, dir := newFileStore(t, srv)
	writeBlob(t, dir, "abc123", []byte("x"))

	ok, err := files.Upload(context.Background(), "abc123")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load(), "a refusal is final")
}

func TestFileStoreRemove(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	files, dir := newFileStore(t, srv)
	writeBlob(t, dir, "abc123", []byte("x"))

	ok, err := files.Remove(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, "abc123"))

	ok, err = files.Remove(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, ok, "an absent blob counts as removed")
}
