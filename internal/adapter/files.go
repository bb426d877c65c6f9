package adapter

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/quillvault/syncengine/internal/config"
	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/internal/store"
)

// fileStore uploads attachment binaries from a local blob directory and
// releases superseded blobs from it.
type fileStore struct {
	http   *resty.Client
	tokens TokenProvider
	dir    string
	log    *logger.Logger
}

// NewFileStore builds a [store.FileStore] over the blob directory in storage,
// uploading to the attachment endpoint on server.Host.
func NewFileStore(server config.Server, storage config.Storage, tokens TokenProvider, log *logger.Logger) store.FileStore {
	cli := resty.New().
		SetBaseURL(strings.TrimRight(server.Host, "/")).
		SetTimeout(server.RequestTimeout)

	return &fileStore{
		http:   cli,
		tokens: tokens,
		dir:    storage.BlobDir,
		log:    log.Scope("files"),
	}
}

// Upload implements [store.FileStore]. A missing local blob is reported as
// not accepted rather than an error; the caller records the failure on the
// attachment and retries on a later round. Server-side failures are retried
// with backoff before giving up.
func (f *fileStore) Upload(ctx context.Context, hash string) (bool, error) {
	path := filepath.Join(f.dir, hash)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			f.log.Warn().Str("hash", hash).Msg("attachment blob missing locally")
			return false, nil
		}
		return false, fmt.Errorf("stat blob %s: %w", hash, err)
	}

	accepted := false
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		token, err := f.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("get access token: %w", err)
		}

		blob, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open blob %s: %w", hash, err)
		}
		defer blob.Close()

		resp, err := f.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetHeader("Content-Type", "application/octet-stream").
			SetBody(blob).
			Put("/api/v1/attachments/" + hash)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("upload blob %s: %w", hash, err))
		}

		switch {
		case resp.StatusCode() < 300:
			accepted = true
			return nil
		case resp.StatusCode() == http.StatusUnauthorized:
			return ErrUnauthorized
		case resp.StatusCode() >= 500:
			return retry.RetryableError(fmt.Errorf("upload blob %s: status %d", hash, resp.StatusCode()))
		default:
			// the server refused this file; not an error for the round
			f.log.Warn().Str("hash", hash).Int("status", resp.StatusCode()).Msg("attachment rejected by server")
			return nil
		}
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// Remove implements [store.FileStore]. An already-absent blob counts as
// removed.
func (f *fileStore) Remove(_ context.Context, hash string) (bool, error) {
	err := os.Remove(filepath.Join(f.dir, hash))
	if err == nil || os.IsNotExist(err) {
		return true, nil
	}
	return false, fmt.Errorf("remove blob %s: %w", hash, err)
}
