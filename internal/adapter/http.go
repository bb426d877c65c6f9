// Package adapter implements the Transport seam to the sync server: batch
// uploads and round-completion acks over HTTP, remote item streaming and
// push notifications over a websocket.
package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/quillvault/syncengine/internal/config"
	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/models"
)

// serverTransport is the production [Transport]: resty for the HTTP calls,
// gorilla/websocket for the realtime stream.
type serverTransport struct {
	cfg    config.Server
	http   *resty.Client
	tokens TokenProvider
	log    *logger.Logger

	mu        sync.Mutex // guards conn and the fetch channel pair
	writeMu   sync.Mutex // serializes websocket writes
	conn      *websocket.Conn
	fetchCh   chan wsFrame
	fetchDone chan struct{}

	events    chan models.RemoteEvent
	closeOnce sync.Once
}

// ackResponse is the server's reply to batch and completion calls.
type ackResponse struct {
	LastSynced int64 `json:"lastSynced"`
}

// NewServerTransport builds a [Transport] against cfg.Host. The websocket
// endpoint is derived from cfg when WSHost is empty.
func NewServerTransport(cfg config.Server, tokens TokenProvider, log *logger.Logger) Transport {
	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Host, "/")).
		SetTimeout(cfg.RequestTimeout)

	return &serverTransport{
		cfg:    cfg,
		http:   cli,
		tokens: tokens,
		log:    log.Scope("transport"),
		events: make(chan models.RemoteEvent, 8),
	}
}

// SendBatch implements [Transport]. Network failures and 5xx responses are
// retried with fibonacci backoff; 4xx responses map to sentinel errors and
// are not retried.
func (t *serverTransport) SendBatch(ctx context.Context, batch models.Batch) (int64, error) {
	var confirmed int64
	err := t.withRetry(ctx, func(ctx context.Context) error {
		token, err := t.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("get access token: %w", err)
		}

		ack := &ackResponse{}
		resp, err := t.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(batch).
			SetResult(ack).
			Post("/api/v1/sync/batch")
		if err != nil {
			return retry.RetryableError(fmt.Errorf("send batch: %w", err))
		}
		if err = mapHTTPError(resp); err != nil {
			return err
		}

		confirmed = ack.LastSynced
		return nil
	})
	if err != nil {
		return 0, err
	}

	t.log.Debug().Int("items", len(batch.Items)).Int64("lastSynced", confirmed).Msg("batch acknowledged")
	return confirmed, nil
}

// NotifySyncCompleted implements [Transport].
func (t *serverTransport) NotifySyncCompleted(ctx context.Context, lastSynced int64) (int64, error) {
	var confirmed int64
	err := t.withRetry(ctx, func(ctx context.Context) error {
		token, err := t.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("get access token: %w", err)
		}

		ack := &ackResponse{}
		resp, err := t.http.R().
			SetContext(ctx).
			SetAuthToken(token).
			SetBody(ackResponse{LastSynced: lastSynced}).
			SetResult(ack).
			Post("/api/v1/sync/completed")
		if err != nil {
			return retry.RetryableError(fmt.Errorf("notify completed: %w", err))
		}
		if err = mapHTTPError(resp); err != nil {
			return err
		}

		confirmed = ack.LastSynced
		return nil
	})
	if err != nil {
		return 0, err
	}
	return confirmed, nil
}

// withRetry runs fn with the transport's backoff policy: fibonacci starting
// at 500ms, at most 3 retries.
func (t *serverTransport) withRetry(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, fn)
}

// mapHTTPError converts a non-success response into a sentinel error.
// Server-side failures are marked retryable.
func mapHTTPError(resp *resty.Response) error {
	switch {
	case resp.StatusCode() < 300:
		return nil
	case resp.StatusCode() == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode() == http.StatusPaymentRequired, resp.StatusCode() == http.StatusForbidden:
		return ErrNotEntitled
	case resp.StatusCode() >= 500:
		return retry.RetryableError(fmt.Errorf("%w: status %d", ErrBatchRejected, resp.StatusCode()))
	default:
		return fmt.Errorf("%w: status %d", ErrBatchRejected, resp.StatusCode())
	}
}
