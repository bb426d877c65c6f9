package adapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/quillvault/syncengine/models"
)

// wsFrame is the single message shape on the realtime channel in both
// directions; Event discriminates.
type wsFrame struct {
	Event      string               `json:"event"`
	Item       *models.TransferItem `json:"item,omitempty"`
	LastSynced int64                `json:"lastSynced,omitempty"`
	Since      int64                `json:"since,omitempty"`
}

const (
	// client → server
	eventFetch = "fetch"

	// server → client
	eventItem            = "item"
	eventFetchCompleted  = "fetchCompleted"
	eventRemoteCompleted = "remoteSyncCompleted"
)

// Connect implements [Transport]. An expired token fails fast before any
// network traffic; the dial itself is retried with backoff.
func (t *serverTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}

	token, err := t.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}
	claims, err := ParseClaims(token)
	if err != nil {
		return ErrUnauthorized
	}
	if claims.Expired(time.Now()) {
		return ErrUnauthorized
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{HandshakeTimeout: t.cfg.ConnectTimeout}

	var conn *websocket.Conn
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, resp, err := dialer.DialContext(ctx, t.wsURL(), header)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return ErrUnauthorized
			}
			return retry.RetryableError(fmt.Errorf("dial sync stream: %w", err))
		}
		conn = c
		return nil
	})
	if err != nil {
		return err
	}

	t.conn = conn
	go t.readPump(conn)

	t.log.Debug().Str("url", t.wsURL()).Msg("sync stream connected")
	return nil
}

// wsURL resolves the stream endpoint: explicit WSHost wins, otherwise the
// HTTP host with its scheme swapped.
func (t *serverTransport) wsURL() string {
	host := t.cfg.WSHost
	if host == "" {
		host = t.cfg.Host
		host = strings.Replace(host, "https://", "wss://", 1)
		host = strings.Replace(host, "http://", "ws://", 1)
	}
	return strings.TrimRight(host, "/") + "/api/v1/sync/stream"
}

// readPump routes incoming frames until the connection dies: fetch frames
// to the active fetch (if any), push notifications to the events channel.
func (t *serverTransport) readPump(conn *websocket.Conn) {
	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			t.teardown(conn)
			return
		}

		switch frame.Event {
		case eventItem, eventFetchCompleted:
			t.mu.Lock()
			ch, done := t.fetchCh, t.fetchDone
			t.mu.Unlock()
			if ch != nil {
				// done unblocks the pump if the fetch consumer bailed out
				// mid-stream (e.g. a merge error).
				select {
				case ch <- frame:
				case <-done:
				}
			}
		case eventRemoteCompleted:
			select {
			case t.events <- models.RemoteEvent{Kind: models.RemoteSyncCompleted, LastSynced: frame.LastSynced}:
			default:
				t.log.Warn().Msg("dropping remote sync event, consumer is behind")
			}
		default:
			t.log.Warn().Str("event", frame.Event).Msg("unknown stream frame")
		}
	}
}

// teardown clears the dead connection and unblocks any in-flight fetch.
func (t *serverTransport) teardown(conn *websocket.Conn) {
	conn.Close()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == conn {
		t.conn = nil
	}
	if t.fetchCh != nil {
		close(t.fetchCh)
		t.fetchCh, t.fetchDone = nil, nil
	}
}

// FetchItemsSince implements [Transport].
func (t *serverTransport) FetchItemsSince(ctx context.Context, since int64, onItem func(models.TransferItem) error) (models.FetchResult, error) {
	var res models.FetchResult

	if err := t.Connect(ctx); err != nil {
		return res, err
	}

	t.mu.Lock()
	if t.fetchCh != nil {
		t.mu.Unlock()
		return res, fmt.Errorf("fetch already in progress")
	}
	ch := make(chan wsFrame, 32)
	done := make(chan struct{})
	t.fetchCh, t.fetchDone = ch, done
	conn := t.conn
	t.mu.Unlock()

	defer func() {
		close(done)
		t.mu.Lock()
		if t.fetchCh == ch {
			t.fetchCh, t.fetchDone = nil, nil
		}
		t.mu.Unlock()
	}()

	if err := t.writeFrame(conn, wsFrame{Event: eventFetch, Since: since}); err != nil {
		return res, fmt.Errorf("request fetch: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case frame, ok := <-ch:
			if !ok {
				return res, ErrConnectionClosed
			}
			if frame.Event == eventFetchCompleted {
				res.LastSynced = frame.LastSynced
				return res, nil
			}
			if frame.Item == nil {
				continue
			}
			if err := onItem(*frame.Item); err != nil {
				return res, err
			}
			res.Count++
		}
	}
}

func (t *serverTransport) writeFrame(conn *websocket.Conn, frame wsFrame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

// Events implements [Transport].
func (t *serverTransport) Events() <-chan models.RemoteEvent {
	return t.events
}

// Close implements [Transport]. Idempotent.
func (t *serverTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	t.closeOnce.Do(func() { close(t.events) })
	return nil
}
