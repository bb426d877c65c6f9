package adapter

//go:generate mockgen -source=interfaces.go -destination=../mock/transport_mock.go -package=mock

import (
	"context"

	"github.com/quillvault/syncengine/models"
)

// Transport is the bidirectional channel to the sync server. Batches are
// capped at the engine's batch size per call; the realtime stream delivers
// remote items and push notifications.
type Transport interface {
	// Connect establishes (or validates) the realtime connection. Safe to
	// call when already connected.
	Connect(ctx context.Context) error

	// FetchItemsSince streams every remote item changed after since,
	// invoking onItem for each in delivery order. An onItem error aborts
	// the stream and is returned. The result carries the server's
	// confirmed lastSynced.
	FetchItemsSince(ctx context.Context, since int64, onItem func(models.TransferItem) error) (models.FetchResult, error)

	// SendBatch uploads one batch of encrypted items. The returned
	// timestamp is the server's confirmed lastSynced for the batch.
	SendBatch(ctx context.Context, batch models.Batch) (int64, error)

	// NotifySyncCompleted tells the server the round finished at
	// lastSynced and returns the server's confirmed value.
	NotifySyncCompleted(ctx context.Context, lastSynced int64) (int64, error)

	// Events delivers push notifications (e.g. another device completed a
	// sync). The channel is closed by Close.
	Events() <-chan models.RemoteEvent

	// Close tears the connection down. In-flight but unacknowledged
	// batches are simply never dequeued by the caller, so closing is
	// always safe.
	Close() error
}

// TokenProvider supplies the access token for the sync server. Owned by the
// application's auth flow.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}
