package adapter

import "errors"

var (
	// ErrUnauthorized means the server rejected the access token. Fails
	// fast before any local mutation.
	ErrUnauthorized = errors.New("client unauthorized")

	// ErrNotEntitled means the account lacks the sync entitlement.
	ErrNotEntitled = errors.New("sync not entitled")

	// ErrConnectionClosed means the realtime connection dropped mid-round.
	// Transient: the next round retries from the preserved queue.
	ErrConnectionClosed = errors.New("sync connection closed")

	// ErrBatchRejected means the server returned a non-success status for
	// an upload batch after retries were exhausted.
	ErrBatchRejected = errors.New("batch rejected by server")
)
