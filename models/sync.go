package models

import (
	"fmt"
	"strings"
)

// SyncQueueRecord is the durable record of "collected for the in-flight sync
// but not yet acknowledged by the server". Every id is "<collection>:<id>".
// An emptied record is deleted, never kept as an empty shell.
type SyncQueueRecord struct {
	ItemIDs  []string `json:"itemIds"`
	SyncedAt int64    `json:"syncedAt"`
}

// QueueID builds the namespaced queue id for a record.
func QueueID(t ItemType, id string) string {
	return t.Collection() + ":" + id
}

// SplitQueueID splits a namespaced queue id back into collection and id.
func SplitQueueID(qid string) (collection, id string, err error) {
	collection, id, ok := strings.Cut(qid, ":")
	if !ok || collection == "" || id == "" {
		return "", "", fmt.Errorf("malformed queue id %q", qid)
	}
	return collection, id, nil
}

// TransferItem is one delivered record of a remote fetch stream, with
// progress counters. Synced marks the terminal frame carrying the server's
// confirmed lastSynced instead of an item.
type TransferItem struct {
	Item       EncryptedEnvelope `json:"item"`
	ItemType   ItemType          `json:"itemType"`
	Current    int               `json:"current"`
	Total      int               `json:"total"`
	Synced     bool              `json:"synced,omitempty"`
	LastSynced int64             `json:"lastSynced,omitempty"`
}

// Batch is the upload unit: up to the configured batch size of envelopes
// with their parallel type list.
type Batch struct {
	Items      []EncryptedEnvelope `json:"items"`
	Types      []ItemType          `json:"types"`
	LastSynced int64               `json:"lastSynced"`
	Current    int                 `json:"current"`
	Total      int                 `json:"total"`
}

// FetchResult summarizes a completed remote fetch.
type FetchResult struct {
	LastSynced int64
	Count      int
}

// RemoteEventKind discriminates push notifications from the server.
type RemoteEventKind int

const (
	// RemoteSyncCompleted means another device finished a sync round; the
	// local device should run a non-forced round to pick the changes up.
	RemoteSyncCompleted RemoteEventKind = iota + 1
)

// RemoteEvent is a push notification delivered over the realtime channel.
type RemoteEvent struct {
	Kind       RemoteEventKind
	LastSynced int64
}

// ItemChange describes one local mutation, published by the application to
// the AutoSync channel.
type ItemChange struct {
	ID   string
	Type ItemType

	// Remote marks changes caused by merging a remote item; syncing off of
	// those would loop.
	Remote bool

	// LocalOnly marks records that never leave the device.
	LocalOnly bool

	// Failed marks records whose last sync attempt already failed.
	Failed bool
}
