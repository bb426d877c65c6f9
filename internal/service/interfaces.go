package service

import (
	"context"

	"github.com/quillvault/syncengine/models"
)

// Collector scans the local store for records that must reach the server and
// yields them as an ordered, typed, chunked stream of encrypted envelopes.
type Collector interface {
	// Collect emits every dirty record as encrypted chunks, in the fixed
	// type order (content before the notes referencing it). lastSynced
	// bounds the dirty scan; force disables the synced and time filters
	// entirely. Records marked localOnly are emitted as tombstones.
	//
	// After a chunk is emitted successfully its records are flagged as
	// synced, so a second Collect without intervening local mutation
	// yields nothing. An emit error aborts the scan with the unsent
	// records still dirty.
	Collect(ctx context.Context, lastSynced int64, force bool, emit func(models.Chunk) error) error
}

// Merger folds a decrypted remote record into local state: accept the
// remote, keep the local, or raise a conflict. It owns the conflict
// detection policy for both simple records and rich content.
type Merger interface {
	// MergeRemote decrypts one delivered item and dispatches it to the
	// per-type merge policy, writing the winner to the local store. A
	// content conflict flags the owning note and the global conflict
	// state but does not return an error; the orchestrator checks the
	// flag after the fetch phase.
	MergeRemote(ctx context.Context, item models.TransferItem) error

	// MergeItem is pure last-writer-wins on dateModified. It returns the
	// remote when it wins and nil when the local state should be kept.
	MergeItem(remote, local models.Syncable) models.Syncable

	// MergeContent decides between a remote and local content record.
	// It returns the record to write (nil for "keep local unchanged") and
	// whether a conflict was raised, in which case the returned record
	// carries the remote in its conflicted branch.
	MergeContent(remote, local *models.Content, lastSynced int64) (merged *models.Content, conflict bool)

	// MergeAttachment decides between a remote and local attachment. A
	// side with a newer dateUploaded wins regardless of dateModified.
	// When the remote supersedes a different local binary, the local
	// binary is released first; a failed release aborts this
	// attachment's merge with ErrAttachmentRelease.
	MergeAttachment(ctx context.Context, remote, local *models.Attachment) (*models.Attachment, error)
}

// SyncQueue is the durable record of items collected for the in-flight sync
// but not yet acknowledged by the server. It survives process restart, which
// is what makes a crash mid-upload recoverable.
type SyncQueue interface {
	// New replaces the persisted record with the given ids.
	New(ctx context.Context, ids []string, syncedAt int64) (*models.SyncQueueRecord, error)

	// Merge unions ids with the still-pending ids of a prior interrupted
	// round. Previously queued but unsent ids are never dropped.
	Merge(ctx context.Context, ids []string, syncedAt int64) (*models.SyncQueueRecord, error)

	// Dequeue removes acknowledged ids. Unknown ids are a per-id no-op.
	// When the remaining set is empty the persisted record is deleted.
	Dequeue(ctx context.Context, ids ...string) (*models.SyncQueueRecord, error)

	// Get returns the persisted record, or nil when none exists.
	Get(ctx context.Context) (*models.SyncQueueRecord, error)
}

// Conflicts tracks the global hasConflicts flag that gates new sync rounds.
type Conflicts interface {
	// Recalculate clears the flag once no content record remains in the
	// conflicted state, and raises it when one does.
	Recalculate(ctx context.Context) error

	// Check is a read-only query of the flag.
	Check(ctx context.Context) (bool, error)

	// Mark raises the flag.
	Mark(ctx context.Context) error
}

// AutoSync requests a sync shortly after any local mutation, debounced so a
// burst of edits triggers a single round.
type AutoSync interface {
	// Start arms the scheduler. Without the sync entitlement it is a
	// no-op and no timer is ever armed.
	Start(ctx context.Context)

	// Stop clears any pending timer and detaches from the change stream,
	// so no sync fires after logout.
	Stop()

	// OnChange reports one local mutation. Changes describing remote,
	// localOnly or already-failed records are ignored.
	OnChange(change models.ItemChange)
}

// ProgressEvent reports per-item progress of the fetch and send phases.
type ProgressEvent struct {
	// Direction is "download" during fetch and "upload" during send.
	Direction string
	Current   int
	Total     int
}

// SyncOptions controls a single sync round.
type SyncOptions struct {
	// Full includes the fetch-remote phase. A send-only round uploads
	// local changes without pulling.
	Full bool

	// Force resets the watermark to zero for this round, disabling all
	// time-based filtering in the Collector.
	Force bool

	// OnProgress, when set, receives per-item progress events.
	OnProgress func(ProgressEvent)
}

// Syncer drives sync rounds and owns the single-round-in-flight lock.
type Syncer interface {
	// Start runs one sync round. While a round is already in flight it is
	// a no-op returning nil. AutoSync is suspended for the duration so
	// the round's own writes do not immediately re-trigger it.
	Start(ctx context.Context, opts SyncOptions) error

	// Run blocks listening for remote "sync completed" push events and
	// runs a full round for each, until ctx is cancelled. AutoSync is
	// armed on entry.
	Run(ctx context.Context) error

	// NotifyChange feeds one local mutation into the AutoSync scheduler.
	NotifyChange(change models.ItemChange)

	// Cancel tears the connection down. Queue state is untouched: an
	// in-flight but unacknowledged batch is simply never dequeued, so it
	// is retried next round.
	Cancel() error
}
