package store

import (
	"context"

	"github.com/quillvault/syncengine/models"
)

// Store is the durable local home of all syncable records plus the sync
// engine's persisted state (watermark, conflict flag, queue record). The
// store serializes its own writes; the sync core never locks records itself.
type Store interface {
	Notes() NoteRepository
	Notebooks() NotebookRepository
	Content() ContentRepository
	Attachments() AttachmentRepository
	Settings() SettingRepository
	Relations() RelationRepository
	KV() KV

	Close() error
}

// Repository is the access surface shared by every record kind. Dirty
// returns records that are unsynced and modified after since (localOnly
// records included; Collector turns those into tombstones). Under force
// the synced and time filters are disabled.
type Repository[T any] interface {
	Put(ctx context.Context, items ...*T) error
	Get(ctx context.Context, id string) (*T, error)
	All(ctx context.Context) ([]*T, error)
	Dirty(ctx context.Context, since int64, force bool) ([]*T, error)
	MarkSynced(ctx context.Context, ids ...string) error
	Delete(ctx context.Context, id string) error
}

// NoteRepository stores note metadata.
type NoteRepository interface {
	Repository[models.Note]
}

// NotebookRepository stores notebooks.
type NotebookRepository interface {
	Repository[models.Notebook]
}

// ContentRepository stores note bodies.
type ContentRepository interface {
	Repository[models.Content]

	// Conflicted returns every content record carrying an unresolved
	// conflict branch. Conflicts.Recalculate derives the global flag from
	// this.
	Conflicted(ctx context.Context) ([]*models.Content, error)
}

// AttachmentRepository stores attachment metadata.
type AttachmentRepository interface {
	Repository[models.Attachment]

	// GetByHash looks an attachment up by its binary hash.
	GetByHash(ctx context.Context, hash string) (*models.Attachment, error)

	// Pending returns live attachments whose binary upload has not been
	// confirmed yet.
	Pending(ctx context.Context) ([]*models.Attachment, error)

	// MarkUploaded records server confirmation of the binary upload.
	MarkUploaded(ctx context.Context, id string, uploadedAt int64) error

	// MarkFailed records an upload failure against the attachment without
	// failing the rest of the batch.
	MarkFailed(ctx context.Context, id string, reason string) error
}

// SettingRepository stores settings records.
type SettingRepository interface {
	Repository[models.Setting]
}

// RelationRepository stores record links.
type RelationRepository interface {
	Repository[models.Relation]
}

// KV holds the engine's durable key-value state.
type KV interface {
	// LastSynced is the watermark: the last confirmed-complete sync
	// timestamp. Zero when never synced.
	LastSynced(ctx context.Context) (int64, error)
	SetLastSynced(ctx context.Context, ts int64) error

	// HasConflicts gates whether a new sync round may proceed.
	HasConflicts(ctx context.Context) (bool, error)
	SetHasConflicts(ctx context.Context, v bool) error

	// SyncQueue returns the persisted queue record, or nil when none.
	SyncQueue(ctx context.Context) (*models.SyncQueueRecord, error)
	SetSyncQueue(ctx context.Context, rec *models.SyncQueueRecord) error
	DeleteSyncQueue(ctx context.Context) error
}

// FileStore is the binary blob collaborator for attachments. Removing the
// superseded local binary before accepting remote metadata is what keeps
// one logical attachment from owning two blobs.
type FileStore interface {
	// Upload pushes the binary for hash to the server. Returns false when
	// the server did not accept the file.
	Upload(ctx context.Context, hash string) (bool, error)

	// Remove deletes the local binary for hash. Returns false when the
	// binary could not be removed.
	Remove(ctx context.Context, hash string) (bool, error)
}
