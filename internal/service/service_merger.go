package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quillvault/syncengine/internal/config"
	"github.com/quillvault/syncengine/internal/crypto"
	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/internal/store"
	"github.com/quillvault/syncengine/models"
)

type merger struct {
	store      store.Store
	gateway    crypto.Gateway
	files      store.FileStore
	conflicts  Conflicts
	thresholds config.Conflicts
	log        *logger.Logger
}

// NewMerger builds the Merger. thresholds governs auto-resolution: edits
// closer together than the per-type threshold are resolved by recency
// instead of raising a conflict.
func NewMerger(st store.Store, gateway crypto.Gateway, files store.FileStore, conflicts Conflicts, thresholds config.Conflicts, log *logger.Logger) Merger {
	return &merger{
		store:      st,
		gateway:    gateway,
		files:      files,
		conflicts:  conflicts,
		thresholds: thresholds,
		log:        log.Scope("merger"),
	}
}

func (m *merger) MergeRemote(ctx context.Context, ti models.TransferItem) error {
	lastSynced, err := m.store.KV().LastSynced(ctx)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}

	switch ti.ItemType {
	case models.ItemNote:
		remote, err := decryptAs[models.Note](m.gateway, ti.Item)
		if err != nil {
			return m.skipMalformed(ti, err)
		}
		return mergeLWW(ctx, m, m.store.Notes(), remote)
	case models.ItemNotebook:
		remote, err := decryptAs[models.Notebook](m.gateway, ti.Item)
		if err != nil {
			return m.skipMalformed(ti, err)
		}
		return mergeThreshold(ctx, m, m.store.Notebooks(), remote, m.thresholds.ItemThreshold, lastSynced)
	case models.ItemSettings:
		remote, err := decryptAs[models.Setting](m.gateway, ti.Item)
		if err != nil {
			return m.skipMalformed(ti, err)
		}
		return mergeThreshold(ctx, m, m.store.Settings(), remote, m.thresholds.ItemThreshold, lastSynced)
	case models.ItemRelation:
		remote, err := decryptAs[models.Relation](m.gateway, ti.Item)
		if err != nil {
			return m.skipMalformed(ti, err)
		}
		return mergeLWW(ctx, m, m.store.Relations(), remote)
	case models.ItemContent:
		remote, err := decryptAs[models.Content](m.gateway, ti.Item)
		if err != nil {
			return m.skipMalformed(ti, err)
		}
		return m.mergeRemoteContent(ctx, remote, lastSynced)
	case models.ItemAttachment:
		remote, err := decryptAs[models.Attachment](m.gateway, ti.Item)
		if err != nil {
			return m.skipMalformed(ti, err)
		}
		return m.mergeRemoteAttachment(ctx, remote)
	default:
		return fmt.Errorf("unknown item type %s in fetch stream", ti.ItemType)
	}
}

// skipMalformed drops a single undecryptable item without failing the round.
// The local record, if any, is never destroyed by a malformed remote.
func (m *merger) skipMalformed(ti models.TransferItem, err error) error {
	m.log.Warn().
		Str("id", ti.Item.ID).
		Stringer("type", ti.ItemType).
		Int("keyVersion", ti.Item.KeyVersion).
		Err(err).
		Msg("skipping undecryptable remote item")
	return nil
}

func (m *merger) MergeItem(remote, local models.Syncable) models.Syncable {
	if remote == nil {
		return nil
	}
	if local == nil || remote.Modified() > local.Modified() {
		return remote
	}
	return nil
}

func (m *merger) MergeContent(remote, local *models.Content, lastSynced int64) (*models.Content, bool) {
	if remote == nil {
		return nil, false
	}
	if local == nil {
		return remote, false
	}
	if local.LocalOnly {
		return nil, false
	}

	// A deletion on either side resolves by recency. Checked before the
	// validity gate: a deletion marker carries no payload and must still be
	// able to replace a valid record.
	if remote.Deleted || local.Deleted {
		if remote.DateModified > local.DateModified {
			return remote, false
		}
		return nil, false
	}

	// Malformed-vs-valid always prefers the valid side, independent of
	// timestamps. When both sides are unusable the most recent one wins.
	switch {
	case remote.IsValid() && !local.IsValid():
		return remote, false
	case !remote.IsValid() && local.IsValid():
		return nil, false
	case !remote.IsValid() && !local.IsValid():
		if remote.DateModified > local.DateModified {
			return remote, false
		}
		return nil, false
	}

	// The user already resolved this exact remote state.
	if local.DateResolved != 0 && local.DateResolved == remote.DateModified {
		return nil, false
	}

	// A second and third conflicting edit collapse into the one conflicted
	// slot holding the most recent divergent remote.
	if local.HasConflict() {
		merged := *local
		if remote.DateModified > local.Conflicted.DateModified {
			merged.Conflicted = remote
		}
		return &merged, true
	}

	modified := local.DateModified > lastSynced && !local.Synced
	if !modified {
		if remote.DateModified > local.DateModified {
			return remote, false
		}
		return nil, false
	}

	// The local record diverged since its last confirmed state. Identical
	// text is not a divergence; near-simultaneous edits are resolved by
	// recency, not by user.
	if equalContentData(remote.Data, local.Data) {
		if remote.DateModified > local.DateModified {
			return remote, false
		}
		return nil, false
	}
	if editGap(remote, local) < m.thresholds.ContentThreshold.Milliseconds() {
		if editStamp(remote) > editStamp(local) {
			return remote, false
		}
		return nil, false
	}

	merged := *local
	merged.Conflicted = remote
	return &merged, true
}

func (m *merger) MergeAttachment(ctx context.Context, remote, local *models.Attachment) (*models.Attachment, error) {
	if remote == nil {
		return nil, nil
	}
	if local == nil {
		return remote, nil
	}

	// Deleted-vs-present resolves to whichever side is newer by
	// dateModified.
	if remote.Deleted || local.Deleted {
		if remote.DateModified > local.DateModified {
			return remote, nil
		}
		return nil, nil
	}

	// Upload completion is authoritative for attachment availability: the
	// side with the newer dateUploaded wins regardless of dateModified.
	switch {
	case remote.DateUploaded == local.DateUploaded:
		if remote.DateModified > local.DateModified {
			return remote, nil
		}
		return nil, nil
	case remote.DateUploaded < local.DateUploaded:
		return nil, nil
	}

	// The remote binary supersedes the local one. The local binary must be
	// released before the remote metadata is committed, otherwise two
	// binaries end up referencing one logical attachment.
	if local.Hash != "" {
		removed, err := m.files.Remove(ctx, local.Hash)
		if err != nil {
			return nil, fmt.Errorf("release attachment binary %s: %w", local.Hash, err)
		}
		if !removed {
			return nil, fmt.Errorf("release attachment binary %s: %w", local.Hash, ErrAttachmentRelease)
		}
	}

	merged := *remote
	merged.NoteIDs = models.UnionNoteIDs(remote.NoteIDs, local.NoteIDs)
	return &merged, nil
}

// mergeRemoteContent loads the local record, merges, and on a genuine
// conflict flags the owning note and the global conflict state. The conflict
// is reported through the flag, not an error, so the rest of the stream
// still merges; the orchestrator aborts the upload phase afterwards.
func (m *merger) mergeRemoteContent(ctx context.Context, remote *models.Content, lastSynced int64) error {
	local, err := getLocal(ctx, m.store.Content(), remote.ID)
	if err != nil {
		return fmt.Errorf("load local content %s: %w", remote.ID, err)
	}

	merged, conflict := m.MergeContent(remote, local, lastSynced)
	if merged == nil {
		return nil
	}
	if err := m.store.Content().Put(ctx, merged); err != nil {
		return fmt.Errorf("write merged content %s: %w", merged.ID, err)
	}
	if !conflict {
		return nil
	}

	m.log.Info().
		Str("id", remote.ID).
		Str("noteId", merged.NoteID).
		Int64("remote", remote.DateModified).
		Int64("local", merged.DateModified).
		Int64("lastSynced", lastSynced).
		Msg("conflict detected")

	if note, err := getLocal(ctx, m.store.Notes(), merged.NoteID); err != nil {
		return fmt.Errorf("load conflicted note %s: %w", merged.NoteID, err)
	} else if note != nil && !note.Conflicted {
		note.Conflicted = true
		if err := m.store.Notes().Put(ctx, note); err != nil {
			return fmt.Errorf("flag conflicted note %s: %w", note.ID, err)
		}
	}
	if err := m.conflicts.Mark(ctx); err != nil {
		return fmt.Errorf("mark conflicts: %w", err)
	}
	return nil
}

// mergeRemoteAttachment matches on the binary hash, not the record id: two
// devices may hold the same binary under different record ids.
func (m *merger) mergeRemoteAttachment(ctx context.Context, remote *models.Attachment) error {
	repo := m.store.Attachments()

	local, err := repo.GetByHash(ctx, remote.Hash)
	if errors.Is(err, store.ErrNotFound) {
		local, err = getLocal(ctx, repo, remote.ID)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load local attachment %s: %w", remote.Hash, err)
	}

	merged, err := m.MergeAttachment(ctx, remote, local)
	if err != nil {
		return err
	}
	if merged == nil {
		return nil
	}
	if local != nil && local.ID != merged.ID {
		if err := repo.Delete(ctx, local.ID); err != nil {
			return fmt.Errorf("drop superseded attachment %s: %w", local.ID, err)
		}
	}
	if err := repo.Put(ctx, merged); err != nil {
		return fmt.Errorf("write merged attachment %s: %w", merged.ID, err)
	}
	return nil
}

// decryptAs opens the envelope into a concrete record and stamps it as
// remote and synced, matching the state the server just confirmed.
func decryptAs[T any](gateway crypto.Gateway, env models.EncryptedEnvelope) (*T, error) {
	var item T
	if err := gateway.Decrypt(env, &item); err != nil {
		return nil, err
	}
	hdr, ok := any(&item).(interface {
		SetSynced(bool)
		SetRemote(bool)
	})
	if !ok {
		return nil, fmt.Errorf("decrypted item has no sync header")
	}
	hdr.SetSynced(true)
	hdr.SetRemote(true)
	return &item, nil
}

// getLocal is Get with ErrNotFound mapped to a nil record.
func getLocal[T any](ctx context.Context, repo store.Repository[T], id string) (*T, error) {
	local, err := repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return local, err
}

// mergeLWW is plain last-writer-wins on dateModified.
func mergeLWW[T any](ctx context.Context, m *merger, repo store.Repository[T], remote *T) error {
	id := any(remote).(models.Syncable).ItemID()
	local, err := getLocal(ctx, repo, id)
	if err != nil {
		return fmt.Errorf("load local record %s: %w", id, err)
	}

	var localS models.Syncable
	if local != nil {
		localS = any(local).(models.Syncable)
	}
	if winner := m.MergeItem(any(remote).(models.Syncable), localS); winner != nil {
		if err := repo.Put(ctx, remote); err != nil {
			return fmt.Errorf("write merged record %s: %w", id, err)
		}
	}
	return nil
}

// mergeThreshold applies to simple records (settings, notebooks) that carry
// no conflict branch: a divergence beyond the threshold resolves to the
// remote side, a divergence under it to whichever side is newer.
func mergeThreshold[T any](ctx context.Context, m *merger, repo store.Repository[T], remote *T, threshold time.Duration, lastSynced int64) error {
	id := any(remote).(models.Syncable).ItemID()
	local, err := getLocal(ctx, repo, id)
	if err != nil {
		return fmt.Errorf("load local record %s: %w", id, err)
	}
	if local == nil {
		if err := repo.Put(ctx, remote); err != nil {
			return fmt.Errorf("write merged record %s: %w", id, err)
		}
		return nil
	}

	r := any(remote).(models.Syncable)
	l := any(local).(models.Syncable)

	accept := false
	modified := l.Modified() > lastSynced && !l.IsSynced()
	switch {
	case !modified:
		accept = r.Modified() > l.Modified()
	case absDiff(r.Modified(), l.Modified()) < threshold.Milliseconds():
		accept = r.Modified() > l.Modified()
	default:
		accept = true
	}
	if !accept {
		return nil
	}
	if err := repo.Put(ctx, remote); err != nil {
		return fmt.Errorf("write merged record %s: %w", id, err)
	}
	return nil
}

// equalContentData is the canonical auto-resolution comparison: byte
// equality of the serialized payload after whitespace trimming.
func equalContentData(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// editStamp is the hand-edit timestamp, falling back to dateModified for
// records that never set one.
func editStamp(c *models.Content) int64 {
	if c.DateEdited != 0 {
		return c.DateEdited
	}
	return c.DateModified
}

func editGap(a, b *models.Content) int64 {
	return absDiff(editStamp(a), editStamp(b))
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
