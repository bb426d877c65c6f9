package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillvault/syncengine/internal/config"
	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/models"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLite(context.Background(), config.Storage{DSN: ":memory:"}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testNote(id string, modified int64) *models.Note {
	return &models.Note{
		ItemHeader: models.ItemHeader{ID: id, Type: models.ItemNote, DateModified: modified},
		Title:      "note " + id,
	}
}

func TestRepo_PutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	note := testNote("n1", 100)
	note.ContentID = "c1"
	require.NoError(t, s.Notes().Put(ctx, note))

	got, err := s.Notes().Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "note n1", got.Title)
	assert.Equal(t, "c1", got.ContentID)
	assert.Equal(t, int64(100), got.DateModified)
	assert.False(t, got.Synced)
}

func TestRepo_GetMissingReturnsErrNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Notes().Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepo_PutAssignsIDWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	note := &models.Note{ItemHeader: models.ItemHeader{Type: models.ItemNote}}
	require.NoError(t, s.Notes().Put(ctx, note))

	assert.NotEmpty(t, note.ID)
	_, err := s.Notes().Get(ctx, note.ID)
	assert.NoError(t, err)
}

func TestRepo_DirtyFiltersSyncedAndWatermark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := testNote("old", 50)
	fresh := testNote("fresh", 150)
	synced := testNote("synced", 200)
	synced.Synced = true
	require.NoError(t, s.Notes().Put(ctx, old, fresh, synced))

	dirty, err := s.Notes().Dirty(ctx, 100, false)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "fresh", dirty[0].ID)

	// force disables both filters
	all, err := s.Notes().Dirty(ctx, 100, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRepo_DirtyIncludesLocalOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	private := testNote("private", 150)
	private.LocalOnly = true
	require.NoError(t, s.Notes().Put(ctx, private))

	dirty, err := s.Notes().Dirty(ctx, 100, false)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.True(t, dirty[0].LocalOnly)
}

func TestRepo_MarkSynced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Notes().Put(ctx, testNote("n1", 150)))
	require.NoError(t, s.Notes().MarkSynced(ctx, "n1"))

	got, err := s.Notes().Get(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, got.Synced)

	dirty, err := s.Notes().Dirty(ctx, 0, false)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestRepo_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Notes().Put(ctx, testNote("n1", 100)))
	require.NoError(t, s.Notes().Delete(ctx, "n1"))

	_, err := s.Notes().Get(ctx, "n1")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting an absent id is a no-op
	assert.NoError(t, s.Notes().Delete(ctx, "n1"))
}

func TestRepo_TypesDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Notes().Put(ctx, testNote("x", 100)))
	require.NoError(t, s.Notebooks().Put(ctx, &models.Notebook{
		ItemHeader: models.ItemHeader{ID: "x", Type: models.ItemNotebook, DateModified: 100},
		Title:      "same id, other type",
	}))

	note, err := s.Notes().Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "note x", note.Title)

	nb, err := s.Notebooks().Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "same id, other type", nb.Title)
}

func TestContentRepo_Conflicted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	clean := &models.Content{
		ItemHeader: models.ItemHeader{ID: "c1", Type: models.ItemContent, DateModified: 100},
		NoteID:     "n1",
		Data:       "clean",
	}
	conflicted := &models.Content{
		ItemHeader: models.ItemHeader{ID: "c2", Type: models.ItemContent, DateModified: 100},
		NoteID:     "n2",
		Data:       "local",
		Conflicted: &models.Content{Data: "remote"},
	}
	require.NoError(t, s.Content().Put(ctx, clean, conflicted))

	got, err := s.Content().Conflicted(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c2", got[0].ID)
	require.NotNil(t, got[0].Conflicted)
	assert.Equal(t, "remote", got[0].Conflicted.Data)
}

func TestAttachmentRepo_GetByHashAndPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	uploaded := &models.Attachment{
		ItemHeader:   models.ItemHeader{ID: "a1", Type: models.ItemAttachment, DateModified: 100},
		Hash:         "hash-1",
		DateUploaded: 500,
	}
	pending := &models.Attachment{
		ItemHeader: models.ItemHeader{ID: "a2", Type: models.ItemAttachment, DateModified: 100},
		Hash:       "hash-2",
	}
	require.NoError(t, s.Attachments().Put(ctx, uploaded, pending))

	got, err := s.Attachments().GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)

	_, err = s.Attachments().GetByHash(ctx, "no-such-hash")
	assert.ErrorIs(t, err, ErrNotFound)

	waiting, err := s.Attachments().Pending(ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, "a2", waiting[0].ID)
}

func TestAttachmentRepo_MarkUploadedAndFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	att := &models.Attachment{
		ItemHeader: models.ItemHeader{ID: "a1", Type: models.ItemAttachment, DateModified: 100},
		Hash:       "h",
		Failed:     "old failure",
	}
	require.NoError(t, s.Attachments().Put(ctx, att))

	require.NoError(t, s.Attachments().MarkUploaded(ctx, "a1", 900))
	got, err := s.Attachments().Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.DateUploaded)
	assert.Empty(t, got.Failed)

	require.NoError(t, s.Attachments().MarkFailed(ctx, "a1", "413 too large"))
	got, err = s.Attachments().Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "413 too large", got.Failed)

	err = s.Attachments().MarkUploaded(ctx, "missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttachmentRepo_MarkUploadedRedirtiesSyncedRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	att := &models.Attachment{
		ItemHeader: models.ItemHeader{ID: "a1", Type: models.ItemAttachment, DateModified: 100},
		Hash:       "h",
	}
	require.NoError(t, s.Attachments().Put(ctx, att))
	require.NoError(t, s.Attachments().MarkSynced(ctx, "a1"))

	// the upload confirmation lands after the metadata was synced; the
	// record must go out again so other devices learn the binary exists
	require.NoError(t, s.Attachments().MarkUploaded(ctx, "a1", 999))

	got, err := s.Attachments().Get(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, got.Synced)
	assert.Equal(t, int64(999), got.DateModified)

	dirty, err := s.Attachments().Dirty(ctx, 0, false)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "a1", dirty[0].ID)
}

func TestRepo_PutStampsDefaultModifiedIntoPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	note := &models.Note{ItemHeader: models.ItemHeader{ID: "n1", Type: models.ItemNote}}
	require.NoError(t, s.Notes().Put(ctx, note))

	got, err := s.Notes().Get(ctx, "n1")
	require.NoError(t, err)
	assert.Positive(t, got.DateModified, "decoded record must carry the defaulted timestamp")
	assert.Equal(t, note.DateModified, got.DateModified)
}
