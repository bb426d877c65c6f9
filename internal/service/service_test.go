package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillvault/syncengine/internal/config"
	"github.com/quillvault/syncengine/internal/crypto"
	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/internal/store"
	"github.com/quillvault/syncengine/models"
)

// testEnv wires the service components over a real in-memory store and a
// real keychain, with a recording fake for the binary file store.
type testEnv struct {
	store     store.Store
	gateway   crypto.Gateway
	files     *fakeFiles
	conflicts Conflicts
	merger    Merger
	collector Collector
	queue     SyncQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLite(context.Background(), config.Storage{DSN: ":memory:"}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gateway, err := crypto.NewKeychain(map[int][]byte{1: bytes.Repeat([]byte{7}, 32)})
	require.NoError(t, err)

	files := newFakeFiles()
	conflicts := NewConflicts(st, logger.Nop())
	thresholds := config.Conflicts{ContentThreshold: time.Minute, ItemThreshold: time.Second}

	return &testEnv{
		store:     st,
		gateway:   gateway,
		files:     files,
		conflicts: conflicts,
		merger:    NewMerger(st, gateway, files, conflicts, thresholds, logger.Nop()),
		collector: NewCollector(st, gateway, 30, logger.Nop()),
		queue:     NewSyncQueue(st.KV(), logger.Nop()),
	}
}

// envelope encrypts item with the test keychain's only key.
func (e *testEnv) envelope(t *testing.T, item any) models.EncryptedEnvelope {
	t.Helper()
	env, err := e.gateway.Encrypt(1, item)
	require.NoError(t, err)
	return env
}

func (e *testEnv) transfer(t *testing.T, typ models.ItemType, item any) models.TransferItem {
	t.Helper()
	return models.TransferItem{Item: e.envelope(t, item), ItemType: typ, Current: 1, Total: 1}
}

// collectAll drains a full Collect pass into a slice of chunks.
func (e *testEnv) collectAll(t *testing.T, lastSynced int64, force bool) []models.Chunk {
	t.Helper()
	var chunks []models.Chunk
	err := e.collector.Collect(context.Background(), lastSynced, force, func(c models.Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	return chunks
}

type fakeFiles struct {
	mu        sync.Mutex
	uploads   []string
	removals  []string
	uploadOK  bool
	uploadErr error
	removeOK  bool
	removeErr error
	onRemove  func(hash string)
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{uploadOK: true, removeOK: true}
}

func (f *fakeFiles) Upload(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, hash)
	return f.uploadOK, f.uploadErr
}

func (f *fakeFiles) Remove(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	onRemove := f.onRemove
	f.removals = append(f.removals, hash)
	ok, err := f.removeOK, f.removeErr
	f.mu.Unlock()

	if onRemove != nil {
		onRemove(hash)
	}
	return ok, err
}

func note(id string, modified int64) *models.Note {
	return &models.Note{
		ItemHeader: models.ItemHeader{ID: id, Type: models.ItemNote, DateModified: modified},
		Title:      "note " + id,
	}
}

func content(id, noteID, data string, modified int64) *models.Content {
	return &models.Content{
		ItemHeader: models.ItemHeader{ID: id, Type: models.ItemContent, DateModified: modified},
		NoteID:     noteID,
		Data:       data,
		DateEdited: modified,
	}
}

func attachment(id, hash string, modified, uploaded int64) *models.Attachment {
	return &models.Attachment{
		ItemHeader:   models.ItemHeader{ID: id, Type: models.ItemAttachment, DateModified: modified},
		Hash:         hash,
		Filename:     "file.bin",
		DateUploaded: uploaded,
	}
}
