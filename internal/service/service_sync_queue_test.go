package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillvault/syncengine/internal/logger"
)

func TestSyncQueue_NewAndGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.queue.New(ctx, []string{"notes:n1", "content:c1"}, 500)
	require.NoError(t, err)
	require.NotNil(t, rec)

	got, err := env.queue.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(500), got.SyncedAt)
	assert.ElementsMatch(t, []string{"notes:n1", "content:c1"}, got.ItemIDs)
}

func TestSyncQueue_ContentOrderedBeforeNotes(t *testing.T) {
	env := newTestEnv(t)

	rec, err := env.queue.New(context.Background(),
		[]string{"notes:n1", "content:c1", "settings:s1"}, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"settings:s1", "content:c1", "notes:n1"}, rec.ItemIDs)
}

func TestSyncQueue_MergePreservesPendingIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.queue.New(ctx, []string{"notes:n1", "content:c1"}, 500)
	require.NoError(t, err)

	// a later round collects a different set; the interrupted round's ids
	// must survive the union
	rec, err := env.queue.Merge(ctx, []string{"notes:n2", "content:c1"}, 600)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"notes:n1", "notes:n2", "content:c1"}, rec.ItemIDs)
	assert.Equal(t, int64(600), rec.SyncedAt)
}

func TestSyncQueue_MergeWithoutPriorRecord(t *testing.T) {
	env := newTestEnv(t)

	rec, err := env.queue.Merge(context.Background(), []string{"notes:n1"}, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes:n1"}, rec.ItemIDs)
}

func TestSyncQueue_DequeueUnknownIDsIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.queue.New(ctx, []string{"notes:n1"}, 500)
	require.NoError(t, err)

	rec, err := env.queue.Dequeue(ctx, "notes:ghost", "content:ghost")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"notes:n1"}, rec.ItemIDs)
}

func TestSyncQueue_EmptiedRecordIsDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.queue.New(ctx, []string{"notes:n1", "notes:n2"}, 500)
	require.NoError(t, err)

	rec, err := env.queue.Dequeue(ctx, "notes:n1", "notes:n2")
	require.NoError(t, err)
	assert.Nil(t, rec)

	got, err := env.queue.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "an emptied record is deleted, not kept as an empty shell")
}

func TestSyncQueue_SurvivesReload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.queue.New(ctx, []string{"notes:n1"}, 500)
	require.NoError(t, err)

	// a fresh queue over the same KV sees the persisted record
	reloaded := NewSyncQueue(env.store.KV(), logger.Nop())
	got, err := reloaded.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"notes:n1"}, got.ItemIDs)
}

func TestSyncQueue_DedupesCollectedIDs(t *testing.T) {
	env := newTestEnv(t)

	rec, err := env.queue.New(context.Background(),
		[]string{"notes:n1", "notes:n1", "notes:n1"}, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes:n1"}, rec.ItemIDs)
}
