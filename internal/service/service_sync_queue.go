package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/internal/store"
	"github.com/quillvault/syncengine/models"
)

type syncQueue struct {
	kv  store.KV
	log *logger.Logger
}

// NewSyncQueue builds the durable sync queue over the store's KV state.
func NewSyncQueue(kv store.KV, log *logger.Logger) SyncQueue {
	return &syncQueue{kv: kv, log: log.Scope("syncqueue")}
}

func (q *syncQueue) New(ctx context.Context, ids []string, syncedAt int64) (*models.SyncQueueRecord, error) {
	rec := &models.SyncQueueRecord{ItemIDs: dedupe(ids), SyncedAt: syncedAt}
	if len(rec.ItemIDs) == 0 {
		if err := q.kv.DeleteSyncQueue(ctx); err != nil {
			return nil, fmt.Errorf("delete sync queue: %w", err)
		}
		return nil, nil
	}
	if err := q.kv.SetSyncQueue(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist sync queue: %w", err)
	}
	return rec, nil
}

func (q *syncQueue) Merge(ctx context.Context, ids []string, syncedAt int64) (*models.SyncQueueRecord, error) {
	prior, err := q.kv.SyncQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync queue: %w", err)
	}
	if prior == nil {
		return q.New(ctx, ids, syncedAt)
	}

	q.log.Debug().
		Int("pending", len(prior.ItemIDs)).
		Int("collected", len(ids)).
		Msg("merging collected ids with interrupted queue")

	return q.New(ctx, append(prior.ItemIDs, ids...), syncedAt)
}

func (q *syncQueue) Dequeue(ctx context.Context, ids ...string) (*models.SyncQueueRecord, error) {
	rec, err := q.kv.SyncQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync queue: %w", err)
	}
	if rec == nil {
		return nil, nil
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	remaining := rec.ItemIDs[:0]
	for _, id := range rec.ItemIDs {
		if _, ok := drop[id]; !ok {
			remaining = append(remaining, id)
		}
	}
	rec.ItemIDs = remaining

	// An emptied record is deleted, never kept as an empty shell.
	if len(rec.ItemIDs) == 0 {
		if err := q.kv.DeleteSyncQueue(ctx); err != nil {
			return nil, fmt.Errorf("delete sync queue: %w", err)
		}
		return nil, nil
	}
	if err := q.kv.SetSyncQueue(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist sync queue: %w", err)
	}
	return rec, nil
}

func (q *syncQueue) Get(ctx context.Context) (*models.SyncQueueRecord, error) {
	rec, err := q.kv.SyncQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync queue: %w", err)
	}
	return rec, nil
}

// dedupe returns the set of ids ordered by their type's collection order so
// content chunks upload before the note chunks referencing them.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return collectionRank(out[i]) < collectionRank(out[j])
	})
	return out
}

func collectionRank(qid string) int {
	collection, _, err := models.SplitQueueID(qid)
	if err != nil {
		return len(models.AllItemTypes)
	}
	for i, t := range models.AllItemTypes {
		if t.Collection() == collection {
			return i
		}
	}
	return len(models.AllItemTypes)
}
