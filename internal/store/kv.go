package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/quillvault/syncengine/models"
)

const (
	kvLastSynced   = "lastSynced"
	kvHasConflicts = "hasConflicts"
	kvSyncQueue    = "syncQueue"
)

// kvStore persists the engine's scalar state in the kv table.
type kvStore struct {
	db *sql.DB
}

func (s *kvStore) LastSynced(ctx context.Context) (int64, error) {
	raw, err := s.get(ctx, kvLastSynced)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse lastSynced: %w", err)
	}
	return ts, nil
}

func (s *kvStore) SetLastSynced(ctx context.Context, ts int64) error {
	return s.set(ctx, kvLastSynced, strconv.FormatInt(ts, 10))
}

func (s *kvStore) HasConflicts(ctx context.Context) (bool, error) {
	raw, err := s.get(ctx, kvHasConflicts)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return raw == "true", nil
}

func (s *kvStore) SetHasConflicts(ctx context.Context, v bool) error {
	return s.set(ctx, kvHasConflicts, strconv.FormatBool(v))
}

func (s *kvStore) SyncQueue(ctx context.Context) (*models.SyncQueueRecord, error) {
	raw, err := s.get(ctx, kvSyncQueue)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec models.SyncQueueRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode sync queue: %w", err)
	}
	return &rec, nil
}

func (s *kvStore) SetSyncQueue(ctx context.Context, rec *models.SyncQueueRecord) error {
	if rec == nil {
		return s.DeleteSyncQueue(ctx)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode sync queue: %w", err)
	}
	return s.set(ctx, kvSyncQueue, string(payload))
}

func (s *kvStore) DeleteSyncQueue(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, deleteKV, kvSyncQueue); err != nil {
		return fmt.Errorf("delete sync queue: %w", err)
	}
	return nil
}

func (s *kvStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, getKV, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get kv %s: %w", key, err)
	}
	return value, nil
}

func (s *kvStore) set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, setKV, key, value); err != nil {
		return fmt.Errorf("set kv %s: %w", key, err)
	}
	return nil
}
