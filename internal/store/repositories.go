package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/quillvault/syncengine/models"
)

// rowExtra carries the per-kind index columns a record contributes beyond
// the shared header.
type rowExtra struct {
	noteID       string
	hash         string
	dateUploaded int64
	conflicted   bool
}

// extraFn derives the index columns for one record kind.
type extraFn[T any] func(*T) rowExtra

func plainRow[T any](*T) rowExtra { return rowExtra{} }

func noteRow(n *models.Note) rowExtra {
	return rowExtra{conflicted: n.Conflicted}
}

func contentRow(c *models.Content) rowExtra {
	return rowExtra{noteID: c.NoteID, conflicted: c.Conflicted != nil}
}

func attachmentRow(a *models.Attachment) rowExtra {
	return rowExtra{hash: a.Hash, dateUploaded: a.DateUploaded}
}

// repo is the shared repository implementation: records are stored as JSON
// payloads with the header mirrored into plain columns for querying. The
// synced column, not the payload, is authoritative for the synced flag.
type repo[T any] struct {
	db    *sql.DB
	typ   models.ItemType
	extra extraFn[T]
}

func newRepo[T any](db *sql.DB, typ models.ItemType, extra extraFn[T]) *repo[T] {
	return &repo[T]{db: db, typ: typ, extra: extra}
}

func (r *repo[T]) Put(ctx context.Context, items ...*T) error {
	for _, item := range items {
		hdr, ok := any(item).(models.Syncable)
		if !ok {
			return fmt.Errorf("item of type %s is not syncable", r.typ)
		}

		if hdr.ItemID() == "" {
			if setter, ok := any(item).(interface{ SetID(string) }); ok {
				setter.SetID(uuid.NewString())
			}
		}
		modified := hdr.Modified()
		if modified == 0 {
			modified = time.Now().UnixMilli()
			// The payload must carry the same timestamp as the column or
			// later reads would compare against zero.
			if setter, ok := any(item).(interface{ SetModified(int64) }); ok {
				setter.SetModified(modified)
			}
		}

		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.typ, hdr.ItemID(), err)
		}

		ex := r.extra(item)
		_, err = r.db.ExecContext(ctx, putItem,
			hdr.ItemID(), r.typ.String(), ex.noteID, ex.hash,
			modified, ex.dateUploaded,
			hdr.IsSynced(), hdr.IsLocalOnly(), hdr.IsDeleted(), ex.conflicted,
			string(payload),
		)
		if err != nil {
			return fmt.Errorf("put %s %s: %w", r.typ, hdr.ItemID(), err)
		}
	}
	return nil
}

func (r *repo[T]) Get(ctx context.Context, id string) (*T, error) {
	return r.getWhere(ctx, getItem, id)
}

func (r *repo[T]) getWhere(ctx context.Context, query, arg string) (*T, error) {
	var (
		synced  bool
		payload string
	)
	err := r.db.QueryRowContext(ctx, query, r.typ.String(), arg).Scan(&synced, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", r.typ, arg, err)
	}
	return r.decode(synced, payload)
}

func (r *repo[T]) All(ctx context.Context) ([]*T, error) {
	return r.selectWhere(ctx)
}

func (r *repo[T]) Dirty(ctx context.Context, since int64, force bool) ([]*T, error) {
	if force {
		return r.selectWhere(ctx)
	}
	return r.selectWhere(ctx,
		sq.Eq{"synced": false},
		sq.Gt{"date_modified": since},
	)
}

func (r *repo[T]) MarkSynced(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx, markSynced, r.typ.String(), id); err != nil {
			return fmt.Errorf("mark synced %s %s: %w", r.typ, id, err)
		}
	}
	return nil
}

func (r *repo[T]) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, deleteItem, r.typ.String(), id); err != nil {
		return fmt.Errorf("delete %s %s: %w", r.typ, id, err)
	}
	return nil
}

// selectWhere runs a list query with the given extra predicates on top of
// the type filter, ordered by modification time for deterministic output.
func (r *repo[T]) selectWhere(ctx context.Context, preds ...sq.Sqlizer) ([]*T, error) {
	q := sq.Select("synced", "payload").
		From("items").
		Where(sq.Eq{"type": r.typ.String()}).
		OrderBy("date_modified ASC, id ASC")
	for _, p := range preds {
		q = q.Where(p)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", r.typ, err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.typ, err)
	}
	defer rows.Close()

	var items []*T
	for rows.Next() {
		var (
			synced  bool
			payload string
		)
		if err := rows.Scan(&synced, &payload); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", r.typ, err)
		}
		item, err := r.decode(synced, payload)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", r.typ, err)
	}
	return items, nil
}

func (r *repo[T]) decode(synced bool, payload string) (*T, error) {
	item := new(T)
	if err := json.Unmarshal([]byte(payload), item); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", r.typ, err)
	}
	if setter, ok := any(item).(interface{ SetSynced(bool) }); ok {
		setter.SetSynced(synced)
	}
	return item, nil
}

// contentRepo adds the conflict scan on top of the shared repository.
type contentRepo struct {
	*repo[models.Content]
}

func (r *contentRepo) Conflicted(ctx context.Context) ([]*models.Content, error) {
	return r.selectWhere(ctx, sq.Eq{"conflicted": true})
}

// attachmentRepo adds hash lookup and upload bookkeeping.
type attachmentRepo struct {
	*repo[models.Attachment]
}

func (r *attachmentRepo) GetByHash(ctx context.Context, hash string) (*models.Attachment, error) {
	return r.getWhere(ctx, getItemByHash, hash)
}

func (r *attachmentRepo) Pending(ctx context.Context) ([]*models.Attachment, error) {
	return r.selectWhere(ctx,
		sq.Eq{"deleted": false},
		sq.Eq{"local_only": false},
		sq.Eq{"date_uploaded": 0},
	)
}

func (r *attachmentRepo) MarkUploaded(ctx context.Context, id string, uploadedAt int64) error {
	att, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	att.DateUploaded = uploadedAt
	att.Failed = ""
	// The confirmation must reach other devices even when the metadata was
	// already synced in an earlier round.
	att.DateModified = uploadedAt
	att.Synced = false
	return r.Put(ctx, att)
}

func (r *attachmentRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	att, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	att.Failed = reason
	return r.Put(ctx, att)
}
