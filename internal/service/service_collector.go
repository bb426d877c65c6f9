package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillvault/syncengine/internal/crypto"
	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/internal/store"
	"github.com/quillvault/syncengine/models"
)

// ErrNoKeys means the encryption gateway holds no data-encryption key, so
// nothing can be collected.
var ErrNoKeys = errors.New("no encryption key available")

type collector struct {
	store     store.Store
	gateway   crypto.Gateway
	batchSize int
	log       *logger.Logger
}

// NewCollector builds the Collector over the given store and encryption
// gateway. batchSize bounds how many envelopes go into one chunk.
func NewCollector(st store.Store, gateway crypto.Gateway, batchSize int, log *logger.Logger) Collector {
	return &collector{
		store:     st,
		gateway:   gateway,
		batchSize: batchSize,
		log:       log.Scope("collector"),
	}
}

// pendingItem is one record ready for encryption: the stripped payload plus
// the id to flag as synced once its chunk has been emitted.
type pendingItem struct {
	id      string
	payload any
}

// typedSource adapts one typed repository to the collection loop.
type typedSource struct {
	dirty      func(ctx context.Context, since int64, force bool) ([]pendingItem, error)
	markSynced func(ctx context.Context, ids ...string) error
}

// newSource binds a repository to its transient-field strip function. A
// dirty record flagged localOnly is replaced by a tombstone so its content
// never leaves the device.
func newSource[T any](repo store.Repository[T], typ models.ItemType, strip func(T) any) typedSource {
	return typedSource{
		dirty: func(ctx context.Context, since int64, force bool) ([]pendingItem, error) {
			records, err := repo.Dirty(ctx, since, force)
			if err != nil {
				return nil, err
			}
			pending := make([]pendingItem, 0, len(records))
			for _, rec := range records {
				hdr, ok := any(rec).(models.Syncable)
				if !ok {
					return nil, fmt.Errorf("record of type %s is not syncable", typ)
				}
				if hdr.IsLocalOnly() {
					pending = append(pending, pendingItem{
						id:      hdr.ItemID(),
						payload: models.NewTombstone(hdr.ItemID(), typ, time.Now().UnixMilli()),
					})
					continue
				}
				pending = append(pending, pendingItem{id: hdr.ItemID(), payload: strip(*rec)})
			}
			return pending, nil
		},
		markSynced: repo.MarkSynced,
	}
}

func (c *collector) Collect(ctx context.Context, lastSynced int64, force bool, emit func(models.Chunk) error) error {
	keys := c.gateway.ListKeys()
	if len(keys) == 0 {
		return ErrNoKeys
	}
	keyVersion := keys[0].Version

	for _, typ := range models.AllItemTypes {
		src := c.source(typ)
		pending, err := src.dirty(ctx, lastSynced, force)
		if err != nil {
			return fmt.Errorf("scan dirty %s records: %w", typ, err)
		}
		if len(pending) == 0 {
			continue
		}

		c.log.Debug().Stringer("type", typ).Int("count", len(pending)).Msg("collected dirty records")

		for start := 0; start < len(pending); start += c.batchSize {
			end := start + c.batchSize
			if end > len(pending) {
				end = len(pending)
			}
			if err := c.emitChunk(ctx, typ, keyVersion, pending[start:end], src, emit); err != nil {
				return err
			}
		}
	}
	return nil
}

// emitChunk encrypts one bounded group of records, hands the chunk to emit,
// and flags the records as synced only after emit succeeded.
func (c *collector) emitChunk(ctx context.Context, typ models.ItemType, keyVersion int, pending []pendingItem, src typedSource, emit func(models.Chunk) error) error {
	envelopes := make([]models.EncryptedEnvelope, 0, len(pending))
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		env, err := c.gateway.Encrypt(keyVersion, p.payload)
		if err != nil {
			return fmt.Errorf("encrypt %s %s: %w", typ, p.id, err)
		}
		envelopes = append(envelopes, env)
		ids = append(ids, p.id)
	}

	chunk := models.Chunk{Type: typ, Count: len(envelopes), Items: envelopes}
	if err := emit(chunk); err != nil {
		return fmt.Errorf("emit %s chunk: %w", typ, err)
	}

	if err := src.markSynced(ctx, ids...); err != nil {
		return fmt.Errorf("mark %s records synced: %w", typ, err)
	}
	return nil
}

// source maps every item type to its repository binding. The switch is
// exhaustive over the closed type set.
func (c *collector) source(typ models.ItemType) typedSource {
	switch typ {
	case models.ItemNote:
		return newSource(c.store.Notes(), typ, stripNote)
	case models.ItemNotebook:
		return newSource(c.store.Notebooks(), typ, stripNotebook)
	case models.ItemContent:
		return newSource(c.store.Content(), typ, stripContent)
	case models.ItemAttachment:
		return newSource(c.store.Attachments(), typ, stripAttachment)
	case models.ItemSettings:
		return newSource(c.store.Settings(), typ, stripSetting)
	case models.ItemRelation:
		return newSource(c.store.Relations(), typ, stripRelation)
	default:
		panic(fmt.Sprintf("unhandled item type %s", typ))
	}
}

// The strip functions clear local bookkeeping before serialization: synced,
// remote, conflict state and failure notes are device-local, not payload.

func stripNote(n models.Note) any {
	n.Synced, n.Remote, n.Conflicted = false, false, false
	return n
}

func stripNotebook(n models.Notebook) any {
	n.Synced, n.Remote = false, false
	return n
}

func stripContent(c models.Content) any {
	c.Synced, c.Remote = false, false
	c.DateResolved = 0
	c.Conflicted = nil
	return c
}

func stripAttachment(a models.Attachment) any {
	a.Synced, a.Remote = false, false
	a.Failed = ""
	return a
}

func stripSetting(s models.Setting) any {
	s.Synced, s.Remote = false, false
	return s
}

func stripRelation(r models.Relation) any {
	r.Synced, r.Remote = false, false
	return r
}
