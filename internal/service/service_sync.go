package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quillvault/syncengine/internal/adapter"
	"github.com/quillvault/syncengine/internal/config"
	"github.com/quillvault/syncengine/internal/crypto"
	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/internal/store"
	"github.com/quillvault/syncengine/models"
)

type syncService struct {
	cfg       config.Config
	store     store.Store
	transport adapter.Transport
	gateway   crypto.Gateway
	files     store.FileStore

	collector Collector
	merger    Merger
	queue     SyncQueue
	conflicts Conflicts
	autosync  AutoSync
	log       *logger.Logger

	// mu serializes sync rounds: a second Start while one is in flight is
	// a no-op, never queued.
	mu sync.Mutex
}

// NewSync composes the full sync pipeline over its collaborators. entitled
// gates AutoSync; a round triggered by the debounced scheduler is a
// send-only round, a remote push triggers a full one.
func NewSync(cfg config.Config, st store.Store, transport adapter.Transport, gateway crypto.Gateway, files store.FileStore, entitled func(ctx context.Context) bool, log *logger.Logger) Syncer {
	conflicts := NewConflicts(st, log)
	s := &syncService{
		cfg:       cfg,
		store:     st,
		transport: transport,
		gateway:   gateway,
		files:     files,
		collector: NewCollector(st, gateway, cfg.Engine.BatchSize, log),
		merger:    NewMerger(st, gateway, files, conflicts, cfg.Conflicts, log),
		queue:     NewSyncQueue(st.KV(), log),
		conflicts: conflicts,
		log:       log.Scope("sync"),
	}
	s.autosync = NewAutoSync(s.requestSync, entitled, cfg.Engine.AutoSyncDebounce, log)
	return s
}

// requestSync runs a debounce-triggered round off the scheduler goroutine.
func (s *syncService) requestSync() {
	go func() {
		if err := s.Start(context.Background(), SyncOptions{}); err != nil {
			s.log.Error().Err(err).Msg("auto sync round failed")
		}
	}()
}

func (s *syncService) Start(ctx context.Context, opts SyncOptions) error {
	if !s.mu.TryLock() {
		s.log.Debug().Msg("sync already in flight, ignoring start")
		return nil
	}
	defer s.mu.Unlock()

	// The round's own writes must not re-trigger the scheduler.
	s.autosync.Stop()
	defer s.autosync.Start(ctx)

	started := time.Now()
	if err := s.runRound(ctx, opts); err != nil {
		s.log.Error().Err(err).Dur("took", time.Since(started)).Msg("sync round failed")
		return err
	}
	s.log.Info().Dur("took", time.Since(started)).Msg("sync round completed")
	return nil
}

func (s *syncService) Run(ctx context.Context) error {
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	s.autosync.Start(ctx)
	defer s.autosync.Stop()

	events := s.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return adapter.ErrConnectionClosed
			}
			if ev.Kind != models.RemoteSyncCompleted {
				continue
			}
			s.log.Debug().Int64("lastSynced", ev.LastSynced).Msg("remote sync completed, pulling changes")
			if err := s.Start(ctx, SyncOptions{Full: true}); err != nil {
				// Transient failures and unresolved conflicts keep the
				// listener alive; the queue and flag carry the state into
				// the next round.
				s.log.Error().Err(err).Msg("push triggered round failed")
			}
		}
	}
}

func (s *syncService) NotifyChange(change models.ItemChange) {
	s.autosync.OnChange(change)
}

func (s *syncService) Cancel() error {
	s.log.Info().Msg("cancelling sync")
	return s.transport.Close()
}

// runRound drives one round through init, collect, fetch, send and
// finalize. Any error leaves the queue holding exactly the unacknowledged
// ids and the watermark untouched.
func (s *syncService) runRound(ctx context.Context, opts SyncOptions) error {
	// init
	if err := s.transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := s.conflicts.Recalculate(ctx); err != nil {
		return err
	}
	if has, err := s.conflicts.Check(ctx); err != nil {
		return err
	} else if has {
		return ErrMergeConflict
	}

	var lastSynced int64
	if !opts.Force {
		var err error
		if lastSynced, err = s.store.KV().LastSynced(ctx); err != nil {
			return fmt.Errorf("read watermark: %w", err)
		}
	}
	newLastSynced := time.Now().UnixMilli()

	// collect
	var collected []string
	err := s.collector.Collect(ctx, lastSynced, opts.Force, func(chunk models.Chunk) error {
		for _, env := range chunk.Items {
			collected = append(collected, models.QueueID(chunk.Type, env.ID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	if _, err := s.queue.Merge(ctx, collected, newLastSynced); err != nil {
		return err
	}

	// fetch-remote
	var serverConfirmed int64
	if opts.Full {
		res, err := s.transport.FetchItemsSince(ctx, lastSynced, func(ti models.TransferItem) error {
			if err := s.merger.MergeRemote(ctx, ti); err != nil {
				return err
			}
			if opts.OnProgress != nil {
				opts.OnProgress(ProgressEvent{Direction: "download", Current: ti.Current, Total: ti.Total})
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("fetch remote items: %w", err)
		}
		serverConfirmed = res.LastSynced

		// Uploading local changes on top of an unresolved conflict would
		// clobber the user's other-device edits.
		if has, err := s.conflicts.Check(ctx); err != nil {
			return err
		} else if has {
			return ErrMergeConflict
		}
	}

	// pending attachment binaries go up before the metadata batches; a
	// confirmed upload re-queues its metadata so the new dateUploaded goes
	// out in this round even when the metadata was synced earlier
	confirmedUploads, err := s.uploadAttachments(ctx)
	if err != nil {
		return err
	}
	if len(confirmedUploads) > 0 {
		if _, err := s.queue.Merge(ctx, confirmedUploads, newLastSynced); err != nil {
			return err
		}
	}

	// send-local
	confirmed, sent, err := s.sendQueued(ctx, newLastSynced, opts.OnProgress)
	if confirmed > serverConfirmed {
		serverConfirmed = confirmed
	}
	if err != nil {
		return err
	}

	if sent > 0 {
		ack, err := s.transport.NotifySyncCompleted(ctx, newLastSynced)
		if err != nil {
			return fmt.Errorf("notify sync completed: %w", err)
		}
		if ack > serverConfirmed {
			serverConfirmed = ack
		}
	}

	// finalize: the watermark only ever moves forward
	previous, err := s.store.KV().LastSynced(ctx)
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}
	watermark := max(newLastSynced, serverConfirmed, previous)
	if err := s.store.KV().SetLastSynced(ctx, watermark); err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}

	s.log.Debug().
		Int("sent", sent).
		Int64("watermark", watermark).
		Bool("full", opts.Full).
		Msg("round finalized")
	return nil
}

// uploadAttachments pushes every pending binary, returning the queue ids of
// the attachments whose upload was confirmed. A single failed upload is
// recorded against its attachment and does not abort the rest.
func (s *syncService) uploadAttachments(ctx context.Context) ([]string, error) {
	pending, err := s.store.Attachments().Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending attachments: %w", err)
	}

	var confirmed []string
	for _, att := range pending {
		uploaded, err := s.files.Upload(ctx, att.Hash)
		if err != nil || !uploaded {
			reason := "upload rejected by server"
			if err != nil {
				reason = err.Error()
			}
			s.log.Warn().Str("hash", att.Hash).Str("reason", reason).Msg("attachment upload failed")
			if err := s.store.Attachments().MarkFailed(ctx, att.ID, reason); err != nil {
				return nil, fmt.Errorf("record attachment failure %s: %w", att.ID, err)
			}
			continue
		}
		if err := s.store.Attachments().MarkUploaded(ctx, att.ID, time.Now().UnixMilli()); err != nil {
			return nil, fmt.Errorf("record attachment upload %s: %w", att.ID, err)
		}
		confirmed = append(confirmed, models.QueueID(models.ItemAttachment, att.ID))
	}
	return confirmed, nil
}

// sendQueued uploads the queue in bounded batches. An id is dequeued only
// after its batch is positively acknowledged, so a drop mid-round leaves the
// queue holding exactly what is still outstanding.
func (s *syncService) sendQueued(ctx context.Context, newLastSynced int64, onProgress func(ProgressEvent)) (confirmed int64, sent int, err error) {
	rec, err := s.queue.Get(ctx)
	if err != nil {
		return 0, 0, err
	}
	if rec == nil || len(rec.ItemIDs) == 0 {
		return 0, 0, nil
	}

	keys := s.gateway.ListKeys()
	if len(keys) == 0 {
		return 0, 0, ErrNoKeys
	}
	keyVersion := keys[0].Version

	ids := rec.ItemIDs
	size := s.cfg.Engine.BatchSize
	total := (len(ids) + size - 1) / size

	for start, current := 0, 1; start < len(ids); start, current = start+size, current+1 {
		end := min(start+size, len(ids))
		group := ids[start:end]

		batch, sendIDs, stale, buildErr := s.buildBatch(ctx, group, keyVersion, newLastSynced, current, total)
		if buildErr != nil {
			return confirmed, sent, buildErr
		}

		// Records deleted locally since they were queued have nothing left
		// to send.
		if len(stale) > 0 {
			if _, err := s.queue.Dequeue(ctx, stale...); err != nil {
				return confirmed, sent, err
			}
		}
		if len(batch.Items) == 0 {
			continue
		}

		ack, sendErr := s.transport.SendBatch(ctx, batch)
		if sendErr != nil {
			return confirmed, sent, fmt.Errorf("send batch %d/%d: %w", current, total, sendErr)
		}
		if ack > confirmed {
			confirmed = ack
		}
		if _, err := s.queue.Dequeue(ctx, sendIDs...); err != nil {
			return confirmed, sent, err
		}
		sent += len(sendIDs)

		if onProgress != nil {
			onProgress(ProgressEvent{Direction: "upload", Current: current, Total: total})
		}
	}
	return confirmed, sent, nil
}

// buildBatch re-reads every queued record from the store so a resumed queue
// uploads current state, and re-encrypts it with the newest key.
func (s *syncService) buildBatch(ctx context.Context, group []string, keyVersion int, newLastSynced int64, current, total int) (models.Batch, []string, []string, error) {
	batch := models.Batch{
		Items:      make([]models.EncryptedEnvelope, 0, len(group)),
		Types:      make([]models.ItemType, 0, len(group)),
		LastSynced: newLastSynced,
		Current:    current,
		Total:      total,
	}
	sendIDs := make([]string, 0, len(group))
	var stale []string

	for _, qid := range group {
		collection, id, err := models.SplitQueueID(qid)
		if err != nil {
			stale = append(stale, qid)
			continue
		}
		typ, err := models.ParseCollection(collection)
		if err != nil {
			stale = append(stale, qid)
			continue
		}

		env, found, err := s.encryptQueued(ctx, typ, id, keyVersion)
		if err != nil {
			return models.Batch{}, nil, nil, fmt.Errorf("prepare queued %s: %w", qid, err)
		}
		if !found {
			stale = append(stale, qid)
			continue
		}
		batch.Items = append(batch.Items, env)
		batch.Types = append(batch.Types, typ)
		sendIDs = append(sendIDs, qid)
	}
	return batch, sendIDs, stale, nil
}

func (s *syncService) encryptQueued(ctx context.Context, typ models.ItemType, id string, keyVersion int) (models.EncryptedEnvelope, bool, error) {
	switch typ {
	case models.ItemNote:
		return encryptRecord(ctx, s.store.Notes(), s.gateway, typ, id, keyVersion, stripNote)
	case models.ItemNotebook:
		return encryptRecord(ctx, s.store.Notebooks(), s.gateway, typ, id, keyVersion, stripNotebook)
	case models.ItemContent:
		return encryptRecord(ctx, s.store.Content(), s.gateway, typ, id, keyVersion, stripContent)
	case models.ItemAttachment:
		return encryptRecord(ctx, s.store.Attachments(), s.gateway, typ, id, keyVersion, stripAttachment)
	case models.ItemSettings:
		return encryptRecord(ctx, s.store.Settings(), s.gateway, typ, id, keyVersion, stripSetting)
	case models.ItemRelation:
		return encryptRecord(ctx, s.store.Relations(), s.gateway, typ, id, keyVersion, stripRelation)
	default:
		return models.EncryptedEnvelope{}, false, fmt.Errorf("unhandled item type %s", typ)
	}
}

func encryptRecord[T any](ctx context.Context, repo store.Repository[T], gateway crypto.Gateway, typ models.ItemType, id string, keyVersion int, strip func(T) any) (models.EncryptedEnvelope, bool, error) {
	rec, err := repo.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.EncryptedEnvelope{}, false, nil
	}
	if err != nil {
		return models.EncryptedEnvelope{}, false, err
	}

	payload := strip(*rec)
	if any(rec).(models.Syncable).IsLocalOnly() {
		payload = models.NewTombstone(id, typ, time.Now().UnixMilli())
	}
	env, err := gateway.Encrypt(keyVersion, payload)
	if err != nil {
		return models.EncryptedEnvelope{}, false, err
	}
	return env, true, nil
}
