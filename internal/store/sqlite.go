package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quillvault/syncengine/internal/config"
	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/models"
)

// sqliteStore implements [Store] on a single sqlite database: one items
// table for all record kinds plus a kv table for engine state.
type sqliteStore struct {
	db  *sql.DB
	log *logger.Logger

	notes       *repo[models.Note]
	notebooks   *repo[models.Notebook]
	content     *contentRepo
	attachments *attachmentRepo
	settings    *repo[models.Setting]
	relations   *repo[models.Relation]
	kv          *kvStore
}

// NewSQLite opens (or creates) the sqlite database at cfg.DSN, verifies the
// connection and applies the schema.
func NewSQLite(ctx context.Context, cfg config.Storage, log *logger.Logger) (Store, error) {
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// sqlite serializes writes itself; one connection avoids SQLITE_BUSY
	// on concurrent repo calls.
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Debug().Str("dsn", cfg.DSN).Msg("local store opened")
	return newStore(db, log), nil
}

// newStore wires the repositories over an already-open handle. Split from
// NewSQLite so tests can inject sqlmock.
func newStore(db *sql.DB, log *logger.Logger) *sqliteStore {
	s := &sqliteStore{db: db, log: log}
	s.notes = newRepo(db, models.ItemNote, noteRow)
	s.notebooks = newRepo(db, models.ItemNotebook, plainRow[models.Notebook])
	s.content = &contentRepo{repo: newRepo(db, models.ItemContent, contentRow)}
	s.attachments = &attachmentRepo{repo: newRepo(db, models.ItemAttachment, attachmentRow)}
	s.settings = newRepo(db, models.ItemSettings, plainRow[models.Setting])
	s.relations = newRepo(db, models.ItemRelation, plainRow[models.Relation])
	s.kv = &kvStore{db: db}
	return s
}

func (s *sqliteStore) Notes() NoteRepository               { return s.notes }
func (s *sqliteStore) Notebooks() NotebookRepository       { return s.notebooks }
func (s *sqliteStore) Content() ContentRepository          { return s.content }
func (s *sqliteStore) Attachments() AttachmentRepository   { return s.attachments }
func (s *sqliteStore) Settings() SettingRepository         { return s.settings }
func (s *sqliteStore) Relations() RelationRepository       { return s.relations }
func (s *sqliteStore) KV() KV                              { return s.kv }

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
