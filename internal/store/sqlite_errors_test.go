package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillvault/syncengine/internal/logger"
	"github.com/quillvault/syncengine/models"
)

// Error paths are driven through sqlmock; the happy paths run against a real
// in-memory database in repositories_test.go.

func newMockStore(t *testing.T) (*sqliteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newStore(db, logger.Nop()), mock
}

func TestRepo_GetQueryError(t *testing.T) {
	s, mock := newMockStore(t)
	dbErr := errors.New("disk I/O error")

	mock.ExpectQuery("SELECT synced, payload").WillReturnError(dbErr)

	_, err := s.Notes().Get(context.Background(), "n1")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_PutExecError(t *testing.T) {
	s, mock := newMockStore(t)
	dbErr := errors.New("database is locked")

	mock.ExpectExec("INSERT INTO items").WillReturnError(dbErr)

	err := s.Notes().Put(context.Background(), testNote("n1", 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_DecodeErrorOnCorruptPayload(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"synced", "payload"}).AddRow(false, "{not json")
	mock.ExpectQuery("SELECT synced, payload").WillReturnRows(rows)

	_, err := s.Notes().Get(context.Background(), "n1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode note payload")
}

func TestKV_ParseErrorOnCorruptWatermark(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"value"}).AddRow("not-a-number")
	mock.ExpectQuery("SELECT value FROM kv").WillReturnRows(rows)

	_, err := s.KV().LastSynced(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse lastSynced")
}

func TestKV_CorruptQueueRecord(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"value"}).AddRow("][")
	mock.ExpectQuery("SELECT value FROM kv").WillReturnRows(rows)

	_, err := s.KV().SyncQueue(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode sync queue")
}

func TestRepo_MarkSyncedExecError(t *testing.T) {
	s, mock := newMockStore(t)
	dbErr := errors.New("database is locked")

	mock.ExpectExec("UPDATE items SET synced").WillReturnError(dbErr)

	err := s.Content().MarkSynced(context.Background(), "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

func TestRepo_SelectScanError(t *testing.T) {
	s, mock := newMockStore(t)

	// payload column missing forces a scan error
	rows := sqlmock.NewRows([]string{"synced"}).AddRow(true)
	mock.ExpectQuery("SELECT synced, payload").WillReturnRows(rows)

	_, err := s.Notes().All(context.Background())
	require.Error(t, err)
}

func TestAttachmentRepo_PendingUsesUploadFilter(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"synced", "payload"}).
		AddRow(false, `{"id":"a1","type":"attachment","hash":"h1"}`)
	mock.ExpectQuery("SELECT synced, payload FROM items").
		WithArgs(models.ItemAttachment.String(), false, false, 0).
		WillReturnRows(rows)

	got, err := s.Attachments().Pending(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
