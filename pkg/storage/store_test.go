package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockStore returns a store backed by sqlmock. Queries keep their '?'
// placeholders because sqlx does not rebind for unknown drivers.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := DefaultConfig()
	cfg.AcquireTimeout = 50 * time.Millisecond
	return NewStore(sqlx.NewDb(db, "sqlmock"), cfg), mock
}

func newMockSession(t *testing.T) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	store, mock := newMockStore(t)
	return store.Session(), mock
}

type recordingObserver struct {
	ops  []string
	errs []error
}

func (r *recordingObserver) ObserveQuery(op string, _ time.Duration, err error) {
	r.ops = append(r.ops, op)
	r.errs = append(r.errs, err)
}

func TestStore_AcquireAndClose(t *testing.T) {
	store, mock := newMockStore(t)

	sess, err := store.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.NoError(t, sess.Close())
	// Closing twice is harmless
	assert.NoError(t, sess.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_AcquirePoolExhausted(t *testing.T) {
	store, _ := newMockStore(t)
	store.DB().SetMaxOpenConns(1)

	held, err := store.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Close()

	start := time.Now()
	_, err = store.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestStore_AcquireAfterRelease(t *testing.T) {
	store, _ := newMockStore(t)
	store.DB().SetMaxOpenConns(1)

	first, err := store.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := store.Acquire(context.Background())
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestSession_WithTxCommit(t *testing.T) {
	sess, mock := newMockSession(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM architecture`).WithArgs(int64(3)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := sess.WithTx(context.Background(), func(tx *Session) error {
		_, err := tx.DeleteArchitecture(context.Background(), 3)
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_WithTxRollback(t *testing.T) {
	sess, mock := newMockSession(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := sess.WithTx(context.Background(), func(tx *Session) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ObserverReceivesOutcome(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	obs := &recordingObserver{}
	store := NewStore(sqlx.NewDb(db, "sqlmock"), DefaultConfig(), WithObserver(obs))

	mock.ExpectQuery(`SELECT id, version, build FROM firmware`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "version", "build"}).AddRow(1, "6.2", 25556))

	fw, err := store.Session().ListFirmware(context.Background())
	require.NoError(t, err)
	require.Len(t, fw, 1)

	assert.Equal(t, []string{"ListFirmware"}, obs.ops)
	assert.NoError(t, obs.errs[0])
}
