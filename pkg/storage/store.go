package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when no pooled connection could be acquired
	ErrUnavailable = errors.New("database connection unavailable")
)

var tracer = otel.Tracer("github.com/platinummonkey/spkrepo/pkg/storage")

// Store owns the connection pool and the state shared by sessions.
type Store struct {
	db             *sqlx.DB
	acquireTimeout time.Duration
	languages      *lru.LRU[string, int64]
	observer       Observer
}

// Option configures a Store
type Option func(*Store)

// WithObserver reports query outcomes to o
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// Open connects to the configured database, applies pool settings and pings it.
func Open(cfg Config, opts ...Option) (*Store, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Driver, err)
	}

	return NewStore(db, cfg, opts...), nil
}

// NewStore wraps an already opened database.
func NewStore(db *sqlx.DB, cfg Config, opts ...Option) *Store {
	size := cfg.LanguageCacheSize
	if size <= 0 {
		size = 64
	}
	acquire := cfg.AcquireTimeout
	if acquire <= 0 {
		acquire = 5 * time.Second
	}

	s := &Store{
		db:             db,
		acquireTimeout: acquire,
		languages:      lru.NewLRU[string, int64](size, nil, cfg.LanguageCacheTTL),
		observer:       nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying pool
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Stats returns connection pool statistics
func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

// Close closes the pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Acquire borrows one connection from the pool. It waits at most the
// configured acquire timeout and returns ErrUnavailable when the pool cannot
// hand out a connection in time. The caller must Close the session.
func (s *Store) Acquire(ctx context.Context) (*Session, error) {
	actx, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()

	conn, err := s.db.Connx(actx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Session{q: conn, conn: conn, store: s}, nil
}

// Session returns a session that runs every query on the pool directly.
// Used by background jobs and the admin CLI.
func (s *Store) Session() *Session {
	return &Session{q: s.db, store: s}
}

// Session runs queries on one Querier.
type Session struct {
	q     Querier
	conn  *sqlx.Conn
	store *Store
}

// Close returns the borrowed connection to the pool. It is a no-op for
// sessions that do not own a connection.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise.
func (s *Session) WithTx(ctx context.Context, fn func(tx *Session) error) error {
	var (
		tx  *sqlx.Tx
		err error
	)
	if s.conn != nil {
		tx, err = s.conn.BeginTxx(ctx, nil)
	} else {
		tx, err = s.store.db.BeginTxx(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Session{q: tx, store: s.store}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// op starts a span for a query and returns the function that ends it.
func (s *Session) op(ctx context.Context, name string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(attribute.String("db.operation", name)),
	)
	return ctx, func(err error) {
		if err != nil && !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.store.observer.ObserveQuery(name, time.Since(start), err)
	}
}

func (s *Session) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, s.q, dest, s.q.Rebind(query), args...)
}

func (s *Session) getOne(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := sqlx.GetContext(ctx, s.q, dest, s.q.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Session) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
