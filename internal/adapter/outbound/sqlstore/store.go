// Package sqlstore is the relational store backing the hiro MCP server:
// a pooled *sql.DB, a transactional scope helper, the embedded schema,
// and one repository per aggregate root from the data model.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Querier is satisfied by both *sql.DB and *sql.Tx, letting a
// repository run either directly against the pool or inside an
// outer transaction without knowing which.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var _ Querier = (*sql.DB)(nil)
var _ Querier = (*sql.Tx)(nil)
var _ Querier = (*sql.Conn)(nil)

// Store owns the connection pool and exposes the scoped-transaction
// primitive repositories are built on.
type Store struct {
	dsn         string
	poolSize    int
	maxOverflow int
	poolTimeout time.Duration

	once sync.Once
	db   *sql.DB
	err  error
}

// New builds a Store from the raw configuration values. Opening the
// connection is deferred to the first call that needs it (Open,
// WithTx, DB) so a misconfigured database doesn't prevent the process
// from serving tools that don't touch it — the cookie and prompt
// resources in particular.
func New(dsn string, poolSize, maxOverflow int, poolTimeout time.Duration) *Store {
	return &Store{
		dsn:         dsn,
		poolSize:    poolSize,
		maxOverflow: maxOverflow,
		poolTimeout: poolTimeout,
	}
}

// isInMemory reports whether dsn addresses a single in-process sqlite
// database, which must never be handed out to more than one
// connection at a time or each goroutine would see its own empty copy.
func isInMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// ensureOpen opens the pool and applies the schema exactly once,
// reentrant-safe under concurrent first callers.
func (s *Store) ensureOpen(ctx context.Context) error {
	s.once.Do(func() {
		db, err := sql.Open("sqlite", s.dsn)
		if err != nil {
			s.err = fmt.Errorf("sqlstore: open %q: %w", s.dsn, err)
			return
		}
		if isInMemory(s.dsn) {
			db.SetMaxOpenConns(1)
		} else {
			poolSize := s.poolSize
			if poolSize < 1 {
				poolSize = 1
			}
			db.SetMaxOpenConns(poolSize + s.maxOverflow)
			db.SetMaxIdleConns(poolSize)
		}

		pingCtx := ctx
		var cancel context.CancelFunc
		if s.poolTimeout > 0 {
			pingCtx, cancel = context.WithTimeout(ctx, s.poolTimeout)
			defer cancel()
		}
		if err := db.PingContext(pingCtx); err != nil {
			s.err = fmt.Errorf("sqlstore: ping: %w", err)
			db.Close()
			return
		}
		if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
			s.err = fmt.Errorf("sqlstore: apply schema: %w", err)
			db.Close()
			return
		}
		s.db = db
	})
	return s.err
}

// Open is ensureOpen exposed for callers (e.g. cmd/hiro) that want to
// fail fast at startup rather than on first tool call.
func (s *Store) Open(ctx context.Context) error {
	return s.ensureOpen(ctx)
}

// DB returns the underlying pool, opening it on first call.
func (s *Store) DB(ctx context.Context) (*sql.DB, error) {
	if err := s.ensureOpen(ctx); err != nil {
		return nil, err
	}
	return s.db, nil
}

// Close releases the pool. Safe to call on a Store that was never opened.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn inside a transaction: commit on success, rollback on
// error, rollback-then-repanic on panic. This is the scoped-session
// primitive for multi-statement writes through repositories built on
// the *sql.Tx, such as creating a mission together with its target
// link; context version creation uses WithImmediateTx instead.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	db, err := s.DB(ctx)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

const (
	immediateTxMaxAttempts = 5
	immediateTxBaseDelay   = 10 * time.Millisecond
)

// isBusyOrConflict reports whether err is the class of sqlite error a
// bounded retry can recover from: the writer lock was already held
// (SQLITE_BUSY) or two immediate-tx writers raced past the lock onto
// the same unique key (target_id, version).
func isBusyOrConflict(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "busy") ||
		strings.Contains(msg, "unique constraint")
}

// WithImmediateTx is WithTx's counterpart for writers that must
// observe a consistent read before they write: it takes BEGIN
// IMMEDIATE's write lock upfront, on a connection pinned for the
// duration of fn, instead of letting sqlite upgrade a deferred
// transaction's lock lazily on first write. Two concurrent callers
// racing for the same target therefore serialize at BEGIN IMMEDIATE
// rather than both reading the same "current max version" and
// conflicting at commit time. If the lock is already held, or a
// conflict slips through anyway, fn is retried with jittered backoff
// up to immediateTxMaxAttempts before the error is returned as-is.
func (s *Store) WithImmediateTx(ctx context.Context, fn func(q Querier) error) error {
	db, err := s.DB(ctx)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < immediateTxMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := immediateTxBaseDelay * time.Duration(1<<uint(attempt-1))
			delay += time.Duration(rand.Int63n(int64(immediateTxBaseDelay)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := s.runImmediateTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !isBusyOrConflict(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("sqlstore: immediate tx: exhausted %d attempts: %w", immediateTxMaxAttempts, lastErr)
}

// runImmediateTx executes one BEGIN IMMEDIATE attempt on a connection
// pinned for its duration, since the lock BEGIN IMMEDIATE takes is
// connection-scoped.
func (s *Store) runImmediateTx(ctx context.Context, db *sql.DB, fn func(q Querier) error) (err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("sqlstore: acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("sqlstore: begin immediate: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			panic(p)
		}
	}()

	if err = fn(conn); err != nil {
		if _, rbErr := conn.ExecContext(ctx, "ROLLBACK"); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}
