package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	s := New(dsn, 1, 0, 5*time.Second)
	t.Cleanup(func() { s.Close() })
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestStore_OpenAppliesSchema(t *testing.T) {
	s := newTestStore(t)
	db, err := s.DB(context.Background())
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	var name string
	row := db.QueryRowContext(context.Background(), `SELECT name FROM sqlite_master WHERE type='table' AND name='targets'`)
	if err := row.Scan(&name); err != nil {
		t.Fatalf("expected targets table to exist: %v", err)
	}
}

func TestStore_WithTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO targets (id, host, port, protocol, title, status, risk_level, extra_data,
				current_context_id, discovery_date, last_activity, created_at, updated_at)
			VALUES ('t1', 'example.com', NULL, 'https', 'x', 'active', 'low', '{}', NULL,
				'2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	db, _ := s.DB(ctx)
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM targets WHERE id = 't1'`).Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected committed row, got count=%d", count)
	}
}

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sentinel := errors.New("boom")
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, `
			INSERT INTO targets (id, host, port, protocol, title, status, risk_level, extra_data,
				current_context_id, discovery_date, last_activity, created_at, updated_at)
			VALUES ('t2', 'example.com', NULL, 'https', 'x', 'active', 'low', '{}', NULL,
				'2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
		if execErr != nil {
			return execErr
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	db, _ := s.DB(ctx)
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM targets WHERE id = 't2'`).Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, got count=%d", count)
	}
}

func TestStore_WithImmediateTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	err := s.WithImmediateTx(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO targets (id, host, port, protocol, title, status, risk_level, extra_data,
				current_context_id, discovery_date, last_activity, created_at, updated_at)
			VALUES ('t3', 'example.com', NULL, 'https', 'x', 'active', 'low', '{}', NULL,
				'2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
		return err
	})
	if err != nil {
		t.Fatalf("WithImmediateTx: %v", err)
	}

	db, _ := s.DB(ctx)
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM targets WHERE id = 't3'`).Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected committed row, got count=%d", count)
	}
}

func TestStore_WithImmediateTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sentinel := errors.New("boom")
	err := s.WithImmediateTx(ctx, func(q Querier) error {
		_, execErr := q.ExecContext(ctx, `
			INSERT INTO targets (id, host, port, protocol, title, status, risk_level, extra_data,
				current_context_id, discovery_date, last_activity, created_at, updated_at)
			VALUES ('t4', 'example.com', NULL, 'https', 'x', 'active', 'low', '{}', NULL,
				'2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z', '2026-01-01T00:00:00Z')`)
		if execErr != nil {
			return execErr
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	db, _ := s.DB(ctx)
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM targets WHERE id = 't4'`).Scan(&count); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, got count=%d", count)
	}
}
