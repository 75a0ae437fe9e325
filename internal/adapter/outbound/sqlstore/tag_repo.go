package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/kwkeefer/hiro/internal/domain/httprequest"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

// TagRepo is the RequestTag repository: free-form annotations on an
// HttpRequest, unique per (request_id, tag).
type TagRepo struct {
	q     Querier
	store *Store
}

func NewTagRepo(q Querier) *TagRepo { return &TagRepo{q: q} }

func NewLazyTagRepo(store *Store) *TagRepo { return &TagRepo{store: store} }

func (r *TagRepo) withQuerier(ctx context.Context, fn func(q Querier) error) error {
	if r.q != nil {
		return fn(r.q)
	}
	return r.store.WithTx(ctx, func(tx *sql.Tx) error { return fn(tx) })
}

// Add idempotently tags a request.
func (r *TagRepo) Add(ctx context.Context, requestID, tag string) error {
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO request_tags (request_id, tag, created_at) VALUES (?, ?, ?)
			ON CONFLICT (request_id, tag) DO NOTHING`,
			requestID, tag, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return &toolerr.StoreError{Op: "AddRequestTag", Err: err}
		}
		return nil
	})
}

// ListForRequest returns every tag recorded against a request.
func (r *TagRepo) ListForRequest(ctx context.Context, requestID string) ([]httprequest.Tag, error) {
	var out []httprequest.Tag
	err := r.withQuerier(ctx, func(q Querier) error {
		rows, err := q.QueryContext(ctx, `SELECT request_id, tag, created_at FROM request_tags WHERE request_id = ?`, requestID)
		if err != nil {
			return &toolerr.StoreError{Op: "ListRequestTags", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			var t httprequest.Tag
			var createdAt string
			if err := rows.Scan(&t.RequestID, &t.Tag, &createdAt); err != nil {
				return &toolerr.StoreError{Op: "ListRequestTags", Err: err}
			}
			t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}
