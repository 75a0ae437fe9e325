package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kwkeefer/hiro/internal/domain/targetcontext"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

// ContextRepo is the TargetContext aggregate repository: an
// append-only version chain. Only Insert/Get/List/Search operations
// exist — there is deliberately no Update, since rows are immutable
// once written.
type ContextRepo struct {
	q     Querier
	store *Store
}

func NewContextRepo(q Querier) *ContextRepo { return &ContextRepo{q: q} }

func NewLazyContextRepo(store *Store) *ContextRepo { return &ContextRepo{store: store} }

func (r *ContextRepo) withQuerier(ctx context.Context, fn func(q Querier) error) error {
	if r.q != nil {
		return fn(r.q)
	}
	return r.store.WithTx(ctx, func(tx *sql.Tx) error { return fn(tx) })
}

// MaxVersion returns the highest version number recorded for target,
// or 0 if none exist.
func (r *ContextRepo) MaxVersion(ctx context.Context, targetID string) (int, error) {
	var max int
	err := r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM target_contexts WHERE target_id = ?`, targetID)
		if err := row.Scan(&max); err != nil {
			return &toolerr.StoreError{Op: "MaxContextVersion", Err: err}
		}
		return nil
	})
	return max, err
}

// Insert writes a new, immutable TargetContext version.
func (r *ContextRepo) Insert(ctx context.Context, c *targetcontext.TargetContext) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO target_contexts (id, target_id, version, user_context, agent_context,
				parent_version_id, change_type, change_summary, created_by, is_major_version,
				tokens_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.TargetID, c.Version, c.UserContext, c.AgentContext, c.ParentVersionID,
			string(c.ChangeType), c.ChangeSummary, c.CreatedBy, c.IsMajorVersion, c.TokensCount,
			c.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return &toolerr.StoreError{Op: "InsertContextVersion", Err: err}
		}
		return nil
	})
}

// GetByID fetches a single version.
func (r *ContextRepo) GetByID(ctx context.Context, id string) (*targetcontext.TargetContext, error) {
	var result *targetcontext.TargetContext
	err := r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, contextSelect+` WHERE id = ?`, id)
		c, err := scanContext(row)
		if errors.Is(err, sql.ErrNoRows) {
			return toolerr.ErrNotFound
		}
		if err != nil {
			return &toolerr.StoreError{Op: "GetContextByID", Err: err}
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetByTargetAndVersion fetches one version by its per-target number.
func (r *ContextRepo) GetByTargetAndVersion(ctx context.Context, targetID string, version int) (*targetcontext.TargetContext, error) {
	var result *targetcontext.TargetContext
	err := r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, contextSelect+` WHERE target_id = ? AND version = ?`, targetID, version)
		c, err := scanContext(row)
		if errors.Is(err, sql.ErrNoRows) {
			return toolerr.ErrNotFound
		}
		if err != nil {
			return &toolerr.StoreError{Op: "GetContextByVersion", Err: err}
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListVersions lists a target's versions, newest first.
func (r *ContextRepo) ListVersions(ctx context.Context, targetID string, limit, offset int) ([]targetcontext.TargetContext, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []targetcontext.TargetContext
	err := r.withQuerier(ctx, func(q Querier) error {
		rows, err := q.QueryContext(ctx, contextSelect+`
			WHERE target_id = ? ORDER BY version DESC LIMIT ? OFFSET ?`, targetID, limit, offset)
		if err != nil {
			return &toolerr.StoreError{Op: "ListContextVersions", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanContext(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "ListContextVersions", Err: err}
			}
			out = append(out, *c)
		}
		return rows.Err()
	})
	return out, err
}

// Search substring-matches user_context, agent_context, and
// change_summary, optionally restricted to a set of target ids.
func (r *ContextRepo) Search(ctx context.Context, params targetcontext.SearchParams) ([]targetcontext.TargetContext, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []targetcontext.TargetContext
	err := r.withQuerier(ctx, func(q Querier) error {
		var b strings.Builder
		b.WriteString(contextSelect + ` WHERE (user_context LIKE ? OR agent_context LIKE ? OR change_summary LIKE ?)`)
		like := "%" + params.Query + "%"
		args := []any{like, like, like}
		if len(params.TargetIDs) > 0 {
			b.WriteString(" AND target_id IN (")
			for i, id := range params.TargetIDs {
				if i > 0 {
					b.WriteString(",")
				}
				b.WriteString("?")
				args = append(args, id)
			}
			b.WriteString(")")
		}
		b.WriteString(" ORDER BY created_at DESC LIMIT ?")
		args = append(args, limit)

		rows, err := q.QueryContext(ctx, b.String(), args...)
		if err != nil {
			return &toolerr.StoreError{Op: "SearchContexts", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanContext(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "SearchContexts", Err: err}
			}
			out = append(out, *c)
		}
		return rows.Err()
	})
	return out, err
}

const contextSelect = `SELECT id, target_id, version, user_context, agent_context, parent_version_id,
	change_type, change_summary, created_by, is_major_version, tokens_count, created_at FROM target_contexts`

func scanContext(row scannable) (*targetcontext.TargetContext, error) {
	var c targetcontext.TargetContext
	var createdAt string
	if err := row.Scan(&c.ID, &c.TargetID, &c.Version, &c.UserContext, &c.AgentContext,
		&c.ParentVersionID, &c.ChangeType, &c.ChangeSummary, &c.CreatedBy, &c.IsMajorVersion,
		&c.TokensCount, &createdAt); err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &c, nil
}
