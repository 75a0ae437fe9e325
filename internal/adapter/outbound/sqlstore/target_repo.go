package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kwkeefer/hiro/internal/domain/target"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

// TargetRepo is the Target aggregate repository. Constructed either
// with NewTargetRepo over a caller-owned Querier (no commit, the
// caller's transaction wins) or with NewLazyTargetRepo over a Store,
// opening its own transaction per call.
type TargetRepo struct {
	q     Querier
	store *Store
}

// NewTargetRepo builds a TargetRepo that runs directly against q and
// never commits; used inside an outer Store.WithTx scope.
func NewTargetRepo(q Querier) *TargetRepo { return &TargetRepo{q: q} }

// NewLazyTargetRepo builds a TargetRepo that opens its own scope per
// method call; used by the HTTP tool so a later network failure never
// aborts an unrelated write.
func NewLazyTargetRepo(store *Store) *TargetRepo { return &TargetRepo{store: store} }

func (r *TargetRepo) withQuerier(ctx context.Context, fn func(q Querier) error) error {
	if r.q != nil {
		return fn(r.q)
	}
	return r.store.WithTx(ctx, func(tx *sql.Tx) error { return fn(tx) })
}

// GetOrCreateFromURL parses rawURL, looks up (host, port, protocol),
// inserting a new Target with risk_level=low, status=active,
// title="host:port/protocol" when absent, and always bumps
// last_activity before returning.
func (r *TargetRepo) GetOrCreateFromURL(ctx context.Context, rawURL string) (*target.Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &toolerr.StoreError{Op: "GetOrCreateFromURL", Err: fmt.Errorf("invalid url %q: %w", rawURL, err)}
	}
	host := u.Hostname()
	protocol := u.Scheme
	var port *int
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err == nil {
			port = &n
		}
	}

	var result target.Target
	err = r.withQuerier(ctx, func(q Querier) error {
		existing, err := getTargetByEndpoint(ctx, q, host, port, protocol)
		if err != nil && !errors.Is(err, toolerr.ErrNotFound) {
			return err
		}
		now := time.Now().UTC()
		if existing != nil {
			existing.LastActivity = now
			existing.UpdatedAt = now
			if err := bumpTargetActivity(ctx, q, existing.ID, now); err != nil {
				return err
			}
			result = *existing
			result.LastActivity = now
			result.UpdatedAt = now
			return nil
		}

		portLabel := "default"
		if port != nil {
			portLabel = strconv.Itoa(*port)
		}
		t := target.Target{
			ID:            uuid.NewString(),
			Host:          host,
			Port:          port,
			Protocol:      protocol,
			Title:         fmt.Sprintf("%s:%s/%s", host, portLabel, protocol),
			Status:        target.StatusActive,
			RiskLevel:     target.RiskLow,
			ExtraData:     map[string]string{},
			DiscoveryDate: now,
			LastActivity:  now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := insertTarget(ctx, q, &t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Create inserts a Target directly (manual registration, as opposed to
// the GetOrCreateFromURL path the HTTP tool drives).
func (r *TargetRepo) Create(ctx context.Context, t *target.Target) error {
	t.ID = uuid.NewString()
	now := time.Now().UTC()
	t.DiscoveryDate, t.LastActivity, t.CreatedAt, t.UpdatedAt = now, now, now, now
	if t.ExtraData == nil {
		t.ExtraData = map[string]string{}
	}
	if t.Title == "" {
		portLabel := "default"
		if t.Port != nil {
			portLabel = strconv.Itoa(*t.Port)
		}
		t.Title = fmt.Sprintf("%s:%s/%s", t.Host, portLabel, t.Protocol)
	}
	return r.withQuerier(ctx, func(q Querier) error { return insertTarget(ctx, q, t) })
}

// UpdateTitle patches a target's descriptive title.
func (r *TargetRepo) UpdateTitle(ctx context.Context, id, title string) error {
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `UPDATE targets SET title = ?, updated_at = ? WHERE id = ?`,
			title, time.Now().UTC().Format(time.RFC3339Nano), id)
		if err != nil {
			return &toolerr.StoreError{Op: "UpdateTargetTitle", Err: err}
		}
		return nil
	})
}

func insertTarget(ctx context.Context, q Querier, t *target.Target) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO targets (id, host, port, protocol, title, status, risk_level, extra_data,
			current_context_id, discovery_date, last_activity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Host, t.Port, t.Protocol, t.Title, string(t.Status), string(t.RiskLevel),
		encodeMap(t.ExtraData), t.CurrentContextID,
		t.DiscoveryDate.Format(time.RFC3339Nano), t.LastActivity.Format(time.RFC3339Nano),
		t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return &toolerr.StoreError{Op: "InsertTarget", Err: err}
	}
	return nil
}

func bumpTargetActivity(ctx context.Context, q Querier, id string, at time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE targets SET last_activity = ?, updated_at = ? WHERE id = ?`,
		at.Format(time.RFC3339Nano), at.Format(time.RFC3339Nano), id)
	if err != nil {
		return &toolerr.StoreError{Op: "BumpTargetActivity", Err: err}
	}
	return nil
}

func getTargetByEndpoint(ctx context.Context, q Querier, host string, port *int, protocol string) (*target.Target, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, host, port, protocol, title, status, risk_level, extra_data, current_context_id,
			discovery_date, last_activity, created_at, updated_at
		FROM targets WHERE host = ? AND protocol = ? AND port IS ?`, host, protocol, port)
	t, err := scanTarget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, toolerr.ErrNotFound
	}
	if err != nil {
		return nil, &toolerr.StoreError{Op: "GetTargetByEndpoint", Err: err}
	}
	return t, nil
}

// GetByID fetches a Target by id.
func (r *TargetRepo) GetByID(ctx context.Context, id string) (*target.Target, error) {
	var result *target.Target
	err := r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, `
			SELECT id, host, port, protocol, title, status, risk_level, extra_data, current_context_id,
				discovery_date, last_activity, created_at, updated_at
			FROM targets WHERE id = ?`, id)
		t, err := scanTarget(row)
		if errors.Is(err, sql.ErrNoRows) {
			return toolerr.ErrNotFound
		}
		if err != nil {
			return &toolerr.StoreError{Op: "GetTargetByID", Err: err}
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateStatus patches status and, when non-nil, risk_level.
func (r *TargetRepo) UpdateStatus(ctx context.Context, id string, status target.Status, riskLevel *target.RiskLevel) error {
	return r.withQuerier(ctx, func(q Querier) error {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		var err error
		if riskLevel != nil {
			_, err = q.ExecContext(ctx, `UPDATE targets SET status = ?, risk_level = ?, updated_at = ? WHERE id = ?`,
				string(status), string(*riskLevel), now, id)
		} else {
			_, err = q.ExecContext(ctx, `UPDATE targets SET status = ?, updated_at = ? WHERE id = ?`,
				string(status), now, id)
		}
		if err != nil {
			return &toolerr.StoreError{Op: "UpdateTargetStatus", Err: err}
		}
		return nil
	})
}

// SetCurrentContext advances a target's current context pointer.
// Runs against whatever Querier this repo was built with, so a
// caller-owned transaction (the Context Versioner) can do this
// atomically alongside the version insert.
func (r *TargetRepo) SetCurrentContext(ctx context.Context, targetID, contextID string) error {
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `UPDATE targets SET current_context_id = ?, updated_at = ? WHERE id = ?`,
			contextID, time.Now().UTC().Format(time.RFC3339Nano), targetID)
		if err != nil {
			return &toolerr.StoreError{Op: "SetCurrentContext", Err: err}
		}
		return nil
	})
}

// Search filters targets by status, risk level, protocol, and a
// substring match on host or title.
func (r *TargetRepo) Search(ctx context.Context, params target.SearchParams) ([]target.Target, error) {
	var out []target.Target
	err := r.withQuerier(ctx, func(q Querier) error {
		var b strings.Builder
		b.WriteString(`SELECT id, host, port, protocol, title, status, risk_level, extra_data, current_context_id,
			discovery_date, last_activity, created_at, updated_at FROM targets WHERE 1=1`)
		var args []any
		if params.Status != "" {
			b.WriteString(" AND status = ?")
			args = append(args, string(params.Status))
		}
		if params.RiskLevel != "" {
			b.WriteString(" AND risk_level = ?")
			args = append(args, string(params.RiskLevel))
		}
		if params.Protocol != "" {
			b.WriteString(" AND protocol = ?")
			args = append(args, params.Protocol)
		}
		if params.HostOrTitle != "" {
			b.WriteString(" AND (host LIKE ? OR title LIKE ?)")
			like := "%" + params.HostOrTitle + "%"
			args = append(args, like, like)
		}
		b.WriteString(" ORDER BY last_activity DESC")
		limit := params.Limit
		if limit <= 0 {
			limit = 50
		}
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, limit, params.Offset)

		rows, err := q.QueryContext(ctx, b.String(), args...)
		if err != nil {
			return &toolerr.StoreError{Op: "SearchTargets", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTarget(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "SearchTargets", Err: err}
			}
			out = append(out, *t)
		}
		return rows.Err()
	})
	return out, err
}

// GetSummary fetches a Target plus its aggregated child counts: linked
// HTTP requests, linked missions, actions recorded across those
// missions, and the target's current context version number.
func (r *TargetRepo) GetSummary(ctx context.Context, id string) (*target.Summary, error) {
	var result *target.Summary
	err := r.withQuerier(ctx, func(q Querier) error {
		t, err := (&TargetRepo{q: q}).GetByID(ctx, id)
		if err != nil {
			return err
		}

		s := target.Summary{Target: *t}
		row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM target_http_requests WHERE target_id = ?`, id)
		if err := row.Scan(&s.HTTPRequestCount); err != nil {
			return &toolerr.StoreError{Op: "TargetSummary.HTTPRequestCount", Err: err}
		}

		row = q.QueryRowContext(ctx, `SELECT COUNT(*) FROM mission_targets WHERE target_id = ?`, id)
		if err := row.Scan(&s.MissionCount); err != nil {
			return &toolerr.StoreError{Op: "TargetSummary.MissionCount", Err: err}
		}

		row = q.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM mission_actions ma
			JOIN mission_targets mt ON mt.mission_id = ma.mission_id
			WHERE mt.target_id = ?`, id)
		if err := row.Scan(&s.ActionCount); err != nil {
			return &toolerr.StoreError{Op: "TargetSummary.ActionCount", Err: err}
		}

		if t.CurrentContextID != nil {
			row = q.QueryRowContext(ctx, `SELECT version FROM target_contexts WHERE id = ?`, *t.CurrentContextID)
			if err := row.Scan(&s.ContextVersion); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return &toolerr.StoreError{Op: "TargetSummary.ContextVersion", Err: err}
			}
		}

		result = &s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTarget(row scannable) (*target.Target, error) {
	var t target.Target
	var extraData string
	var discovery, lastActivity, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Host, &t.Port, &t.Protocol, &t.Title, &t.Status, &t.RiskLevel,
		&extraData, &t.CurrentContextID, &discovery, &lastActivity, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.ExtraData = decodeMap(extraData)
	t.DiscoveryDate, _ = time.Parse(time.RFC3339Nano, discovery)
	t.LastActivity, _ = time.Parse(time.RFC3339Nano, lastActivity)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &t, nil
}
