package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kwkeefer/hiro/internal/domain/missiondomain"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

// ActionRepo is the MissionAction aggregate repository.
type ActionRepo struct {
	q     Querier
	store *Store
}

func NewActionRepo(q Querier) *ActionRepo { return &ActionRepo{q: q} }

func NewLazyActionRepo(store *Store) *ActionRepo { return &ActionRepo{store: store} }

func (r *ActionRepo) withQuerier(ctx context.Context, fn func(q Querier) error) error {
	if r.q != nil {
		return fn(r.q)
	}
	return r.store.WithTx(ctx, func(tx *sql.Tx) error { return fn(tx) })
}

// Create inserts a MissionAction.
func (r *ActionRepo) Create(ctx context.Context, a *missiondomain.MissionAction) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO mission_actions (id, mission_id, action_type, technique, payload, result,
				success, learning, action_embedding, result_embedding, meta_data, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.MissionID, string(a.ActionType), a.Technique, a.Payload, a.Result, a.Success,
			a.Learning, encodeVector(a.ActionEmbedding), encodeVector(a.ResultEmbedding),
			encodeMap(a.MetaData), a.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return &toolerr.StoreError{Op: "CreateAction", Err: err}
		}
		return nil
	})
}

// GetByID fetches a single action, used by add_action_embeddings to
// recover the action_type a caller doesn't repeat in its params.
func (r *ActionRepo) GetByID(ctx context.Context, id string) (*missiondomain.MissionAction, error) {
	var result *missiondomain.MissionAction
	err := r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, actionSelect+` WHERE id = ?`, id)
		a, err := scanAction(row)
		if errors.Is(err, sql.ErrNoRows) {
			return toolerr.ErrNotFound
		}
		if err != nil {
			return &toolerr.StoreError{Op: "GetActionByID", Err: err}
		}
		result = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetEmbeddings updates the embedding columns for an existing action —
// used when embeddings are computed after insertion.
func (r *ActionRepo) SetEmbeddings(ctx context.Context, id string, actionEmbedding, resultEmbedding []float32) error {
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `UPDATE mission_actions SET action_embedding = ?, result_embedding = ? WHERE id = ?`,
			encodeVector(actionEmbedding), encodeVector(resultEmbedding), id)
		if err != nil {
			return &toolerr.StoreError{Op: "SetActionEmbeddings", Err: err}
		}
		return nil
	})
}

// LinkRecentRequests idempotently links requestIDs to action via the
// action_http_requests join table.
func (r *ActionRepo) LinkRecentRequests(ctx context.Context, actionID string, requestIDs []string) error {
	if len(requestIDs) == 0 {
		return nil
	}
	return r.withQuerier(ctx, func(q Querier) error {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		for _, reqID := range requestIDs {
			_, err := q.ExecContext(ctx, `
				INSERT INTO action_http_requests (action_id, request_id, created_at) VALUES (?, ?, ?)
				ON CONFLICT (action_id, request_id) DO NOTHING`, actionID, reqID, now)
			if err != nil {
				return &toolerr.StoreError{Op: "LinkActionRequests", Err: err}
			}
		}
		return nil
	})
}

// SummaryCounts returns total actions, successful actions, and the
// count of distinct techniques tried for a mission.
func (r *ActionRepo) SummaryCounts(ctx context.Context, missionID string) (total, success, uniqueTechniques int, err error) {
	err = r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(success), 0), COUNT(DISTINCT technique)
			FROM mission_actions WHERE mission_id = ?`, missionID)
		if scanErr := row.Scan(&total, &success, &uniqueTechniques); scanErr != nil {
			return &toolerr.StoreError{Op: "ActionSummaryCounts", Err: scanErr}
		}
		return nil
	})
	return total, success, uniqueTechniques, err
}

// Recent returns up to limit MissionActions for a mission, newest first.
func (r *ActionRepo) Recent(ctx context.Context, missionID string, limit int) ([]missiondomain.MissionAction, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []missiondomain.MissionAction
	err := r.withQuerier(ctx, func(q Querier) error {
		rows, err := q.QueryContext(ctx, actionSelect+`
			WHERE mission_id = ? ORDER BY created_at DESC LIMIT ?`, missionID, limit)
		if err != nil {
			return &toolerr.StoreError{Op: "RecentActions", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAction(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "RecentActions", Err: err}
			}
			out = append(out, *a)
		}
		return rows.Err()
	})
	return out, err
}

// FindSimilar returns every action carrying a non-null action_embedding,
// optionally filtered to mission and/or success, for in-process cosine
// ranking by the vector search service.
func (r *ActionRepo) FindSimilar(ctx context.Context, missionID string, successOnly bool) ([]missiondomain.MissionAction, error) {
	var out []missiondomain.MissionAction
	err := r.withQuerier(ctx, func(q Querier) error {
		query := actionSelect + ` WHERE action_embedding IS NOT NULL`
		var args []any
		if missionID != "" {
			query += ` AND mission_id = ?`
			args = append(args, missionID)
		}
		if successOnly {
			query += ` AND success = 1`
		}
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return &toolerr.StoreError{Op: "FindSimilarActions", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAction(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "FindSimilarActions", Err: err}
			}
			out = append(out, *a)
		}
		return rows.Err()
	})
	return out, err
}

// FindByTechnique returns all actions recorded for a given technique
// string across every mission, for success-pattern lookup.
func (r *ActionRepo) FindByTechnique(ctx context.Context, technique string) ([]missiondomain.MissionAction, error) {
	var out []missiondomain.MissionAction
	err := r.withQuerier(ctx, func(q Querier) error {
		rows, err := q.QueryContext(ctx, actionSelect+` WHERE technique = ? ORDER BY created_at DESC`, technique)
		if err != nil {
			return &toolerr.StoreError{Op: "FindByTechnique", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAction(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "FindByTechnique", Err: err}
			}
			out = append(out, *a)
		}
		return rows.Err()
	})
	return out, err
}

// TechniqueUsage is one row of an AggregateByTechnique result: a
// (technique, action_type) pair's usage and effectiveness across every
// mission it was tried in.
type TechniqueUsage struct {
	Technique    string
	ActionType   string
	UsageCount   int
	SuccessCount int
	SuccessRate  float64
	MissionCount int
}

// AggregateByTechnique groups actions by (technique, action_type),
// optionally filtered by success and a minimum usage count, ranked by
// success rate then usage.
func (r *ActionRepo) AggregateByTechnique(ctx context.Context, successOnly bool, minUsage, limit int) ([]TechniqueUsage, error) {
	if minUsage <= 0 {
		minUsage = 1
	}
	if limit <= 0 {
		limit = 20
	}
	var out []TechniqueUsage
	err := r.withQuerier(ctx, func(q Querier) error {
		query := `
			SELECT technique, action_type, COUNT(*) AS usage_count,
				SUM(success) AS success_count,
				AVG(CAST(success AS REAL)) AS success_rate,
				COUNT(DISTINCT mission_id) AS mission_count
			FROM mission_actions WHERE 1=1`
		var args []any
		if successOnly {
			query += ` AND success = 1`
		}
		query += ` GROUP BY technique, action_type HAVING usage_count >= ?`
		args = append(args, minUsage)
		query += ` ORDER BY success_rate DESC, usage_count DESC LIMIT ?`
		args = append(args, limit)

		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return &toolerr.StoreError{Op: "AggregateActionsByTechnique", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			var u TechniqueUsage
			if err := rows.Scan(&u.Technique, &u.ActionType, &u.UsageCount, &u.SuccessCount, &u.SuccessRate, &u.MissionCount); err != nil {
				return &toolerr.StoreError{Op: "AggregateActionsByTechnique", Err: err}
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	return out, err
}

// TechniqueStatsContext is one (mission_type, learning) bucket within a
// technique's failure or success breakdown.
type TechniqueStatsContext struct {
	MissionType string
	Learning    string
	Count       int
}

// TechniqueStats is the detailed per-technique breakdown get_technique_stats returns.
type TechniqueStats struct {
	Technique        string
	Found            bool
	TotalUses        int
	SuccessCount     int
	FailureCount     int
	SuccessRate      float64
	MissionsUsedIn   int
	ActionTypesUsed  int
	LastUsed         *time.Time
	FailureContexts  []TechniqueStatsContext
	SuccessContexts  []TechniqueStatsContext
}

// TechniqueStats computes detailed usage statistics for one exact
// technique name: overall counts plus the mission-type/learning
// contexts it most often failed or succeeded in.
func (r *ActionRepo) TechniqueStats(ctx context.Context, technique string) (*TechniqueStats, error) {
	stats := &TechniqueStats{Technique: technique}
	err := r.withQuerier(ctx, func(q Querier) error {
		var lastUsed *string
		row := q.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(success), 0), COUNT(DISTINCT mission_id),
				COUNT(DISTINCT action_type), MAX(created_at)
			FROM mission_actions WHERE technique = ?`, technique)
		if err := row.Scan(&stats.TotalUses, &stats.SuccessCount, &stats.MissionsUsedIn, &stats.ActionTypesUsed, &lastUsed); err != nil {
			return &toolerr.StoreError{Op: "TechniqueStats", Err: err}
		}
		if stats.TotalUses == 0 {
			return nil
		}
		stats.Found = true
		stats.FailureCount = stats.TotalUses - stats.SuccessCount
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.TotalUses)
		if lastUsed != nil {
			t, _ := time.Parse(time.RFC3339Nano, *lastUsed)
			stats.LastUsed = &t
		}

		var err error
		stats.FailureContexts, err = techniqueContexts(ctx, q, technique, false)
		if err != nil {
			return err
		}
		stats.SuccessContexts, err = techniqueContexts(ctx, q, technique, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func techniqueContexts(ctx context.Context, q Querier, technique string, success bool) ([]TechniqueStatsContext, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT m.mission_type, ta.learning, COUNT(*) AS n
		FROM mission_actions ta JOIN missions m ON ta.mission_id = m.id
		WHERE ta.technique = ? AND ta.success = ?
		GROUP BY m.mission_type, ta.learning ORDER BY n DESC LIMIT 5`, technique, success)
	if err != nil {
		return nil, &toolerr.StoreError{Op: "TechniqueStatsContexts", Err: err}
	}
	defer rows.Close()
	var out []TechniqueStatsContext
	for rows.Next() {
		var c TechniqueStatsContext
		if err := rows.Scan(&c.MissionType, &c.Learning, &c.Count); err != nil {
			return nil, &toolerr.StoreError{Op: "TechniqueStatsContexts", Err: err}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const actionSelect = `SELECT id, mission_id, action_type, technique, payload, result, success,
	learning, action_embedding, result_embedding, meta_data, created_at FROM mission_actions`

func scanAction(row scannable) (*missiondomain.MissionAction, error) {
	var a missiondomain.MissionAction
	var metaData, createdAt string
	var actionEmb, resultEmb []byte
	if err := row.Scan(&a.ID, &a.MissionID, &a.ActionType, &a.Technique, &a.Payload, &a.Result,
		&a.Success, &a.Learning, &actionEmb, &resultEmb, &metaData, &createdAt); err != nil {
		return nil, err
	}
	a.MetaData = decodeMap(metaData)
	a.ActionEmbedding = decodeVector(actionEmb)
	a.ResultEmbedding = decodeVector(resultEmb)
	a.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &a, nil
}
