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

// MissionRepo is the Mission aggregate repository.
type MissionRepo struct {
	q     Querier
	store *Store
}

func NewMissionRepo(q Querier) *MissionRepo { return &MissionRepo{q: q} }

func NewLazyMissionRepo(store *Store) *MissionRepo { return &MissionRepo{store: store} }

func (r *MissionRepo) withQuerier(ctx context.Context, fn func(q Querier) error) error {
	if r.q != nil {
		return fn(r.q)
	}
	return r.store.WithTx(ctx, func(tx *sql.Tx) error { return fn(tx) })
}

// Create inserts a new Mission with status=active.
func (r *MissionRepo) Create(ctx context.Context, m *missiondomain.Mission) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = missiondomain.StatusActive
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO missions (id, name, description, mission_type, hypothesis, goal, scope,
				findings, patterns, successful_techniques, confidence_score, status, extra_data,
				goal_embedding, hypothesis_embedding, created_at, completed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			m.ID, m.Name, m.Description, string(m.Type), m.Hypothesis, m.Goal, encodeMap(m.Scope),
			m.Findings, m.Patterns, encodeStrings(m.SuccessfulTechniques), m.ConfidenceScore,
			string(m.Status), encodeMap(m.ExtraData), encodeVector(m.GoalEmbedding),
			encodeVector(m.HypothesisEmbedding), m.CreatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return &toolerr.StoreError{Op: "CreateMission", Err: err}
		}
		return nil
	})
}

// LinkTarget idempotently links a Mission to a Target.
func (r *MissionRepo) LinkTarget(ctx context.Context, missionID, targetID string) error {
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO mission_targets (mission_id, target_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (mission_id, target_id) DO NOTHING`,
			missionID, targetID, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return &toolerr.StoreError{Op: "LinkMissionTarget", Err: err}
		}
		return nil
	})
}

// GetByID fetches a Mission by id.
func (r *MissionRepo) GetByID(ctx context.Context, id string) (*missiondomain.Mission, error) {
	var result *missiondomain.Mission
	err := r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, missionSelect+` WHERE id = ?`, id)
		m, err := scanMission(row)
		if errors.Is(err, sql.ErrNoRows) {
			return toolerr.ErrNotFound
		}
		if err != nil {
			return &toolerr.StoreError{Op: "GetMissionByID", Err: err}
		}
		result = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Complete marks a Mission completed, setting completed_at to now.
func (r *MissionRepo) Complete(ctx context.Context, id string) error {
	return r.withQuerier(ctx, func(q Querier) error {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, err := q.ExecContext(ctx, `UPDATE missions SET status = ?, completed_at = ? WHERE id = ?`,
			string(missiondomain.StatusCompleted), now, id)
		if err != nil {
			return &toolerr.StoreError{Op: "CompleteMission", Err: err}
		}
		return nil
	})
}

// Delete removes a Mission; dependent rows cascade via foreign keys.
func (r *MissionRepo) Delete(ctx context.Context, id string) error {
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `DELETE FROM missions WHERE id = ?`, id)
		if err != nil {
			return &toolerr.StoreError{Op: "DeleteMission", Err: err}
		}
		return nil
	})
}

const missionSelect = `SELECT id, name, description, mission_type, hypothesis, goal, scope, findings,
	patterns, successful_techniques, confidence_score, status, extra_data, goal_embedding,
	hypothesis_embedding, created_at, completed_at FROM missions`

func scanMission(row scannable) (*missiondomain.Mission, error) {
	var m missiondomain.Mission
	var scope, techniques, extraData, createdAt string
	var completedAt *string
	var goalEmb, hypoEmb []byte
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Type, &m.Hypothesis, &m.Goal, &scope,
		&m.Findings, &m.Patterns, &techniques, &m.ConfidenceScore, &m.Status, &extraData,
		&goalEmb, &hypoEmb, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	m.Scope = decodeMap(scope)
	m.SuccessfulTechniques = decodeStrings(techniques)
	m.ExtraData = decodeMap(extraData)
	m.GoalEmbedding = decodeVector(goalEmb)
	m.HypothesisEmbedding = decodeVector(hypoEmb)
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if completedAt != nil {
		t, _ := time.Parse(time.RFC3339Nano, *completedAt)
		m.CompletedAt = &t
	}
	return &m, nil
}
