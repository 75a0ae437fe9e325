package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/memory"
	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/domain/missiondomain"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
	"github.com/kwkeefer/hiro/internal/domain/vector"
)

const defaultRecentActionsForSummary = 5

// CreateMissionParams is the validated input to CreateMission.
type CreateMissionParams struct {
	TargetID   string
	Type       missiondomain.Type
	Name       string
	Goal       string
	Hypothesis string
	Scope      map[string]string
}

// RecordActionParams is the validated input to RecordAction.
type RecordActionParams struct {
	MissionID           string
	ActionType          missiondomain.ActionType
	Technique           string
	Payload             string
	Result              string
	Success             bool
	Learning            string
	LinkRecentRequests  int
}

// MissionSummary is what get_mission_context returns: the mission plus
// aggregate progress and its five most recent actions.
type MissionSummary struct {
	Mission          missiondomain.Mission
	TotalActions     int
	SuccessfulCount  int
	SuccessRate      float64
	UniqueTechniques int
	RecentActions    []missiondomain.MissionAction
}

// MissionService implements spec §4.H: mission lifecycle, the
// process-wide "current mission" pointer, and action recording with
// best-effort embedding and idempotent request linking.
type MissionService struct {
	store    *sqlstore.Store
	pointers *memory.MissionPointerStore
	embedder vector.Embedder
	logger   *slog.Logger
}

// NewMissionService wires the mission surface on a shared Store and
// pointer store. embedder may be vector.NoopEmbedder{} when the
// capability is disabled. logger defaults to slog.Default() when nil.
func NewMissionService(store *sqlstore.Store, pointers *memory.MissionPointerStore, embedder vector.Embedder, logger *slog.Logger) *MissionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MissionService{store: store, pointers: pointers, embedder: embedder, logger: logger}
}

// CreateMission inserts a Mission (status=active), links it to its
// target, and best-effort computes goal/hypothesis embeddings.
func (s *MissionService) CreateMission(ctx context.Context, p CreateMissionParams) (*missiondomain.Mission, error) {
	m := missiondomain.Mission{
		Name:       p.Name,
		Type:       p.Type,
		Goal:       p.Goal,
		Hypothesis: p.Hypothesis,
		Scope:      p.Scope,
		Status:     missiondomain.StatusActive,
	}
	if s.embedder != nil && s.embedder.Available() {
		if emb, err := s.embedder.EncodeText(ctx, p.Goal); err == nil {
			m.GoalEmbedding = emb
		}
		if p.Hypothesis != "" {
			if emb, err := s.embedder.EncodeText(ctx, p.Hypothesis); err == nil {
				m.HypothesisEmbedding = emb
			}
		}
	}

	err := s.store.WithTx(ctx, func(tx *sql.Tx) error {
		missions := sqlstore.NewMissionRepo(tx)
		if err := missions.Create(ctx, &m); err != nil {
			return err
		}
		return missions.LinkTarget(ctx, m.ID, p.TargetID)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SetMissionContext marks missionID as the current mission for
// connectionID, after confirming it exists.
func (s *MissionService) SetMissionContext(ctx context.Context, connectionID, missionID string) error {
	db, err := s.store.DB(ctx)
	if err != nil {
		return err
	}
	if _, err := sqlstore.NewMissionRepo(db).GetByID(ctx, missionID); err != nil {
		return err
	}
	s.pointers.Set(connectionID, missionID)
	return nil
}

// GetMissionContext returns the summary for missionID, or for the
// connection's current mission pointer when missionID is empty.
func (s *MissionService) GetMissionContext(ctx context.Context, connectionID, missionID string) (*MissionSummary, error) {
	if missionID == "" {
		id, ok := s.pointers.Get(connectionID)
		if !ok {
			return nil, &toolerr.ToolError{Tool: "get_mission_context", Message: "no current mission is set"}
		}
		missionID = id
	}

	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	missions := sqlstore.NewMissionRepo(db)
	actions := sqlstore.NewActionRepo(db)

	m, err := missions.GetByID(ctx, missionID)
	if err != nil {
		return nil, err
	}
	total, success, unique, err := actions.SummaryCounts(ctx, missionID)
	if err != nil {
		return nil, err
	}
	recent, err := actions.Recent(ctx, missionID, defaultRecentActionsForSummary)
	if err != nil {
		return nil, err
	}

	rate := 0.0
	if total > 0 {
		rate = float64(success) / float64(total)
	}
	return &MissionSummary{
		Mission: *m, TotalActions: total, SuccessfulCount: success, SuccessRate: rate,
		UniqueTechniques: unique, RecentActions: recent,
	}, nil
}

// RecordAction inserts a MissionAction, best-effort computes its
// embeddings, and idempotently links the mission's most recent
// HttpRequests to it.
func (s *MissionService) RecordAction(ctx context.Context, p RecordActionParams) (*missiondomain.MissionAction, error) {
	a := missiondomain.MissionAction{
		MissionID:  p.MissionID,
		ActionType: p.ActionType,
		Technique:  p.Technique,
		Payload:    p.Payload,
		Result:     p.Result,
		Success:    p.Success,
		Learning:   p.Learning,
	}
	if s.embedder != nil && s.embedder.Available() {
		if emb, err := s.embedder.EncodeText(ctx, fmt.Sprintf("%s: %s", p.ActionType, p.Technique)); err == nil {
			a.ActionEmbedding = emb
		}
		if p.Result != "" {
			if emb, err := s.embedder.EncodeText(ctx, p.Result); err == nil {
				a.ResultEmbedding = emb
			}
		}
	}

	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	actions := sqlstore.NewActionRepo(db)
	if err := actions.Create(ctx, &a); err != nil {
		return nil, err
	}

	linkCount := p.LinkRecentRequests
	if linkCount <= 0 {
		linkCount = defaultRecentActionsForSummary
	}
	requests := sqlstore.NewHttpRequestRepo(db)
	recentRequests, err := requests.MostRecentForMission(ctx, p.MissionID, linkCount)
	if err != nil {
		s.logger.WarnContext(ctx, "record_action: failed to look up recent requests to link", "mission_id", p.MissionID, "error", err)
	} else {
		ids := make([]string, len(recentRequests))
		for i, r := range recentRequests {
			ids[i] = r.ID
		}
		if err := actions.LinkRecentRequests(ctx, a.ID, ids); err != nil {
			s.logger.WarnContext(ctx, "record_action: failed to link recent requests", "action_id", a.ID, "error", err)
		}
	}

	return &a, nil
}

// CompleteMission marks a mission completed and clears any pointer
// still referencing it.
func (s *MissionService) CompleteMission(ctx context.Context, connectionID, missionID string) error {
	db, err := s.store.DB(ctx)
	if err != nil {
		return err
	}
	if err := sqlstore.NewMissionRepo(db).Complete(ctx, missionID); err != nil {
		return err
	}
	if current, ok := s.pointers.Get(connectionID); ok && current == missionID {
		s.pointers.Clear(connectionID)
	}
	return nil
}

// DeleteMission removes a mission; dependent actions and associations
// cascade via foreign keys.
func (s *MissionService) DeleteMission(ctx context.Context, connectionID, missionID string) error {
	db, err := s.store.DB(ctx)
	if err != nil {
		return err
	}
	if err := sqlstore.NewMissionRepo(db).Delete(ctx, missionID); err != nil {
		return err
	}
	if current, ok := s.pointers.Get(connectionID); ok && current == missionID {
		s.pointers.Clear(connectionID)
	}
	return nil
}
