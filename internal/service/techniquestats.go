package service

import (
	"context"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
)

// TechniqueUsage re-exports the aggregation row shape search_techniques
// ranks and returns.
type TechniqueUsage = sqlstore.TechniqueUsage

// TechniqueStats re-exports the detailed per-technique breakdown
// get_technique_stats returns.
type TechniqueStats = sqlstore.TechniqueStats

// TechniqueStatsService implements the mission-action usage-analytics
// tools named in spec §4.I — find_similar_techniques, search_techniques,
// get_technique_stats — all of which operate over MissionAction history
// rather than the curated library LibraryService manages.
type TechniqueStatsService struct {
	store  *sqlstore.Store
	recall *RecallService
}

// NewTechniqueStatsService wires technique usage analytics on top of a
// shared Store, delegating similarity ranking to RecallService.
func NewTechniqueStatsService(store *sqlstore.Store, recall *RecallService) *TechniqueStatsService {
	return &TechniqueStatsService{store: store, recall: recall}
}

// TechniqueGroup buckets the actions find_similar_techniques returned
// for one technique, the way the original groups scored actions by
// the technique field before returning them to the caller.
type TechniqueGroup struct {
	Technique       string
	SuccessCount    int
	FailureCount    int
	TopSimilarity   float64
	SampleLearnings []string
}

// FindSimilarTechniques ranks past actions by embedding similarity to
// query, then groups the matches by technique, summarizing each
// group's success/failure split and its best-matching learnings —
// mirroring find_similar_techniques's group-after-rank shape.
func (s *TechniqueStatsService) FindSimilarTechniques(ctx context.Context, query, missionID string, successOnly bool, theta float64, limit int) ([]TechniqueGroup, error) {
	scored, err := s.recall.FindSimilarActions(ctx, query, missionID, successOnly, theta, limit)
	if err != nil {
		return nil, err
	}

	order := []string{}
	groups := map[string]*TechniqueGroup{}
	for _, sa := range scored {
		name := sa.Action.Technique
		g, ok := groups[name]
		if !ok {
			g = &TechniqueGroup{Technique: name}
			groups[name] = g
			order = append(order, name)
		}
		if sa.Action.Success {
			g.SuccessCount++
		} else {
			g.FailureCount++
		}
		if sa.Similarity > g.TopSimilarity {
			g.TopSimilarity = sa.Similarity
		}
		if sa.Action.Learning != "" && len(g.SampleLearnings) < 3 {
			g.SampleLearnings = append(g.SampleLearnings, sa.Action.Learning)
		}
	}

	out := make([]TechniqueGroup, 0, len(order))
	for _, name := range order {
		out = append(out, *groups[name])
	}
	return out, nil
}

// SearchTechniques ranks techniques by usage and effectiveness across
// all missions, restricted to successful uses only when successOnly is
// set and to techniques used at least minUsage times.
func (s *TechniqueStatsService) SearchTechniques(ctx context.Context, successOnly bool, minUsage, limit int) ([]TechniqueUsage, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewActionRepo(db).AggregateByTechnique(ctx, successOnly, minUsage, limit)
}

// GetTechniqueStats computes a single technique's detailed usage
// breakdown: overall counts plus the mission-type/learning contexts it
// most often failed or succeeded in.
func (s *TechniqueStatsService) GetTechniqueStats(ctx context.Context, technique string) (*TechniqueStats, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	return sqlstore.NewActionRepo(db).TechniqueStats(ctx, technique)
}
