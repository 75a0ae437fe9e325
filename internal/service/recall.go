package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/domain/missiondomain"
	"github.com/kwkeefer/hiro/internal/domain/technique"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
	"github.com/kwkeefer/hiro/internal/domain/vector"
)

// ScoredAction pairs a MissionAction with its similarity to the query,
// as returned by find_similar_actions.
type ScoredAction struct {
	Action     missiondomain.MissionAction
	Similarity float64
}

// ScoredTechnique pairs a Technique with its similarity to the query,
// as returned by search_technique_library.
type ScoredTechnique struct {
	Technique  technique.Technique
	Similarity float64
}

// RecallService implements spec §4.I: encode a query, rank stored
// embeddings by cosine similarity in-process (no native vector index
// is available through the sqlite driver), and filter by a similarity
// floor.
type RecallService struct {
	store    *sqlstore.Store
	embedder vector.Embedder
}

// NewRecallService wires vector recall on a shared Store. embedder may
// be vector.NoopEmbedder{} when the capability is disabled, in which
// case every method that encodes text reports "not available";
// FindSuccessfulPatternsByTechnique and GetLibraryStats work without it.
func NewRecallService(store *sqlstore.Store, embedder vector.Embedder) *RecallService {
	return &RecallService{store: store, embedder: embedder}
}

func (s *RecallService) requireEmbedder() error {
	if s.embedder == nil || !s.embedder.Available() {
		return &toolerr.ToolError{Tool: "vector_search", Message: "embedding capability not available"}
	}
	return nil
}

// FindSimilarActions returns actions whose action_embedding is within
// the similarity floor theta of query, ordered by similarity descending.
func (s *RecallService) FindSimilarActions(ctx context.Context, query, missionID string, successOnly bool, theta float64, limit int) ([]ScoredAction, error) {
	if err := s.requireEmbedder(); err != nil {
		return nil, err
	}
	queryVec, err := s.embedder.EncodeText(ctx, query)
	if err != nil {
		return nil, &toolerr.ToolError{Tool: "find_similar_actions", Message: err.Error(), Err: err}
	}

	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := sqlstore.NewActionRepo(db).FindSimilar(ctx, missionID, successOnly)
	if err != nil {
		return nil, err
	}

	return rankActions(candidates, queryVec, theta, limit), nil
}

// FindSuccessfulPatternsByTechnique returns the successful actions
// recorded for technique across all missions, newest first, capped at
// limit when limit is positive. No similarity ranking is applied.
func (s *RecallService) FindSuccessfulPatternsByTechnique(ctx context.Context, techniqueName string, limit int) ([]missiondomain.MissionAction, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	all, err := sqlstore.NewActionRepo(db).FindByTechnique(ctx, techniqueName)
	if err != nil {
		return nil, err
	}
	var out []missiondomain.MissionAction
	for _, a := range all {
		if a.Success {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SearchTechniqueLibrary ranks stored techniques by cosine similarity
// of their content embedding to query, optionally restricted to a
// category, filtered by the similarity floor theta.
func (s *RecallService) SearchTechniqueLibrary(ctx context.Context, query, category string, theta float64, limit int) ([]ScoredTechnique, error) {
	if err := s.requireEmbedder(); err != nil {
		return nil, err
	}
	queryVec, err := s.embedder.EncodeText(ctx, query)
	if err != nil {
		return nil, &toolerr.ToolError{Tool: "search_technique_library", Message: err.Error(), Err: err}
	}

	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	candidates, err := sqlstore.NewTechniqueRepo(db).AllEmbedded(ctx)
	if err != nil {
		return nil, err
	}
	if category != "" {
		filtered := candidates[:0]
		for _, t := range candidates {
			if t.Category == category {
				filtered = append(filtered, t)
			}
		}
		candidates = filtered
	}

	return rankTechniques(candidates, queryVec, theta, limit), nil
}

// AddActionEmbeddingsByID looks up actionID's stored action_type and
// delegates to AddActionEmbeddings, so add_action_embeddings callers
// only need to repeat the technique, not the action_type they already
// gave record_action.
func (s *RecallService) AddActionEmbeddingsByID(ctx context.Context, actionID, techniqueName, result string) error {
	db, err := s.store.DB(ctx)
	if err != nil {
		return err
	}
	a, err := sqlstore.NewActionRepo(db).GetByID(ctx, actionID)
	if err != nil {
		return err
	}
	return s.AddActionEmbeddings(ctx, actionID, string(a.ActionType), techniqueName, result)
}

// AddActionEmbeddings computes and persists action_embedding (from
// "<action_type>: <technique>") and, when result is non-empty,
// result_embedding, for an action created before embeddings were
// available.
func (s *RecallService) AddActionEmbeddings(ctx context.Context, actionID, actionType, techniqueName, result string) error {
	if err := s.requireEmbedder(); err != nil {
		return err
	}
	actionEmb, err := s.embedder.EncodeText(ctx, fmt.Sprintf("%s: %s", actionType, techniqueName))
	if err != nil {
		return &toolerr.ToolError{Tool: "add_action_embeddings", Message: err.Error(), Err: err}
	}
	var resultEmb []float32
	if result != "" {
		resultEmb, err = s.embedder.EncodeText(ctx, result)
		if err != nil {
			return &toolerr.ToolError{Tool: "add_action_embeddings", Message: err.Error(), Err: err}
		}
	}
	db, err := s.store.DB(ctx)
	if err != nil {
		return err
	}
	return sqlstore.NewActionRepo(db).SetEmbeddings(ctx, actionID, actionEmb, resultEmb)
}

// AddTechniqueEmbedding computes and persists content_embedding for an
// existing technique library entry.
func (s *RecallService) AddTechniqueEmbedding(ctx context.Context, techniqueID, content string) error {
	if err := s.requireEmbedder(); err != nil {
		return err
	}
	emb, err := s.embedder.EncodeText(ctx, content)
	if err != nil {
		return &toolerr.ToolError{Tool: "add_technique_embedding", Message: err.Error(), Err: err}
	}
	db, err := s.store.DB(ctx)
	if err != nil {
		return err
	}
	return sqlstore.NewTechniqueRepo(db).SetEmbedding(ctx, techniqueID, emb)
}

// GetLibraryStats returns the technique library's size and per-category breakdown.
func (s *RecallService) GetLibraryStats(ctx context.Context) (total int, byCategory map[string]int, err error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return 0, nil, err
	}
	return sqlstore.NewTechniqueRepo(db).Stats(ctx)
}

func rankActions(candidates []missiondomain.MissionAction, queryVec []float32, theta float64, limit int) []ScoredAction {
	maxDistance := 1 - theta
	scored := make([]ScoredAction, 0, len(candidates))
	for _, a := range candidates {
		similarity := vector.CosineSimilarity(queryVec, a.ActionEmbedding)
		if 1-similarity > maxDistance {
			continue
		}
		scored = append(scored, ScoredAction{Action: a, Similarity: similarity})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func rankTechniques(candidates []technique.Technique, queryVec []float32, theta float64, limit int) []ScoredTechnique {
	maxDistance := 1 - theta
	scored := make([]ScoredTechnique, 0, len(candidates))
	for _, t := range candidates {
		similarity := vector.CosineSimilarity(queryVec, t.ContentEmbedding)
		if 1-similarity > maxDistance {
			continue
		}
		scored = append(scored, ScoredTechnique{Technique: t, Similarity: similarity})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
