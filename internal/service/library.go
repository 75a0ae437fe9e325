package service

import (
	"context"
	"fmt"

	"github.com/kwkeefer/hiro/internal/adapter/outbound/sqlstore"
	"github.com/kwkeefer/hiro/internal/domain/technique"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
	"github.com/kwkeefer/hiro/internal/domain/vector"
)

// duplicateSimilarityFloor is the cosine similarity above which a new
// library entry is treated as a near-duplicate of an existing one in
// the same category, mirroring add_to_library's duplicate rejection.
const duplicateSimilarityFloor = 0.9

// AddToLibraryParams is the validated input to AddToLibrary.
type AddToLibraryParams struct {
	Category string
	Title    string
	Content  string
	MetaData map[string]string
}

// LibraryStats is the read-model returned by get_library_stats: total
// size, a per-category breakdown, and the most recently added entries.
type LibraryStats struct {
	Total      int
	ByCategory map[string]int
	Recent     []technique.Technique
}

// LibraryService implements the curated technique library's CRUD and
// semantic search tools (spec §4.I's add_to_library, search_library,
// get_library_stats), distinct from the mission-action usage-analytics
// tools a TechniqueStatsService exposes over the same "technique" name.
type LibraryService struct {
	store    *sqlstore.Store
	recall   *RecallService
	embedder vector.Embedder
}

// NewLibraryService wires the technique library on top of a shared
// Store, reusing RecallService for ranked search and stats.
func NewLibraryService(store *sqlstore.Store, recall *RecallService, embedder vector.Embedder) *LibraryService {
	return &LibraryService{store: store, recall: recall, embedder: embedder}
}

// AddToLibrary inserts a new technique library entry, first checking
// same-category entries for a near-duplicate by cosine similarity of
// the embedded content; a match above duplicateSimilarityFloor is
// rejected rather than silently duplicated.
func (s *LibraryService) AddToLibrary(ctx context.Context, p AddToLibraryParams) (*technique.Technique, error) {
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	techniques := sqlstore.NewTechniqueRepo(db)

	var embedding []float32
	if s.embedder != nil && s.embedder.Available() {
		embedding, err = s.embedder.EncodeText(ctx, p.Content)
		if err != nil {
			return nil, &toolerr.ToolError{Tool: "add_to_library", Message: err.Error(), Err: err}
		}

		existing, err := techniques.AllEmbedded(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range existing {
			if t.Category != p.Category {
				continue
			}
			if vector.CosineSimilarity(embedding, t.ContentEmbedding) > duplicateSimilarityFloor {
				return nil, &toolerr.ToolError{
					Tool:    "add_to_library",
					Message: fmt.Sprintf("a very similar entry already exists: %q", t.Title),
					Details: map[string]any{"existing_id": t.ID, "existing_title": t.Title},
				}
			}
		}
	}

	t := technique.Technique{
		Category:         p.Category,
		Title:            p.Title,
		Content:          p.Content,
		ContentEmbedding: embedding,
		MetaData:         p.MetaData,
	}
	if t.MetaData == nil {
		t.MetaData = map[string]string{}
	}
	if err := techniques.Create(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SearchLibrary ranks library entries by cosine similarity to query,
// optionally restricted to a category and filtered by theta.
func (s *LibraryService) SearchLibrary(ctx context.Context, query, category string, theta float64, limit int) ([]ScoredTechnique, error) {
	return s.recall.SearchTechniqueLibrary(ctx, query, category, theta, limit)
}

// GetLibraryStats returns the library's total size, per-category
// breakdown, and the most recently added entries.
func (s *LibraryService) GetLibraryStats(ctx context.Context, recentLimit int) (*LibraryStats, error) {
	total, byCategory, err := s.recall.GetLibraryStats(ctx)
	if err != nil {
		return nil, err
	}
	db, err := s.store.DB(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := sqlstore.NewTechniqueRepo(db).Recent(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	return &LibraryStats{Total: total, ByCategory: byCategory, Recent: recent}, nil
}
