package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kwkeefer/hiro/internal/domain/technique"
	"github.com/kwkeefer/hiro/internal/domain/toolerr"
)

// TechniqueRepo is the TechniqueLibrary aggregate repository.
type TechniqueRepo struct {
	q     Querier
	store *Store
}

func NewTechniqueRepo(q Querier) *TechniqueRepo { return &TechniqueRepo{q: q} }

func NewLazyTechniqueRepo(store *Store) *TechniqueRepo { return &TechniqueRepo{store: store} }

func (r *TechniqueRepo) withQuerier(ctx context.Context, fn func(q Querier) error) error {
	if r.q != nil {
		return fn(r.q)
	}
	return r.store.WithTx(ctx, func(tx *sql.Tx) error { return fn(tx) })
}

// Create inserts a new library entry.
func (r *TechniqueRepo) Create(ctx context.Context, t *technique.Technique) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO technique_library (id, category, title, content, content_embedding, meta_data,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Category, t.Title, t.Content, encodeVector(t.ContentEmbedding), encodeMap(t.MetaData),
			t.CreatedAt.Format(time.RFC3339Nano), t.UpdatedAt.Format(time.RFC3339Nano))
		if err != nil {
			return &toolerr.StoreError{Op: "CreateTechnique", Err: err}
		}
		return nil
	})
}

// SetEmbedding updates a technique's content embedding.
func (r *TechniqueRepo) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	return r.withQuerier(ctx, func(q Querier) error {
		_, err := q.ExecContext(ctx, `UPDATE technique_library SET content_embedding = ?, updated_at = ? WHERE id = ?`,
			encodeVector(embedding), time.Now().UTC().Format(time.RFC3339Nano), id)
		if err != nil {
			return &toolerr.StoreError{Op: "SetTechniqueEmbedding", Err: err}
		}
		return nil
	})
}

// GetByID fetches a single technique.
func (r *TechniqueRepo) GetByID(ctx context.Context, id string) (*technique.Technique, error) {
	var result *technique.Technique
	err := r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, techniqueSelect+` WHERE id = ?`, id)
		t, err := scanTechnique(row)
		if errors.Is(err, sql.ErrNoRows) {
			return toolerr.ErrNotFound
		}
		if err != nil {
			return &toolerr.StoreError{Op: "GetTechniqueByID", Err: err}
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Search substring-matches title/content, optionally restricted to a category.
func (r *TechniqueRepo) Search(ctx context.Context, query, category string, limit int) ([]technique.Technique, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []technique.Technique
	err := r.withQuerier(ctx, func(q Querier) error {
		var b strings.Builder
		b.WriteString(techniqueSelect + ` WHERE (title LIKE ? OR content LIKE ?)`)
		like := "%" + query + "%"
		args := []any{like, like}
		if category != "" {
			b.WriteString(" AND category = ?")
			args = append(args, category)
		}
		b.WriteString(" ORDER BY updated_at DESC LIMIT ?")
		args = append(args, limit)

		rows, err := q.QueryContext(ctx, b.String(), args...)
		if err != nil {
			return &toolerr.StoreError{Op: "SearchTechniqueLibrary", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTechnique(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "SearchTechniqueLibrary", Err: err}
			}
			out = append(out, *t)
		}
		return rows.Err()
	})
	return out, err
}

// AllEmbedded returns every technique carrying a non-null content embedding,
// for in-process cosine ranking by the vector search service.
func (r *TechniqueRepo) AllEmbedded(ctx context.Context) ([]technique.Technique, error) {
	var out []technique.Technique
	err := r.withQuerier(ctx, func(q Querier) error {
		rows, err := q.QueryContext(ctx, techniqueSelect+` WHERE content_embedding IS NOT NULL`)
		if err != nil {
			return &toolerr.StoreError{Op: "AllEmbeddedTechniques", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTechnique(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "AllEmbeddedTechniques", Err: err}
			}
			out = append(out, *t)
		}
		return rows.Err()
	})
	return out, err
}

// Stats returns library size and a per-category breakdown.
func (r *TechniqueRepo) Stats(ctx context.Context) (total int, byCategory map[string]int, err error) {
	byCategory = map[string]int{}
	err = r.withQuerier(ctx, func(q Querier) error {
		row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM technique_library`)
		if scanErr := row.Scan(&total); scanErr != nil {
			return &toolerr.StoreError{Op: "TechniqueLibraryStats", Err: scanErr}
		}
		rows, err := q.QueryContext(ctx, `SELECT category, COUNT(*) FROM technique_library GROUP BY category`)
		if err != nil {
			return &toolerr.StoreError{Op: "TechniqueLibraryStats", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			var cat string
			var count int
			if err := rows.Scan(&cat, &count); err != nil {
				return &toolerr.StoreError{Op: "TechniqueLibraryStats", Err: err}
			}
			byCategory[cat] = count
		}
		return rows.Err()
	})
	return total, byCategory, err
}

// Recent returns the most recently added library entries, newest first.
func (r *TechniqueRepo) Recent(ctx context.Context, limit int) ([]technique.Technique, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []technique.Technique
	err := r.withQuerier(ctx, func(q Querier) error {
		rows, err := q.QueryContext(ctx, techniqueSelect+` ORDER BY created_at DESC LIMIT ?`, limit)
		if err != nil {
			return &toolerr.StoreError{Op: "RecentTechniques", Err: err}
		}
		defer rows.Close()
		for rows.Next() {
			t, err := scanTechnique(rows)
			if err != nil {
				return &toolerr.StoreError{Op: "RecentTechniques", Err: err}
			}
			out = append(out, *t)
		}
		return rows.Err()
	})
	return out, err
}

const techniqueSelect = `SELECT id, category, title, content, content_embedding, meta_data, created_at, updated_at FROM technique_library`

func scanTechnique(row scannable) (*technique.Technique, error) {
	var t technique.Technique
	var metaData, createdAt, updatedAt string
	var embedding []byte
	if err := row.Scan(&t.ID, &t.Category, &t.Title, &t.Content, &embedding, &metaData, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.MetaData = decodeMap(metaData)
	t.ContentEmbedding = decodeVector(embedding)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &t, nil
}
