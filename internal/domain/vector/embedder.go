// Package vector defines the embedding capability used for similarity
// search across mission actions and the technique library, and its
// concrete implementations.
package vector

import (
	"context"
	"math"
)

// Embedder turns text into a fixed-dimension vector. The real embedding
// model's internals are out of scope for this server; only this
// capability interface and a deterministic stand-in implementation are
// in scope.
type Embedder interface {
	// EncodeText embeds a single string.
	EncodeText(ctx context.Context, text string) ([]float32, error)

	// EncodeBatch embeds multiple strings in one call.
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dim returns the dimensionality of vectors this embedder produces.
	Dim() int

	// Available reports whether this embedder can actually produce
	// embeddings, distinguishing "disabled by config" from "configured
	// but erroring".
	Available() bool
}

// CosineSimilarity returns the cosine similarity of a and b, 0 if
// either vector is empty or of mismatched length.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
