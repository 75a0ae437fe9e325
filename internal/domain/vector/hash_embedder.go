package vector

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrEmbeddingUnavailable is returned by NoopEmbedder, which is wired in
// when the vector capability is disabled.
var ErrEmbeddingUnavailable = errors.New("embedding capability not available")

// HashEmbedderDim is the dimensionality produced by HashEmbedder.
const HashEmbedderDim = 384

// HashEmbedder is a deterministic, dependency-free stand-in for a real
// embedding model. It shingles the input into overlapping 3-grams of
// tokens and hashes each shingle into one of Dim() buckets with
// xxhash, producing a sparse bag-of-shingles vector. Two inputs that
// share vocabulary land close together under cosine similarity; it is
// not semantically meaningful the way a trained model would be, but it
// satisfies the same text-to-fixed-vector contract so the rest of the
// recall surface (find_similar_actions, search_technique_library) can
// be exercised without a model dependency.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder producing HashEmbedderDim vectors.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{dim: HashEmbedderDim}
}

// Available always returns true: HashEmbedder has no external dependency.
func (e *HashEmbedder) Available() bool { return true }

// Dim returns the embedder's vector dimensionality.
func (e *HashEmbedder) Dim() int { return e.dim }

// EncodeText embeds a single string.
func (e *HashEmbedder) EncodeText(_ context.Context, text string) ([]float32, error) {
	return e.encode(text), nil
}

// EncodeBatch embeds multiple strings in one call.
func (e *HashEmbedder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.EncodeText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *HashEmbedder) encode(text string) []float32 {
	vec := make([]float32, e.dim)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return vec
	}

	shingle := func(s string) {
		h := xxhash.New()
		_, _ = h.WriteString(s)
		sum := h.Sum64()
		bucket := sum % uint64(e.dim)
		sign := float32(1)
		if (sum>>63)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}

	for _, tok := range tokens {
		shingle(tok)
	}
	for i := 0; i+2 < len(tokens); i++ {
		shingle(tokens[i] + " " + tokens[i+1] + " " + tokens[i+2])
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1) / sqrt32(norm)
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 16; i++ {
		z -= (z*z - x) / (2 * z)
	}
	return z
}

// NoopEmbedder reports unavailable, for when the embedding capability is
// disabled by configuration. Tools that need it report "not available".
type NoopEmbedder struct{}

func (NoopEmbedder) Available() bool { return false }
func (NoopEmbedder) Dim() int        { return 0 }

func (NoopEmbedder) EncodeText(context.Context, string) ([]float32, error) {
	return nil, ErrEmbeddingUnavailable
}

func (NoopEmbedder) EncodeBatch(context.Context, []string) ([][]float32, error) {
	return nil, ErrEmbeddingUnavailable
}
