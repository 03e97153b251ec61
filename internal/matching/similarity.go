package matching

import (
	"context"
	"fmt"
	"math"
)

// Embedder turns texts into vectors. Implementations must return one vector
// per input text, in input order, and be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Empty, zero-norm or differently sized vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, cos))
}

// Similarity is the single interpretation of cosine used by both document
// scoring and skill decisions: negative correlation counts as no similarity.
func Similarity(a, b []float32) float64 {
	return math.Max(0, Cosine(a, b))
}

// embedBatch collects texts and resolves them with a single Embedder call.
type embedBatch struct {
	texts []string
}

// add queues a text and returns its slot in the batch result.
func (b *embedBatch) add(text string) int {
	b.texts = append(b.texts, text)
	return len(b.texts) - 1
}

func (b *embedBatch) resolve(ctx context.Context, embedder Embedder) ([][]float32, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is not configured", ErrMatchingUnavailable)
	}

	vectors, err := embedder.Embed(ctx, b.texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMatchingUnavailable, err)
	}

	if len(vectors) != len(b.texts) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts", ErrMatchingUnavailable, len(vectors), len(b.texts))
	}

	dim := -1
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at position %d", ErrMatchingUnavailable, i)
		}
		if dim == -1 {
			dim = len(v)
		} else if len(v) != dim {
			return nil, fmt.Errorf("%w: embedding dimension mismatch (%d != %d)", ErrMatchingUnavailable, len(v), dim)
		}
		for _, x := range v {
			if f := float64(x); math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: non-finite embedding component at position %d", ErrMatchingUnavailable, i)
			}
		}
	}

	return vectors, nil
}
