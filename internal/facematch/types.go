// Package facematch holds the embedding primitives used for recognition:
// distances, nearest-neighbour matching and face selection helpers.
package facematch

import "context"

// Embedding is a fixed-length face descriptor produced by an Extractor.
// Embeddings are never modified after they are produced.
type Embedding []float32

// Clone returns an independent copy of e.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Float64s converts the embedding for gonum routines.
func (e Embedding) Float64s() []float64 {
	out := make([]float64, len(e))
	for i, v := range e {
		out[i] = float64(v)
	}
	return out
}

// Extractor turns an encoded image into at most one face embedding.
// A nil embedding with a nil error means no face was found.
// Implementations may be slow (model inference).
type Extractor interface {
	Extract(ctx context.Context, image []byte) (Embedding, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, image []byte) (Embedding, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, image []byte) (Embedding, error) {
	return f(ctx, image)
}
