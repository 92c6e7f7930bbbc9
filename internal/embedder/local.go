package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/54b3r/paperqa-go/internal/rag"
)

// DefaultLocalDimensions is the vector size of the local embedder.
const DefaultLocalDimensions = 512

// LocalEmbedder is a deterministic hashed bag-of-words embedder. It needs no
// network access, so it serves offline runs and tests. Vectors are L2
// normalised; a text with no words yields the zero vector. The role is
// accepted and ignored.
type LocalEmbedder struct {
	// dims is the output vector length.
	dims int
}

// NewLocalEmbedder returns a LocalEmbedder producing vectors of dims
// components. dims <= 0 selects DefaultLocalDimensions.
func NewLocalEmbedder(dims int) *LocalEmbedder {
	if dims <= 0 {
		dims = DefaultLocalDimensions
	}
	return &LocalEmbedder{dims: dims}
}

// Embed implements rag.Embedder.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string, _ rag.Role) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, serviceError("local", "%w", err)
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *LocalEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum32()
		// The top bit picks the sign so unrelated words tend to cancel.
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		v[int(sum%uint32(e.dims))] += sign //nolint:gosec // dims is positive
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}
