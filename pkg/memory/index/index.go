// Package index implements an exhaustive inner-product index over unit
// vectors. Vectors are addressed by ordinal, the position they were added at.
//
// The expected corpus is a conversation history, so a brute-force scan is
// used instead of an approximate structure. Rebuild is a plain replacement.
package index

import (
	"cmp"
	"math"
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrDimensionMismatch = goerr.New("vector dimension mismatch")
	ErrZeroVector        = goerr.New("cannot normalize zero vector")
	ErrCorruptIndex      = goerr.New("corrupt vector index")
)

// Match is one search hit
type Match struct {
	Ordinal int
	Score   float64
}

// Index holds n vectors of dimension d. It is not safe for concurrent use;
// the owning store serializes access.
type Index struct {
	dim     int
	vectors [][]float32
}

// New creates an empty index for vectors of the given dimension
func New(dim int) *Index {
	return &Index{dim: dim}
}

// Dimension returns the configured vector dimension
func (x *Index) Dimension() int {
	return x.dim
}

// Len returns the number of stored vectors
func (x *Index) Len() int {
	return len(x.vectors)
}

// Add appends vec and returns its ordinal
func (x *Index) Add(vec []float32) (int, error) {
	if err := x.check(vec); err != nil {
		return 0, err
	}
	ordinal := len(x.vectors)
	x.vectors = append(x.vectors, slices.Clone(vec))
	return ordinal, nil
}

// Truncate drops every vector at ordinal n or later
func (x *Index) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(x.vectors) {
		return
	}
	clear(x.vectors[n:])
	x.vectors = x.vectors[:n]
}

// Rebuild replaces the whole content with vectors. Nothing changes if any
// vector has the wrong dimension.
func (x *Index) Rebuild(vectors [][]float32) error {
	next := make([][]float32, len(vectors))
	for i, vec := range vectors {
		if err := x.check(vec); err != nil {
			return goerr.Wrap(err, "invalid vector for rebuild", goerr.V("ordinal", i))
		}
		next[i] = slices.Clone(vec)
	}
	x.vectors = next
	return nil
}

// Vectors returns copies of all stored vectors in ordinal order
func (x *Index) Vectors() [][]float32 {
	out := make([][]float32, len(x.vectors))
	for i, vec := range x.vectors {
		out[i] = slices.Clone(vec)
	}
	return out
}

// Search returns up to k matches by descending inner product. Equal scores
// keep the earlier ordinal first.
func (x *Index) Search(query []float32, k int) ([]Match, error) {
	if err := x.check(query); err != nil {
		return nil, err
	}
	k = min(max(k, 0), len(x.vectors))
	if k == 0 {
		return nil, nil
	}

	matches := make([]Match, len(x.vectors))
	for i, vec := range x.vectors {
		matches[i] = Match{Ordinal: i, Score: dot(query, vec)}
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})

	return matches[:k], nil
}

func (x *Index) check(vec []float32) error {
	if len(vec) != x.dim {
		return goerr.Wrap(ErrDimensionMismatch, "unexpected vector length",
			goerr.V("expected", x.dim), goerr.V("actual", len(vec)))
	}
	return nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Normalize returns vec scaled to unit L2 norm
func Normalize(vec []float32) ([]float32, error) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, goerr.Wrap(ErrZeroVector, "vector has no usable norm", goerr.V("length", len(vec)))
	}

	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}
