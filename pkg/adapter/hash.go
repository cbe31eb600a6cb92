package adapter

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
)

// HashEmbedder is an offline embedder for tests and local runs. Every token
// is hashed into one signed bucket, so texts sharing words point in similar
// directions. It has no notion of meaning.
type HashEmbedder struct {
	dimension int
}

func NewHash(dimension int) (*HashEmbedder, error) {
	if dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", dimension))
	}
	return &HashEmbedder{dimension: dimension}, nil
}

func (h *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dimension)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, token := range tokens {
		f := fnv.New64a()
		_, _ = f.Write([]byte(token))
		sum := f.Sum64()

		bucket := sum % uint64(h.dimension)
		if sum>>63 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	return vec, nil
}

func (h *HashEmbedder) Dimension() int {
	return h.dimension
}
