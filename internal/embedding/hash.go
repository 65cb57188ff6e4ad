package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size of the feature-hashing embedder.
const DefaultHashDimension = 256

// Hash is a local, deterministic bag-of-words embedder using feature
// hashing: each token increments one dimension selected by its FNV hash.
// It needs no model artifact or network and is the offline alternative to
// the remote embedder; two corpora are only comparable under the same
// dimension.
type Hash struct {
	dimension int
}

// NewHash returns a feature-hashing embedder with the given dimension
// (DefaultHashDimension when <= 0).
func NewHash(dimension int) *Hash {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &Hash{dimension: dimension}
}

func (h *Hash) Dimension() int { return h.dimension }

func (h *Hash) ModelName() string {
	return fmt.Sprintf("feature-hash-%d", h.dimension)
}

// Embed maps each text to its hashed token-count vector. Independent of
// batch composition by construction.
func (h *Hash) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, h.dimension)
		for _, tok := range tokenize(text) {
			f := fnv.New32a()
			f.Write([]byte(tok))
			v[int(f.Sum32())%h.dimension]++
		}
		vectors[i] = v
	}
	return vectors, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
