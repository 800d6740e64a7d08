package vectorstore

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic bag-of-words embedder used when no embedding model is
// configured. Similar wording yields similar vectors; it has no semantic knowledge.
type HashEmbedder struct {
	Dim int
}

func (h HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = 256
	}
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		sum := f.Sum32()
		idx := int(sum % uint32(dim))
		if sum&(1<<31) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem rejects zero vectors
		vec[0] = 1
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}
