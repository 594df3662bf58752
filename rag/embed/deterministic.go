package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
)

// Deterministic is a model-free embedder: each whitespace token is hashed into
// a bucket and the bucket counts are L2-normalized, so texts sharing tokens
// score high under cosine similarity. It backs tests and redis-less dev runs
// where no embedding API is configured.
type Deterministic struct {
	Dim int
}

var _ embedding.Embedder = (*Deterministic)(nil)

// EmbedStrings implements embedding.Embedder.
func (d *Deterministic) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	dim := d.Dim
	if dim <= 0 {
		dim = defaultDimension
	}

	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, dim)
		for _, token := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(token))
			vec[int(h.Sum32())%dim]++
		}

		var norm float64
		for _, v := range vec {
			norm += v * v
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range vec {
				vec[j] /= norm
			}
		}
		vectors[i] = vec
	}

	return vectors, nil
}
