package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybase/rag"
)

func newTestEngine(dim int) (*Engine, *int) {
	loads := 0
	factory := func(ctx context.Context) (embedding.Embedder, error) {
		loads++
		return &Deterministic{Dim: dim}, nil
	}
	return NewEngine(factory, dim), &loads
}

func TestEmbedEmptyInputSkipsModel(t *testing.T) {
	engine, loads := newTestEngine(8)
	vectors, err := engine.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Equal(t, 0, *loads, "empty input must not load the model")
	assert.False(t, engine.Loaded())
}

func TestEmbedAlignmentAndDimension(t *testing.T) {
	engine, _ := newTestEngine(16)
	texts := []string{"alpha beta", "gamma", "alpha beta"}
	vectors, err := engine.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for _, v := range vectors {
		assert.Len(t, v, 16)
	}
	// Identical inputs embed identically.
	assert.Equal(t, vectors[0], vectors[2])
}

func TestEngineLoadsOnce(t *testing.T) {
	engine, loads := newTestEngine(8)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := engine.Embed(ctx, []string{"hello"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, *loads)
	assert.True(t, engine.Loaded())
}

func TestEngineLoadFailure(t *testing.T) {
	boom := errors.New("no api key")
	engine := NewEngine(func(ctx context.Context) (embedding.Embedder, error) {
		return nil, boom
	}, 8)

	_, err := engine.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	var unavailable *rag.ModelUnavailableError
	assert.ErrorAs(t, err, &unavailable)

	// Ready surfaces the same failure for the health probe.
	err = engine.Ready(context.Background())
	assert.ErrorAs(t, err, &unavailable)
	assert.False(t, engine.Loaded())
}

func TestEngineRetriesAfterLoadFailure(t *testing.T) {
	boom := errors.New("connection refused")
	attempts := 0
	engine := NewEngine(func(ctx context.Context) (embedding.Embedder, error) {
		attempts++
		if attempts == 1 {
			return nil, boom
		}
		return &Deterministic{Dim: 8}, nil
	}, 8)
	ctx := context.Background()

	_, err := engine.Embed(ctx, []string{"hello"})
	var unavailable *rag.ModelUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.False(t, engine.Loaded())

	// A transient factory failure must not wedge the engine.
	vectors, err := engine.Embed(ctx, []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.True(t, engine.Loaded())
	assert.Equal(t, 2, attempts)
}

func TestDeterministicSimilarity(t *testing.T) {
	d := &Deterministic{Dim: 64}
	vectors, err := d.EmbedStrings(context.Background(), []string{
		"covalent bonds in chemistry",
		"chemistry covalent bonds",
		"medieval european history",
	})
	require.NoError(t, err)

	dot := func(a, b []float64) float64 {
		var sum float64
		for i := range a {
			sum += a[i] * b[i]
		}
		return sum
	}
	assert.Greater(t, dot(vectors[0], vectors[1]), dot(vectors[0], vectors[2]))
}
