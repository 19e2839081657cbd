package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedder_DeterministicAndNormalized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := NewLocalEmbedder(32)

	v1, err := e.EmbedBatch(ctx, []string{"compliance with article 5"})
	require.NoError(t, err)
	v2, err := e.EmbedBatch(ctx, []string{"compliance with article 5"})
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	var sumSq float64
	for _, x := range v1[0] {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sumSq, 1e-3)
}

func TestLocalEmbedder_DistinctTextsDiffer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := NewLocalEmbedder(64)

	vecs, err := e.EmbedBatch(ctx, []string{"alpha norm text", "beta guideline text"})
	require.NoError(t, err)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestLocalEmbedder_EmptyTextReturnsZeroVector(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := NewLocalEmbedder(16)

	vecs, err := e.EmbedBatch(ctx, []string{""})
	require.NoError(t, err)
	for _, x := range vecs[0] {
		assert.Equal(t, float32(0), x)
	}
}

func TestLocalEmbedder_Dimension(t *testing.T) {
	t.Parallel()
	e := NewLocalEmbedder(0)
	assert.Equal(t, 768, e.Dimension())
}
