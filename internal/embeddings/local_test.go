package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBackend(t *testing.T) {
	t.Parallel()

	b := NewLocalBackend(256)
	assert.Equal(t, "local-256", b.Name())

	vecs, err := b.Embed(context.Background(), []string{
		"Neural Networks",
		"Neural Network Training",
		"Medieval Poetry",
		"",
	}, false)
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	for _, v := range vecs {
		assert.Len(t, v, 256)
	}

	related := Similarity(vecs[0], vecs[1])
	unrelated := Similarity(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)

	// empty text has no features and falls back
	assert.Equal(t, NeutralSimilarity, Similarity(vecs[0], vecs[3]))

	t.Run("deterministic", func(t *testing.T) {
		again, err := NewLocalBackend(256).Embed(context.Background(), []string{"Neural Networks"}, true)
		require.NoError(t, err)
		assert.Equal(t, vecs[0], again[0])
	})

	t.Run("context cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.Embed(ctx, []string{"x"}, false)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"support", "vector", "machines", "svm"}, tokenize("Support-Vector Machines (SVM) & a"))
	assert.Equal(t, []string{"#ab", "ab#"}, trigrams("ab"))
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Deep Learning", NormalizeText("  Deep \n\t Learning "))

	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, NormalizeText(string(long)), maxTextLen)
}
