package embedding

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRows embeds each text as a single-element vector derived from the text
// itself, so rows can be traced back to inputs.
func stubRows(batch []string) ([][]float32, error) {
	rows := make([][]float32, len(batch))
	for i, s := range batch {
		rows[i] = []float32{float32(len(s))}
	}
	return rows, nil
}

func TestInBatches_BatchSizeIndependence(t *testing.T) {
	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff", "g"}

	want, err := inBatches(texts, len(texts), stubRows)
	require.NoError(t, err)

	for _, size := range []int{1, 2, 3, 5, 100} {
		got, err := inBatches(texts, size, stubRows)
		require.NoError(t, err, "batch size %d", size)
		assert.Equal(t, want, got, "batch size %d changed the result", size)
	}
}

func TestInBatches_PreservesOrder(t *testing.T) {
	texts := []string{"x", "yy", "zzz"}
	rows, err := inBatches(texts, 2, stubRows)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []float32{1}, rows[0])
	assert.Equal(t, []float32{2}, rows[1])
	assert.Equal(t, []float32{3}, rows[2])
}

func TestInBatches_EmptyInput(t *testing.T) {
	rows, err := inBatches(nil, 10, stubRows)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestInBatches_PropagatesBatchError(t *testing.T) {
	calls := 0
	_, err := inBatches([]string{"a", "b", "c"}, 1, func(batch []string) ([][]float32, error) {
		calls++
		if calls == 2 {
			return nil, fmt.Errorf("boom")
		}
		return stubRows(batch)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 1-2")
}

func TestNewOpenAI_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAI(Config{})
	assert.Error(t, err)
}

func TestNewOpenAI_UnknownModelNeedsDimension(t *testing.T) {
	_, err := NewOpenAI(Config{APIKey: "k", Model: "some-local-model"})
	assert.Error(t, err)

	e, err := NewOpenAI(Config{APIKey: "k", Model: "some-local-model", Dimension: 384})
	require.NoError(t, err)
	assert.Equal(t, 384, e.Dimension())
	assert.Equal(t, "some-local-model", e.ModelName())
}

func TestNewOpenAI_KnownModelDefaults(t *testing.T) {
	e, err := NewOpenAI(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, e.ModelName())
	assert.Equal(t, 1536, e.Dimension())
}

func TestHash_Deterministic(t *testing.T) {
	h := NewHash(64)
	a, err := h.Embed(context.Background(), []string{"heart disease", "blood sugar"})
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), []string{"heart disease", "blood sugar"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHash_DimensionAndShape(t *testing.T) {
	h := NewHash(0)
	assert.Equal(t, DefaultHashDimension, h.Dimension())

	rows, err := h.Embed(context.Background(), []string{"one two three"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], DefaultHashDimension)

	var total float32
	for _, v := range rows[0] {
		total += v
	}
	assert.Equal(t, float32(3), total, "each token adds exactly one count")
}

func TestHash_CaseAndPunctuationInsensitive(t *testing.T) {
	h := NewHash(128)
	rows, err := h.Embed(context.Background(), []string{"Heart, disease!", "heart disease"})
	require.NoError(t, err)
	assert.Equal(t, rows[0], rows[1])
}
