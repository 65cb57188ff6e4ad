package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-search/internal/config"
)

func hashConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Embedder.Type = "hash"
	cfg.Embedder.Dimension = 64
	cfg.DataDir = t.TempDir()
	cfg.Index.PersistDir = t.TempDir()
	return cfg
}

func TestNew_WiresHashFlat(t *testing.T) {
	a, err := New(hashConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 64, a.Embedder.Dimension())
	assert.False(t, a.Index.Ready())
	assert.Equal(t, 3, a.Searcher.TopK())
	assert.NotNil(t, a.Loader)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := hashConfig(t)
	cfg.Index.Metric = "manhattan"
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestNew_OpenAIEmbedderRequiresKey(t *testing.T) {
	cfg := hashConfig(t)
	cfg.Embedder.Type = "openai"
	cfg.Embedder.APIKeyEnv = "RAGSEARCH_TEST_NO_SUCH_KEY"
	_, err := New(cfg, nil)
	require.Error(t, err)
}

func TestApp_BuildAndRetrieve(t *testing.T) {
	cfg := hashConfig(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.DataDir, "heart.txt"),
		[]byte("Heart disease is a condition affecting the heart and blood vessels."),
		0o644,
	))

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	docs, err := a.Loader.LoadDir(cfg.DataDir)
	require.NoError(t, err)
	require.NoError(t, a.Index.BuildFromDocuments(ctx, docs))

	results, err := a.Searcher.Retrieve(ctx, "heart disease", 0)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Metadata.Text, "Heart disease")
}
