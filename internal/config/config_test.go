package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, 700, cfg.Chunker.Size)
	assert.Equal(t, 250, cfg.ChunkOverlap())
	assert.Equal(t, "flat", cfg.Index.Type)
	assert.Equal(t, "cosine", cfg.Index.Metric)
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "GROQ_API_KEY", cfg.LLM.APIKeyEnv)
}

func TestLoad_FileOverridesAndDefaultsMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: corpus
embedder:
  type: hash
  dimension: 128
chunker:
  size: 100
  overlap: 20
index:
  metric: l2
search:
  top_k: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "corpus", cfg.DataDir)
	assert.Equal(t, "hash", cfg.Embedder.Type)
	assert.Equal(t, 128, cfg.Embedder.Dimension)
	assert.Equal(t, 100, cfg.Chunker.Size)
	assert.Equal(t, 20, cfg.ChunkOverlap())
	assert.Equal(t, "l2", cfg.Index.Metric)
	assert.Equal(t, 5, cfg.Search.TopK)
	// untouched sections keep their defaults
	assert.Equal(t, "flat", cfg.Index.Type)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_InvalidMetric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  metric: manhattan\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metric")
}

func TestLoad_OverlapMustBeSmallerThanSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  size: 100\n  overlap: 100\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestLoad_ZeroOverlapIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  size: 100\n  overlap: 0\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Chunker.Size)
	assert.Equal(t, 0, cfg.ChunkOverlap())
}

func TestLoad_NegativeOverlapRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker:\n  overlap: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
}

func TestLoad_QdrantRequiresSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  type: qdrant\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_QdrantDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "index:\n  type: qdrant\n  qdrant:\n    host: qdrant.internal\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", cfg.Index.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Index.Qdrant.Port)
	assert.Equal(t, "rag_chunks", cfg.Index.Qdrant.Collection)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index", "config.yaml")

	cfg := Default()
	cfg.Search.TopK = 7
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RAGSEARCH_DATA_DIR", "/srv/corpus")
	t.Setenv("RAGSEARCH_ADDR", ":9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/corpus", cfg.DataDir)
	assert.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embedder: [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
