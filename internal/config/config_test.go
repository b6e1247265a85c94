package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_FailsFastWithoutEncryptionKey(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENCRYPTION_KEY")
}

func TestLoad_DefaultsWithEncryptionKeySet(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, map[string]string{"ENCRYPTION_KEY": "test-key"})

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.VectorDB.Backend)
	assert.Equal(t, 100, cfg.Embeddings.BatchSize)
	assert.Equal(t, 3, cfg.Crawl.ConcurrentLimit)
	assert.Equal(t, 20000, cfg.Crawl.MaxPageChars)
	assert.Equal(t, 3600, cfg.MCP.SessionTimeoutSeconds)
}

func TestLoad_EnvOverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "archon.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("embeddings:\n  batch_size: 50\n"), 0o644))

	withEnv(t, map[string]string{
		"ENCRYPTION_KEY":        "test-key",
		"EMBEDDING_BATCH_SIZE":  "150",
		"CONCURRENT_CRAWL_LIMIT": "7",
	})

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 150, cfg.Embeddings.BatchSize)
	assert.Equal(t, 7, cfg.Crawl.ConcurrentLimit)
}

func TestApplyEnvOverrides_ClampsBatchSize(t *testing.T) {
	dir := t.TempDir()
	withEnv(t, map[string]string{
		"ENCRYPTION_KEY":       "test-key",
		"EMBEDDING_BATCH_SIZE": "9000",
	})

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Embeddings.BatchSize)
}

func TestValidate_RejectsWildcardOriginWithAuthToken(t *testing.T) {
	cfg := NewConfig()
	cfg.Security.EncryptionKey = "test-key"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.AuthToken = "secret"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALLOWED_ORIGINS")
}

func TestValidate_RejectsUnknownVectorBackend(t *testing.T) {
	cfg := NewConfig()
	cfg.Security.EncryptionKey = "test-key"
	cfg.VectorDB.Backend = "postgres"

	err := cfg.Validate()
	require.Error(t, err)
}

func TestSplitCSV_TrimsAndDropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a, b ,,"))
}
