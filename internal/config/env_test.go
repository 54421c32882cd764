package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DOWNLOAD_DIR", "DOWNLOAD_DISAMBIGUATE", "FETCH_TIMEOUT_SECS",
	"INDEX_BACKEND", "DATABASE_URL", "SSL_CERT_PATH", "SQLITE_PATH",
	"EMBED_BACKEND", "GEMINI_API_KEY", "EMBED_MODEL", "EMBED_BATCH_SIZE", "EMBED_RPM",
	"EMBED_TIMEOUT_SECS", "OLLAMA_URL", "LOCAL_EMBED_MODEL", "GEN_MODEL",
	"CHUNK_SIZE", "CHUNK_OVERLAP", "INGEST_WORKERS",
	"AWS_ACCESS_KEY", "AWS_SECRET_KEY", "AWS_REGION", "ARCHIVE_BUCKET",
	"OPENALEX_EMAIL", "PORT", "JWT_SECRET",
}

// clearEnv unsets every variable LoadConfig reads, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadConfig()

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "acm-papers"), cfg.DownloadDir)
	assert.False(t, cfg.DownloadDisambiguate)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.Equal(t, IndexNone, cfg.IndexBackend)
	assert.Equal(t, EmbedLocal, cfg.EmbedBackend)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 3, cfg.IngestWorkers)
	assert.Equal(t, "all-minilm", cfg.LocalEmbedModel)
	assert.Equal(t, "8080", cfg.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_DerivesBackends(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/paperdex")
	t.Setenv("GEMINI_API_KEY", "key")

	cfg := LoadConfig()
	assert.Equal(t, IndexPostgres, cfg.IndexBackend)
	assert.Equal(t, EmbedRemote, cfg.EmbedBackend)
}

func TestLoadConfig_ExplicitValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("INDEX_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "/var/lib/paperdex/index.db")
	t.Setenv("EMBED_BACKEND", "none")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("DOWNLOAD_DISAMBIGUATE", "true")
	t.Setenv("INGEST_WORKERS", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, IndexSQLite, cfg.IndexBackend)
	assert.Equal(t, "/var/lib/paperdex/index.db", cfg.SQLitePath)
	assert.Equal(t, EmbedNone, cfg.EmbedBackend)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.True(t, cfg.DownloadDisambiguate)
	assert.Equal(t, 3, cfg.IngestWorkers)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DownloadDir:    "/tmp/papers",
			IndexBackend:   IndexMemory,
			EmbedBackend:   EmbedNone,
			ChunkSize:      1000,
			ChunkOverlap:   200,
			IngestWorkers:  3,
			EmbedBatchSize: 16,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "zero chunk size", mutate: func(c *Config) { c.ChunkSize = 0 }},
		{name: "overlap equals size", mutate: func(c *Config) { c.ChunkOverlap = 1000 }},
		{name: "negative overlap", mutate: func(c *Config) { c.ChunkOverlap = -1 }},
		{name: "no workers", mutate: func(c *Config) { c.IngestWorkers = 0 }},
		{name: "no batch size", mutate: func(c *Config) { c.EmbedBatchSize = 0 }},
		{name: "no download dir", mutate: func(c *Config) { c.DownloadDir = "" }},
		{name: "postgres without url", mutate: func(c *Config) { c.IndexBackend = IndexPostgres }},
		{name: "unknown index backend", mutate: func(c *Config) { c.IndexBackend = "mongo" }},
		{name: "unknown embed backend", mutate: func(c *Config) { c.EmbedBackend = "bert" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, filepath.Join(home, "papers"), expandHome("~/papers"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
	assert.Equal(t, "~other/x", expandHome("~other/x"))
}
