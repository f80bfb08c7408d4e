package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Indexer.MinTokenLength)
	assert.Equal(t, "and_fallback_or", cfg.Search.Mode)
	assert.Equal(t, 15.0, cfg.Search.TitleWeight)
	assert.Equal(t, 5.0, cfg.Search.BodyWeight)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "docsearch.yaml", `
corpus:
  source: jsonl
  input: docs.jsonl
search:
  mode: or
  defaultLimit: 25
redis:
  enabled: true
  cacheTTL: 2m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "jsonl", cfg.Corpus.Source)
	assert.Equal(t, "docs.jsonl", cfg.Corpus.Input)
	assert.Equal(t, "or", cfg.Search.Mode)
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 100, cfg.Search.MaxResults, "unset keys keep defaults")
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "docsearch.toml", `
[indexer]
minTokenLength = 2
stopWords = ["the", "and"]

[server]
port = 9000
readTimeout = "5s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Indexer.MinTokenLength)
	assert.Equal(t, []string{"the", "and"}, cfg.Indexer.StopWords)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DS_SEARCH_MODE", "and")
	t.Setenv("DS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DS_REDIS_ADDR", "cache:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "and", cfg.Search.Mode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad source", func(c *Config) { c.Corpus.Source = "ftp" }},
		{"bad mode", func(c *Config) { c.Search.Mode = "xor" }},
		{"zero min length", func(c *Config) { c.Indexer.MinTokenLength = 0 }},
		{"negative weight", func(c *Config) { c.Search.TitleWeight = -1 }},
		{"negative limit", func(c *Config) { c.Search.DefaultLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
