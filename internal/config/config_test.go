package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "console", cfg.LogFormat())
	assert.Equal(t, "main", cfg.Source.Branch)
	assert.Equal(t, "https://api.github.com", cfg.Source.APIBaseURL)
	assert.Equal(t, 10, cfg.Source.BatchSize)
	assert.Equal(t, time.Second, cfg.Source.BatchDelay)
	assert.Equal(t, uint(3), cfg.Source.Retries)
	assert.Equal(t, "filtered", cfg.Enrich.Strategy)
	assert.InDelta(t, 0.3, cfg.Search.Threshold, 1e-9)
	assert.Equal(t, "first", cfg.Classify.CategoryRule)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	// embedding shares the chat endpoint when not set
	assert.Equal(t, cfg.AI.BaseURL, cfg.AI.Embedding.BaseURL)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("SOURCE_OWNER", "acme")
	t.Setenv("SOURCE_REPO", "flows")
	t.Setenv("AI_BASE_URL", "http://llm.local/v1/")
	t.Setenv("AI_API_KEY", "sk-test")
	t.Setenv("AI_EMBEDDING_FLAVOR", "ollama")
	t.Setenv("AI_EMBEDDING_BASE_URL", "http://ollama:11434/")
	t.Setenv("SEARCH_THRESHOLD", "0.5")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Source.Owner)
	assert.Equal(t, "http://llm.local/v1", cfg.AI.BaseURL)
	assert.Equal(t, "http://ollama:11434", cfg.AI.Embedding.BaseURL)
	assert.Equal(t, "sk-test", cfg.AI.Embedding.APIKey)
	assert.InDelta(t, 0.5, cfg.Search.Threshold, 1e-9)

	assert.NoError(t, cfg.ValidateSource())
	assert.NoError(t, cfg.ValidateChat())
	assert.NoError(t, cfg.ValidateEmbedding())
}

func TestLogFormat(t *testing.T) {
	tests := []struct {
		env, format, want string
	}{
		{"DEV", "", "console"},
		{"dev", "", "console"},
		{"PROD", "", "json"},
		{"PROD", "console", "console"},
		{"DEV", "json", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.format, func(t *testing.T) {
			cfg := &Config{Environment: tt.env}
			cfg.Log.Format = tt.format
			assert.Equal(t, tt.want, cfg.LogFormat())
		})
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SOURCE_BRANCH=develop\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SOURCE_BRANCH") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "develop", cfg.Source.Branch)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestValidate_Missing(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	err = cfg.ValidateSource()
	require.True(t, errors.Is(err, ErrMissing))
	assert.Contains(t, err.Error(), "source.owner, source.repo")

	err = cfg.ValidateChat()
	require.True(t, errors.Is(err, ErrMissing))
	assert.Contains(t, err.Error(), "ai.api_key")

	cfg.AI.Embedding.Flavor = "custom"
	err = cfg.ValidateEmbedding()
	require.True(t, errors.Is(err, ErrMissing))
	assert.Contains(t, err.Error(), "ai.embedding.response_path")

	cfg.AI.Embedding.Flavor = "sentencepiece"
	assert.True(t, errors.Is(cfg.ValidateEmbedding(), ErrMissing))
}

func TestDSN(t *testing.T) {
	cfg := &Config{}
	cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Name, cfg.DB.SSLMode = "db", 5432, "app", "workflows", "disable"
	assert.Equal(t, "host=db port=5432 user=app password= dbname=workflows sslmode=disable", cfg.DSN())

	cfg.DB.URL = "postgres://app@db/workflows"
	assert.Equal(t, "postgres://app@db/workflows", cfg.DSN())
}
