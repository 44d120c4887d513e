package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "https://api.openai.com/v1", cfg.Model.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.ChatModel)
	assert.Equal(t, "text-embedding-3-small", cfg.Model.EmbeddingModel)
	assert.InDelta(t, 0.1, cfg.Model.Temperature, 1e-9)
	assert.Equal(t, 1024, cfg.Model.MaxTokens)

	assert.Equal(t, "data/constitution.json", cfg.Retrieval.CorpusPath)
	assert.Equal(t, "the Australian Constitution", cfg.Retrieval.DocumentName)
	assert.Equal(t, 3, cfg.Retrieval.TopK)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "chartad", cfg.Telemetry.ServiceName)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
model:
  chat_model: gpt-4o
retrieval:
  top_k: 5
  document_name: the test document
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.Model.ChatModel)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "the test document", cfg.Retrieval.DocumentName)
	// Untouched fields keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	t.Setenv("CHARTAD_SERVER_PORT", "9001")
	t.Setenv("CHARTAD_MODEL_CHAT_MODEL", "gpt-4o")
	t.Setenv("CHARTAD_RETRIEVAL_CORPUS_PATH", "/srv/corpus.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.Model.ChatModel)
	assert.Equal(t, "/srv/corpus.json", cfg.Retrieval.CorpusPath)
}

func TestLoadAPIKeyFromEnvOnly(t *testing.T) {
	t.Run("read from environment", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test-123")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.True(t, cfg.Model.APIKey.IsSet())
		assert.Equal(t, "sk-test-123", cfg.Model.APIKey.Value())
	})

	t.Run("absence is not a startup error", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.False(t, cfg.Model.APIKey.IsSet())
	})
}

func TestLoadMissingFileIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8787, cfg.Server.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"port too low", func(c *Config) { c.Server.Port = -1 }, "port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"temperature out of range", func(c *Config) { c.Model.Temperature = 2.5 }, "temperature"},
		{"negative max tokens", func(c *Config) { c.Model.MaxTokens = -1 }, "max tokens"},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = -3 }, "top_k"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging"},
		{"telemetry enabled without endpoint", func(c *Config) { c.Telemetry.Enabled = true }, "endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("sk-super-secret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.NotContains(t, fmt.Sprintf("%+v", s), "super-secret")

	data, err := json.Marshal(struct{ Key Secret }{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")

	assert.Equal(t, "sk-super-secret", s.Value())
	assert.True(t, s.IsSet())
	assert.False(t, Secret("").IsSet())
	assert.Equal(t, "", Secret("").String())
}
