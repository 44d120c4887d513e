package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		BaseURL: "https://api.openai.com/v1",
		Model:   "text-embedding-3-small",
		APIKey:  "sk-test",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"complete config", func(*Config) {}, true},
		{"missing base URL", func(c *Config) { c.BaseURL = "" }, false},
		{"missing model", func(c *Config) { c.Model = "" }, false},
		{"missing API key", func(c *Config) { c.APIKey = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestNewService(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		svc, err := NewService(validConfig())
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewService(Config{})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestEmbedQuery(t *testing.T) {
	t.Run("returns the vector from the API", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/embeddings", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data": []map[string]any{
					{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2, 0.3}},
				},
				"model": "text-embedding-3-small",
				"usage": map[string]int{"prompt_tokens": 4, "total_tokens": 4},
			})
		}))
		defer srv.Close()

		cfg := validConfig()
		cfg.BaseURL = srv.URL
		svc, err := NewService(cfg)
		require.NoError(t, err)

		vec, err := svc.EmbedQuery(context.Background(), "what can parliament do?")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	})

	t.Run("upstream failure is returned", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		cfg := validConfig()
		cfg.BaseURL = srv.URL
		svc, err := NewService(cfg)
		require.NoError(t, err)

		_, err = svc.EmbedQuery(context.Background(), "q")
		assert.Error(t, err)
	})

	t.Run("empty query is rejected locally", func(t *testing.T) {
		svc, err := NewService(validConfig())
		require.NoError(t, err)

		_, err = svc.EmbedQuery(context.Background(), "")
		assert.Error(t, err)
	})
}
