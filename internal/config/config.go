// Package config provides configuration loading for chartad.
//
// Configuration is read from an optional YAML file, then overridden by
// environment variables. The model API key is only ever read from the
// environment, never from a file on disk.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/chartalabs/chartad/internal/logging"
)

// Config holds the complete chartad configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Model     ModelConfig     `koanf:"model"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Logging   logging.Config  `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ModelConfig holds remote model configuration. One API key serves both the
// embedding and the chat completion endpoints.
type ModelConfig struct {
	BaseURL        string  `koanf:"base_url"`
	APIKey         Secret  `koanf:"-"`
	ChatModel      string  `koanf:"chat_model"`
	EmbeddingModel string  `koanf:"embedding_model"`
	Temperature    float64 `koanf:"temperature"`
	MaxTokens      int     `koanf:"max_tokens"`
}

// RetrievalConfig holds retrieval pipeline configuration.
type RetrievalConfig struct {
	// CorpusPath is the well-known path of the embedded corpus artifact.
	CorpusPath string `koanf:"corpus_path"`

	// DocumentName is how the source document is referred to in prompts.
	DocumentName string `koanf:"document_name"`

	// TopK is the number of sections retrieved per query.
	TopK int `koanf:"top_k"`
}

// TelemetryConfig holds OpenTelemetry metrics configuration.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	ServiceName string `koanf:"service_name"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Model.BaseURL == "" {
		cfg.Model.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model.ChatModel == "" {
		cfg.Model.ChatModel = "gpt-4o-mini"
	}
	if cfg.Model.EmbeddingModel == "" {
		cfg.Model.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = 0.1
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 1024
	}

	if cfg.Retrieval.CorpusPath == "" {
		cfg.Retrieval.CorpusPath = "data/constitution.json"
	}
	if cfg.Retrieval.DocumentName == "" {
		cfg.Retrieval.DocumentName = "the Australian Constitution"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "chartad"
	}
}

// Validate validates the configuration. The API key is deliberately not
// validated here: its absence is a per-request configuration error, reported
// by the chat endpoint, so the daemon can still start and serve health checks.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("invalid temperature: %v (must be 0-2)", c.Model.Temperature)
	}
	if c.Model.MaxTokens < 1 {
		return fmt.Errorf("invalid max tokens: %d", c.Model.MaxTokens)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("invalid top_k: %d", c.Retrieval.TopK)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry endpoint required when telemetry is enabled")
	}
	return nil
}
