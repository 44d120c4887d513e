// Package gateway drives the remote chat completion model in streaming mode.
//
// Each request walks a small state machine: the remote call is issued, every
// incremental delta is forwarded to the caller as it arrives, and the stream
// ends Completed, Aborted (client cancellation propagated into the remote
// call), or Failed. The gateway is the only layer that turns a failure into a
// user-visible error; full provider detail stays in the server log.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Defaults favoring determinism over creativity: answers about a legal text
// should be factual, not inventive.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 1024

	defaultRateLimit = 5 // requests per second
	defaultBurst     = 10
)

// ErrAborted indicates the client cancelled the request mid-stream. This is a
// normal termination, not a failure.
var ErrAborted = errors.New("stream aborted by client")

// DeltaFunc receives each incremental text fragment in arrival order.
// Returning an error stops the remote call.
type DeltaFunc func(ctx context.Context, delta string) error

// Result describes a completed stream.
type Result struct {
	Text             string
	FinishReason     string
	PromptTokens     int
	CompletionTokens int
}

// Config holds configuration for the completion gateway.
type Config struct {
	// BaseURL is the chat completions endpoint base URL.
	BaseURL string

	// Model is the chat model name.
	Model string

	// APIKey authenticates against the remote API.
	APIKey string

	// Temperature for sampling; zero means DefaultTemperature.
	Temperature float64

	// MaxTokens is the response token ceiling; zero means DefaultMaxTokens.
	MaxTokens int

	// RequestsPerSecond and Burst bound the outbound call rate.
	// Zero values use package defaults.
	RequestsPerSecond float64
	Burst             int
}

// Gateway streams chat completions from the remote model.
type Gateway struct {
	model       llms.Model
	logger      *zap.Logger
	limiter     *rate.Limiter
	temperature float64
	maxTokens   int
}

// New creates a gateway backed by an OpenAI-compatible chat completion API.
func New(cfg Config, logger *zap.Logger) (*Gateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model required")
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}

	return NewWithModel(model, cfg, logger), nil
}

// NewWithModel creates a gateway over an existing model. Used by tests and by
// callers that construct the langchaingo client themselves.
func NewWithModel(model llms.Model, cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	return &Gateway{
		model:       model,
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Complete issues the streaming completion call and forwards every delta to
// onDelta in arrival order.
//
// Returns ErrAborted when the context is cancelled mid-stream; the in-flight
// remote call is abandoned and nothing further is emitted. Any other error is
// logged with full detail here and returned for the caller to collapse into a
// generic error frame.
func (g *Gateway) Complete(ctx context.Context, messages []llms.MessageContent, onDelta DeltaFunc) (Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Result{}, g.classify(ctx, fmt.Errorf("rate limiter: %w", err))
	}

	resp, err := g.model.GenerateContent(ctx, messages,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onDelta(ctx, string(chunk))
		}),
	)
	if err != nil {
		return Result{}, g.classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		g.logger.Error("completion returned no choices")
		return Result{}, errors.New("completion returned no choices")
	}

	choice := resp.Choices[0]
	res := Result{
		Text:         choice.Content,
		FinishReason: choice.StopReason,
	}
	if res.FinishReason == "" {
		res.FinishReason = "stop"
	}
	res.PromptTokens = intInfo(choice.GenerationInfo, "PromptTokens")
	res.CompletionTokens = intInfo(choice.GenerationInfo, "CompletionTokens")
	return res, nil
}

// classify separates client aborts from genuine failures. Failures are logged
// with full detail; the returned error is what the HTTP layer reduces to a
// generic message.
func (g *Gateway) classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		g.logger.Debug("completion aborted by client", zap.Error(err))
		return ErrAborted
	}
	g.logger.Error("completion call failed", zap.Error(err))
	return fmt.Errorf("completion: %w", err)
}

func intInfo(info map[string]any, key string) int {
	if info == nil {
		return 0
	}
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
