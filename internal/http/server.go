package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/chartalabs/chartad/internal/chat"
	"github.com/chartalabs/chartad/internal/gateway"
	"github.com/chartalabs/chartad/internal/similarity"
	"github.com/chartalabs/chartad/internal/stream"
)

// Retriever finds the corpus sections most relevant to a query. It degrades
// to an empty result instead of failing.
type Retriever interface {
	FindRelevantSections(ctx context.Context, query string, k int) []similarity.Scored
}

// PromptBuilder assembles the model message list and the retrieved-section
// header value.
type PromptBuilder interface {
	Build(sections []similarity.Scored, conversation []chat.Message) ([]llms.MessageContent, string)
}

// Completer streams a chat completion, forwarding deltas as they arrive.
type Completer interface {
	Complete(ctx context.Context, messages []llms.MessageContent, onDelta gateway.DeltaFunc) (gateway.Result, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// TopK is the number of sections retrieved per chat request.
	TopK int

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// Server provides the chartad HTTP endpoints.
//
// Requests share nothing but the read-only corpus cache behind the retriever;
// each chat stream is handled independently on its own connection.
type Server struct {
	echo      *echo.Echo
	logger    *zap.Logger
	config    *Config
	retriever Retriever
	builder   PromptBuilder
	completer Completer
	metrics   *Metrics
}

// NewServer creates the HTTP server.
//
// completer may be nil when the model credential is absent; the chat endpoint
// then answers every request with an explicit configuration error instead of
// making a silently degraded model call.
func NewServer(cfg *Config, retriever Retriever, builder PromptBuilder, completer Completer, logger *zap.Logger) (*Server, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever cannot be nil")
	}
	if builder == nil {
		return nil, fmt.Errorf("prompt builder cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8787
	}
	if cfg.TopK <= 0 {
		cfg.TopK = similarity.DefaultTopK
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	metrics := NewMetrics(logger)
	e.Use(metrics.Middleware())

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		logger:    logger,
		config:    cfg,
		retriever: retriever,
		builder:   builder,
		completer: completer,
		metrics:   metrics,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.POST("/chat", s.handleChat)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat runs the full answer pipeline for one conversation: retrieval,
// prompt assembly, then the streaming completion call. Once the stream has
// started, failures are delivered as a terminal error frame rather than an
// HTTP status.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if err := chat.Validate(req.Messages); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	// Missing credential is fatal per-request and never retried.
	if s.completer == nil {
		s.logger.Error("chat request rejected: model credentials not configured")
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "model credentials are not configured"})
	}

	ctx := c.Request().Context()
	query := chat.LastUserContent(req.Messages)

	// Retrieval degrades to no context; it never fails the request.
	sections := s.retriever.FindRelevantSections(ctx, query, s.config.TopK)
	s.metrics.RecordRetrieved(c, len(sections))

	messages, sourceList := s.builder.Build(sections, req.Messages)

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/plain; charset=utf-8")
	h.Set(HeaderRetrievedSections, sourceList)
	h.Set("Cache-Control", "no-cache")
	c.Response().WriteHeader(http.StatusOK)

	w := stream.NewWriter(c.Response())
	if err := w.Start(uuid.NewString()); err != nil {
		s.logger.Debug("client gone before stream start", zap.Error(err))
		return nil
	}

	result, err := s.completer.Complete(ctx, messages, func(ctx context.Context, delta string) error {
		s.metrics.RecordDelta(c)
		return w.Delta(delta)
	})
	switch {
	case errors.Is(err, gateway.ErrAborted):
		// Normal cancellation: the client hung up, emit nothing further.
		s.logger.Info("chat stream aborted by client",
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return nil
	case err != nil:
		// Full detail is already in the server log; the wire gets a
		// generic terminal frame only.
		if werr := w.Error("the model request failed"); werr != nil {
			s.logger.Debug("failed to deliver error frame", zap.Error(werr))
		}
		return nil
	}

	if err := w.Finish(result.FinishReason, stream.Usage{
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}); err != nil {
		s.logger.Debug("client gone before stream finish", zap.Error(err))
	}
	return nil
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// performs graceful shutdown. Returns http.ErrServerClosed on clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
