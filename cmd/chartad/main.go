// Chartad answers natural-language questions about a constitution over HTTP,
// grounding each answer in the most relevant sections of the document and
// streaming the reply incrementally to the client.
//
// Usage:
//
//	# Start the daemon with defaults
//	OPENAI_API_KEY=... chartad
//
//	# Configure via flags and environment
//	chartad --config ./config.yaml
//	CHARTAD_SERVER_PORT=9000 chartad
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chartalabs/chartad/internal/config"
	"github.com/chartalabs/chartad/internal/corpus"
	"github.com/chartalabs/chartad/internal/embedding"
	"github.com/chartalabs/chartad/internal/gateway"
	chartadhttp "github.com/chartalabs/chartad/internal/http"
	"github.com/chartalabs/chartad/internal/logging"
	"github.com/chartalabs/chartad/internal/prompt"
	"github.com/chartalabs/chartad/internal/retrieval"
	"github.com/chartalabs/chartad/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "chartad",
		Short: "Constitution Q&A daemon with streaming answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chartad by Charta Labs\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", gitCommit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the answer pipeline and serves it until ctx is cancelled:
// config, logging, telemetry, corpus store, embedder, gateway, HTTP server.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	store := corpus.NewStore(cfg.Retrieval.CorpusPath, logger.Named("corpus"))

	// Without the credential the daemon still starts and serves health
	// checks; chat requests get an explicit configuration error.
	var embedder retrieval.Embedder
	var completer chartadhttp.Completer
	if cfg.Model.APIKey.IsSet() {
		embedSvc, err := embedding.NewService(embedding.Config{
			BaseURL: cfg.Model.BaseURL,
			Model:   cfg.Model.EmbeddingModel,
			APIKey:  cfg.Model.APIKey.Value(),
		})
		if err != nil {
			return fmt.Errorf("creating embedding service: %w", err)
		}
		embedder = embedSvc

		gw, err := gateway.New(gateway.Config{
			BaseURL:     cfg.Model.BaseURL,
			Model:       cfg.Model.ChatModel,
			APIKey:      cfg.Model.APIKey.Value(),
			Temperature: cfg.Model.Temperature,
			MaxTokens:   cfg.Model.MaxTokens,
		}, logger.Named("gateway"))
		if err != nil {
			return fmt.Errorf("creating completion gateway: %w", err)
		}
		completer = gw
	} else {
		logger.Warn("OPENAI_API_KEY is not set; chat requests will fail with a configuration error")
	}

	retriever := retrieval.NewService(store, embedder, cfg.Retrieval.TopK, logger.Named("retrieval"))
	builder := prompt.NewBuilder(cfg.Retrieval.DocumentName)

	srv, err := chartadhttp.NewServer(&chartadhttp.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		TopK:            cfg.Retrieval.TopK,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, retriever, builder, completer, logger.Named("http"))
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
