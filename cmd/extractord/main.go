package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guirra-byte/contracts-extractor/internal/async"
	"github.com/guirra-byte/contracts-extractor/internal/common"
	"github.com/guirra-byte/contracts-extractor/internal/extraction"
	"github.com/guirra-byte/contracts-extractor/internal/extraction/gemini"
	"github.com/guirra-byte/contracts-extractor/internal/extraction/openai"
	"github.com/guirra-byte/contracts-extractor/internal/pipeline"
	"github.com/guirra-byte/contracts-extractor/internal/render"
	"github.com/guirra-byte/contracts-extractor/internal/repository"
	"github.com/guirra-byte/contracts-extractor/internal/segment"
	"github.com/guirra-byte/contracts-extractor/internal/server"
	"github.com/guirra-byte/contracts-extractor/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	runsRepo := repository.NewRunRepository(db, logger)
	artifactsRepo := repository.NewArtifactRepository(db, logger)

	fsStore, err := store.NewFSStore(cfg.Store.OutputDir, logger)
	if err != nil {
		logger.Error("failed to open artifact store", "dir", cfg.Store.OutputDir, "error", err)
		os.Exit(1)
	}

	passes, closers, err := buildPasses(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build extraction passes", "error", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	processor := pipeline.NewProcessor(
		pipeline.Config{
			CutoutWorkers:   cfg.Pipeline.CutoutWorkers,
			IdentifierField: cfg.Pipeline.IdentifierField,
		},
		pipeline.Deps{
			Segmenter: segment.NewSegmenter(logger),
			Passes:    passes,
			Renderer: render.NewRenderer(render.Config{
				Pdftoppm:      cfg.Render.Pdftoppm,
				Scale:         cfg.Render.Scale,
				MaxCutoutEdge: cfg.Render.MaxCutoutEdge,
			}, logger),
			Store:     fsStore,
			Notifier:  store.NewLogNotifier(logger),
			Runs:      runsRepo,
			Artifacts: artifactsRepo,
		},
		logger,
	)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Pipeline.QueueWorkers),
		async.WithQueueSize(cfg.Pipeline.QueueCapacity),
	)

	srv := server.NewServer(queue, runsRepo, artifactsRepo, fsStore, logger, cfg.Server)

	httpServer := &http.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		queue.Shutdown(shutdownCtx)
	}()

	logger.Info("starting extractord",
		"addr", cfg.Server.HTTPAddr,
		"passes", len(passes),
		"db_driver", cfg.Database.Driver,
		"output_dir", cfg.Store.OutputDir)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// buildPasses wires one pass per extraction task. OpenAI is preferred when
// its key is configured; Gemini covers the tasks otherwise. Config.Validate
// guarantees at least one provider key is set.
func buildPasses(ctx context.Context, cfg *common.Config, logger *slog.Logger) ([]extraction.Pass, []io.Closer, error) {
	tasks := []extraction.Task{
		extraction.ContractInformation(),
		extraction.InstallmentSeries(),
	}

	var passes []extraction.Pass
	var closers []io.Closer
	for _, task := range tasks {
		if cfg.LLM.OpenAIAPIKey != "" {
			passes = append(passes, openai.NewClient(openai.Config{
				APIKey:      cfg.LLM.OpenAIAPIKey,
				BaseURL:     cfg.LLM.OpenAIBaseURL,
				Model:       cfg.LLM.OpenAIModel,
				Temperature: cfg.LLM.OpenAITemperature,
				Timeout:     cfg.LLM.OpenAITimeout,
				Task:        task,
			}, logger))
			continue
		}
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:     cfg.LLM.GeminiAPIKey,
			Model:      cfg.LLM.GeminiModel,
			MaxRetries: cfg.LLM.GeminiMaxRetries,
			RetryDelay: cfg.LLM.GeminiRetryDelay,
			Task:       task,
		}, logger)
		if err != nil {
			return nil, closers, err
		}
		passes = append(passes, client)
		closers = append(closers, client)
	}

	logger.Info("extraction passes configured", "count", len(passes))
	return passes, closers, nil
}
