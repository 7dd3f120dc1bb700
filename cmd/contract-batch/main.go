package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/common"
	"github.com/guirra-byte/contracts-extractor/internal/export"
	"github.com/guirra-byte/contracts-extractor/internal/extraction"
	"github.com/guirra-byte/contracts-extractor/internal/extraction/gemini"
	"github.com/guirra-byte/contracts-extractor/internal/extraction/openai"
	"github.com/guirra-byte/contracts-extractor/internal/pipeline"
	"github.com/guirra-byte/contracts-extractor/internal/render"
	"github.com/guirra-byte/contracts-extractor/internal/repository"
	"github.com/guirra-byte/contracts-extractor/internal/segment"
	"github.com/guirra-byte/contracts-extractor/internal/store"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem   = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir     = flag.String("dir", "", "directory of contract PDFs to process (required)")
		out     = flag.String("out", "", "output directory for artifacts and reports (default OUTPUT_DIR)")
		reports = flag.Bool("reports", true, "write XLSX/markdown/HTML reports per run")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()
	if *out != "" {
		cfg.Store.OutputDir = *out
	}
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = "file:batch?mode=memory&cache=shared"
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

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
			Runs:      repository.NewRunRepository(db, logger),
			Artifacts: repository.NewArtifactRepository(db, logger),
		},
		logger,
	)

	sources, err := collectPDFs(*dir)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		printError("Error: no PDF files found under %s\n", *dir)
		os.Exit(1)
	}
	logger.Info("starting batch", "dir", *dir, "documents", len(sources))

	exporter := export.NewService(logger)
	processed := 0
	failures := 0
	for _, src := range sources {
		logger.Info("processing document", "source", src)
		res, err := processor.Run(ctx, src)
		if err != nil {
			logger.Error("document failed", "source", src, "error", err)
			failures++
			continue
		}
		processed++

		if *reports {
			if err := writeReports(ctx, exporter, fsStore, res); err != nil {
				logger.Warn("report generation failed", "run_id", res.RunID, "error", err)
			}
		}
	}

	logger.Info("batch complete",
		"documents", len(sources),
		"processed", processed,
		"failures", failures,
		"output_dir", cfg.Store.OutputDir)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents found: %d\n", len(sources))
	fmt.Printf("- Processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", cfg.Store.OutputDir)
	if failures > 0 {
		os.Exit(1)
	}
}

// collectPDFs walks dir and returns the contract PDFs under it in a stable
// order so batch runs are reproducible.
func collectPDFs(dir string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if constants.IsAllowedExtension(filepath.Ext(path)) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(sources)
	return sources, nil
}

// writeReports stores the human-facing outputs next to the run's artifacts.
func writeReports(ctx context.Context, exporter *export.Service, st store.Store, res *pipeline.RunResult) error {
	sum := export.Summary{
		RunID:      res.RunID.String(),
		SourcePath: res.SourcePath,
		Units:      res.Units,
		Manifest:   res.Manifest,
		Failures:   res.Failures,
		Elapsed:    res.Elapsed,
	}

	xlsx, err := exporter.WorkbookXLSX(sum)
	if err != nil {
		return fmt.Errorf("xlsx report: %w", err)
	}
	if _, err := st.Put(ctx, res.RunID.String()+"/report.xlsx", bytes.NewReader(xlsx)); err != nil {
		return fmt.Errorf("store xlsx report: %w", err)
	}

	md := exporter.MarkdownReport(sum)
	if _, err := st.Put(ctx, res.RunID.String()+"/report.md", bytes.NewReader(md)); err != nil {
		return fmt.Errorf("store markdown report: %w", err)
	}

	html, err := exporter.HTMLReport(sum)
	if err != nil {
		return fmt.Errorf("html report: %w", err)
	}
	if _, err := st.Put(ctx, res.RunID.String()+"/report.html", bytes.NewReader(html)); err != nil {
		return fmt.Errorf("store html report: %w", err)
	}
	return nil
}

// buildPasses wires one pass per extraction task, preferring OpenAI when
// its key is configured and falling back to Gemini otherwise.
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
	return passes, closers, nil
}
