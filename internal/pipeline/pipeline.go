// Package pipeline runs one contract document end to end: segmentation,
// extraction passes, unit reconciliation, cutout rendering and output
// publication. One Run owns its chunk list, its rendered-page handle and its
// provenance index, so concurrent Runs never share mutable state.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/common"
	"github.com/guirra-byte/contracts-extractor/internal/document"
	"github.com/guirra-byte/contracts-extractor/internal/extraction"
	"github.com/guirra-byte/contracts-extractor/internal/geometry"
	"github.com/guirra-byte/contracts-extractor/internal/provenance"
	"github.com/guirra-byte/contracts-extractor/internal/reconcile"
	"github.com/guirra-byte/contracts-extractor/internal/render"
	"github.com/guirra-byte/contracts-extractor/internal/repository"
	"github.com/guirra-byte/contracts-extractor/internal/store"
)

const defaultCutoutWorkers = 4

// Config holds behavior knobs for the processor.
type Config struct {
	CutoutWorkers   int     // parallel citation renders per run
	IdentifierField string  // unit pairing key, default "unitCode"
	Padding         float64 // cutout padding in page units, default geometry.DefaultPadding
}

// Segmenter produces the chunked document for one source file.
// *segment.Segmenter is the production implementation.
type Segmenter interface {
	Segment(ctx context.Context, path string) (*document.Document, error)
}

// Deps wires the processor's collaborators. Runs, Artifacts and Notifier
// may be nil; persistence and notification are skipped then.
type Deps struct {
	Segmenter Segmenter
	Passes    []extraction.Pass
	Renderer  *render.Renderer
	Store     store.Store
	Notifier  store.Notifier
	Runs      repository.RunRepository
	Artifacts repository.ArtifactRepository
}

// Processor coordinates the per-document extraction run.
type Processor struct {
	logger   *slog.Logger
	cfg      Config
	deps     Deps
	resolver *geometry.Resolver
}

func NewProcessor(cfg Config, deps Deps, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CutoutWorkers <= 0 {
		cfg.CutoutWorkers = defaultCutoutWorkers
	}
	if cfg.IdentifierField == "" {
		cfg.IdentifierField = reconcile.DefaultIdentifierField
	}
	if cfg.Padding == 0 {
		cfg.Padding = geometry.DefaultPadding
	}
	return &Processor{
		logger:   logger,
		cfg:      cfg,
		deps:     deps,
		resolver: geometry.NewResolver(cfg.Padding),
	}
}

// RunResult is what a completed run hands back to its caller.
type RunResult struct {
	RunID         uuid.UUID
	SourcePath    string
	ContentHash   string
	Units         []reconcile.FinalUnit
	Manifest      provenance.Manifest
	OutputURI     string
	ManifestURI   string
	Passes        []extraction.PassMeta
	Failures      []*geometry.Failure
	ArtifactCount int
	Elapsed       time.Duration
}

// Run processes one document under a fresh run id. Per-citation failures
// degrade field by field and land in RunResult.Failures; only
// document-level errors (cannot open, every pass failed, outputs
// unwritable) are returned.
func (p *Processor) Run(ctx context.Context, sourcePath string) (*RunResult, error) {
	return p.run(ctx, uuid.New(), sourcePath, true)
}

// RunQueued executes a run whose row was created at submission time; the
// row moves QUEUED -> RUNNING here.
func (p *Processor) RunQueued(ctx context.Context, runID uuid.UUID, sourcePath string) (*RunResult, error) {
	return p.run(ctx, runID, sourcePath, false)
}

func (p *Processor) run(ctx context.Context, runID uuid.UUID, sourcePath string, create bool) (*RunResult, error) {
	start := time.Now()
	ctx = common.WithRunID(ctx, runID.String())
	log := p.logger.With("run_id", runID.String())

	if p.deps.Runs != nil {
		if create {
			run := &repository.ExtractionRun{
				ID:              runID,
				SourcePath:      sourcePath,
				IdentifierField: p.cfg.IdentifierField,
				Status:          constants.RunStatusRunning,
			}
			if err := p.deps.Runs.Create(ctx, run); err != nil {
				return nil, err
			}
		} else {
			if err := p.deps.Runs.UpdateStatus(ctx, runID, constants.RunStatusRunning); err != nil {
				return nil, err
			}
		}
	}
	fail := func(err error) (*RunResult, error) {
		if p.deps.Runs != nil {
			_ = p.deps.Runs.FinishFailure(ctx, runID, err.Error())
		}
		return nil, err
	}

	// 1) segment the document into addressable chunks
	doc, err := p.deps.Segmenter.Segment(ctx, sourcePath)
	if err != nil {
		log.Error("pipeline.segment.failed", "source", sourcePath, "err", err)
		return fail(fmt.Errorf("segment document: %w", err))
	}
	p.setStatus(ctx, runID, constants.RunStatusSegmented)

	// 2) extraction passes; each failed pass drops out, at least one must land
	var outputs []reconcile.PassOutput
	var metas []extraction.PassMeta
	for _, pass := range p.deps.Passes {
		units, meta, err := pass.Extract(ctx, doc)
		if err != nil {
			log.Warn("pipeline.pass.failed", "pass", meta.Name, "model", meta.Model, "err", err)
			continue
		}
		log.Info("pipeline.pass.ok",
			"pass", meta.Name, "model", meta.Model,
			"units", len(units), "elapsed_ms", meta.Elapsed.Milliseconds())
		outputs = append(outputs, reconcile.PassOutput{Name: meta.Name, Units: units})
		metas = append(metas, meta)
	}
	if len(outputs) == 0 {
		log.Error("pipeline.passes.exhausted", "passes", len(p.deps.Passes))
		return fail(fmt.Errorf("all %d extraction passes failed", len(p.deps.Passes)))
	}
	p.setStatus(ctx, runID, constants.RunStatusPassesOK)

	// 3) reconcile pass outputs into one record per unit
	units := reconcile.Merge(outputs, reconcile.MergeOptions{IdentifierField: p.cfg.IdentifierField})
	log.Info("pipeline.merge.ok", "passes", len(outputs), "units", len(units))

	// 4) render cutouts for every surviving citation
	handle, err := p.deps.Renderer.Open(sourcePath, doc.PageCount())
	if err != nil {
		log.Error("pipeline.render.open_failed", "source", sourcePath, "err", err)
		return fail(fmt.Errorf("open document for rendering: %w", err))
	}
	defer func() {
		if cErr := handle.Close(); cErr != nil {
			log.Warn("pipeline.render.close_failed", "err", cErr)
		}
	}()

	idx := provenance.NewIndex()
	failures := p.renderCutouts(ctx, log, runID, doc, units, handle, idx)

	// 5) attach artifacts and publish outputs; the manifest is written even
	// when citations failed — absent keys are the caller-visible signal
	final := reconcile.AttachArtifacts(units, idx)

	outBytes, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("encode consolidated output: %w", err))
	}
	outputURI, err := p.deps.Store.Put(ctx, runID.String()+"/consolidated.json", bytes.NewReader(outBytes))
	if err != nil {
		return fail(fmt.Errorf("store consolidated output: %w", err))
	}

	manifest := idx.Manifest()
	manifestBytes, err := manifest.Encode()
	if err != nil {
		return fail(fmt.Errorf("encode manifest: %w", err))
	}
	manifestURI, err := p.deps.Store.Put(ctx, runID.String()+"/"+provenance.ManifestName, bytes.NewReader(manifestBytes))
	if err != nil {
		return fail(fmt.Errorf("store manifest: %w", err))
	}

	// 6) persist and notify
	entries := idx.Entries()
	if p.deps.Artifacts != nil {
		if err := p.deps.Artifacts.CreateBatch(ctx, runID, entries); err != nil {
			return fail(err)
		}
	}
	if p.deps.Runs != nil {
		if err := p.deps.Runs.FinishSuccess(ctx, runID, repository.FinishResult{
			UnitCount:     len(final),
			ArtifactCount: len(entries),
			FailureCount:  len(failures),
			OutputURI:     outputURI,
			ManifestURI:   manifestURI,
		}); err != nil {
			return nil, err
		}
	}
	if p.deps.Notifier != nil {
		if err := p.deps.Notifier.Publish(ctx, "extraction.done", map[string]any{
			"run_id":       runID.String(),
			"source_path":  sourcePath,
			"units":        len(final),
			"artifacts":    len(entries),
			"failures":     len(failures),
			"output_uri":   outputURI,
			"manifest_uri": manifestURI,
		}); err != nil {
			log.Warn("pipeline.notify.failed", "err", err)
		}
	}

	res := &RunResult{
		RunID:         runID,
		SourcePath:    sourcePath,
		ContentHash:   doc.ContentHash,
		Units:         final,
		Manifest:      manifest,
		OutputURI:     outputURI,
		ManifestURI:   manifestURI,
		Passes:        metas,
		Failures:      failures,
		ArtifactCount: len(entries),
		Elapsed:       time.Since(start),
	}
	log.Info("pipeline.done",
		"units", len(final),
		"artifacts", len(entries),
		"failures", len(failures),
		"elapsed_ms", res.Elapsed.Milliseconds())
	return res, nil
}

func (p *Processor) setStatus(ctx context.Context, runID uuid.UUID, status constants.RunStatus) {
	if p.deps.Runs == nil {
		return
	}
	if err := p.deps.Runs.UpdateStatus(ctx, runID, status); err != nil {
		p.logger.Warn("pipeline.status.update_failed", "run_id", runID, "status", status, "err", err)
	}
}
