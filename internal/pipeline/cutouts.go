package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/guirra-byte/contracts-extractor/internal/document"
	"github.com/guirra-byte/contracts-extractor/internal/geometry"
	"github.com/guirra-byte/contracts-extractor/internal/provenance"
	"github.com/guirra-byte/contracts-extractor/internal/reconcile"
	"github.com/guirra-byte/contracts-extractor/internal/render"
)

// citation is one render work item, fixed before workers start.
type citation struct {
	seq     int
	ordinal int
	key     string
	field   string
	chunkID string
}

// enumerateCitations walks merged units in order and flattens their sources
// into render work. Synthetic and empty chunk references never reach the
// renderer, and a (key, chunk) pair repeated across passes renders once.
// Seq is assigned here, before any worker runs, so artifact order inside a
// manifest key never depends on render completion order.
func enumerateCitations(units []reconcile.Unit) []citation {
	seen := make(map[string]struct{})
	var out []citation
	seq := 0
	for i, u := range units {
		for _, c := range u.Sources {
			if c.Field == "" || c.ChunkID == "" || c.ChunkID == reconcile.SyntheticChunkID {
				continue
			}
			key := provenance.Key(i, c.Field)
			dedupe := key + "|" + c.ChunkID
			if _, dup := seen[dedupe]; dup {
				continue
			}
			seen[dedupe] = struct{}{}
			out = append(out, citation{seq: seq, ordinal: i, key: key, field: c.Field, chunkID: c.ChunkID})
			seq++
		}
	}
	return out
}

// renderCutouts fans citations out over a bounded worker pool. Failures are
// collected, never fatal; each one accounts for a manifest key the caller
// will find absent or short.
func (p *Processor) renderCutouts(ctx context.Context, log *slog.Logger, runID uuid.UUID, doc *document.Document, units []reconcile.Unit, handle *render.DocHandle, idx *provenance.Index) []*geometry.Failure {
	cites := enumerateCitations(units)
	if len(cites) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []*geometry.Failure
	)
	sem := make(chan struct{}, p.cfg.CutoutWorkers)
	for _, c := range cites {
		wg.Add(1)
		sem <- struct{}{}
		go func(c citation) {
			defer wg.Done()
			defer func() { <-sem }()

			if f := p.renderOne(ctx, runID, doc, handle, idx, c); f != nil {
				log.Warn("pipeline.cutout.skip",
					"kind", string(f.Kind),
					"key", f.Key,
					"chunk_id", f.ChunkID,
					"page", f.Page,
					"err", f.Err)
				mu.Lock()
				failures = append(failures, f)
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Key != failures[j].Key {
			return failures[i].Key < failures[j].Key
		}
		return failures[i].ChunkID < failures[j].ChunkID
	})
	log.Info("pipeline.cutouts.done",
		"citations", len(cites),
		"rendered", len(cites)-len(failures),
		"failed", len(failures))
	return failures
}

// renderOne carries one citation through lookup, resolve, render and store.
// A nil return means the artifact was recorded under the citation's key;
// otherwise the returned failure explains the absent manifest entry.
func (p *Processor) renderOne(ctx context.Context, runID uuid.UUID, doc *document.Document, handle *render.DocHandle, idx *provenance.Index, c citation) *geometry.Failure {
	chunk, ok := doc.ChunkByID(c.chunkID)
	if !ok {
		return &geometry.Failure{Kind: geometry.UnknownChunkReference, ChunkID: c.chunkID, Key: c.key}
	}

	page, ok := doc.PageSize(chunk.Page)
	if !ok {
		return &geometry.Failure{Kind: geometry.PageOutOfRange, ChunkID: c.chunkID, Key: c.key, Page: chunk.Page}
	}

	reg, err := p.resolver.Resolve(chunk.BBox, page.Width, page.Height)
	if err != nil {
		f := geometry.AsFailure(err, geometry.MalformedGeometry, c.chunkID, chunk.Page)
		f.Key = c.key
		return f
	}

	data, err := handle.RenderPNG(ctx, chunk.Page, reg)
	if err != nil {
		f := geometry.AsFailure(err, geometry.RenderFailure, c.chunkID, chunk.Page)
		f.Key = c.key
		return f
	}

	name := render.ArtifactName(c.ordinal, c.field, c.chunkID, chunk.Page)
	uri, err := p.deps.Store.Put(ctx, runID.String()+"/"+name, bytes.NewReader(data))
	if err != nil {
		return &geometry.Failure{Kind: geometry.RenderFailure, ChunkID: c.chunkID, Key: c.key, Page: chunk.Page, Err: err}
	}

	idx.Record(c.key, provenance.Artifact{
		URI:     uri,
		Name:    name,
		ChunkID: c.chunkID,
		Page:    chunk.Page,
		Region:  reg,
		Seq:     c.seq,
	})
	return nil
}
