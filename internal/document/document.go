// Package document defines the chunked form of a source contract: an
// ordered list of located text and table fragments with dense per-run
// identifiers, plus the page geometry needed to resolve citations back to
// pixel regions.
package document

import (
	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/geometry"
)

// Chunk is one addressable fragment of contract content.
//
// IDs are dense within a run ("chunk_000", "chunk_001", ...) and are
// reassigned on every re-parse, so a persisted chunk reference is only
// meaningful alongside the run that produced it. Chunks are immutable
// once built and are shared read-only with every downstream stage.
type Chunk struct {
	ID   string                `json:"chunk_id"`
	Text string                `json:"text"`
	Page int                   `json:"page"`
	BBox geometry.RawBBox      `json:"bbox"`
	Type constants.ElementType `json:"element_type"`
}

// PageInfo is the native size of one page in user-space units.
type PageInfo struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Document is the chunked form of one source contract for a single run.
type Document struct {
	SourcePath  string
	ContentHash string
	Pages       []PageInfo
	Chunks      []Chunk

	byID map[string]int
}

// FromChunks assembles a Document from an externally produced chunk list,
// indexing it for citation lookup.
func FromChunks(chunks []Chunk, pages []PageInfo) *Document {
	d := &Document{Pages: pages, Chunks: chunks}
	d.indexChunks()
	return d
}

func (d *Document) indexChunks() {
	d.byID = make(map[string]int, len(d.Chunks))
	for i := range d.Chunks {
		d.byID[d.Chunks[i].ID] = i
	}
}

func (d *Document) PageCount() int {
	return len(d.Pages)
}

// PageSize returns the native size of a 1-indexed page; ok is false when
// the page is out of range.
func (d *Document) PageSize(page int) (PageInfo, bool) {
	if page < 1 || page > len(d.Pages) {
		return PageInfo{}, false
	}
	return d.Pages[page-1], true
}

// ChunkByID resolves a citation's chunk reference. Lookup is exact and
// case-sensitive. Safe for concurrent readers.
func (d *Document) ChunkByID(id string) (*Chunk, bool) {
	if d.byID != nil {
		i, ok := d.byID[id]
		if !ok {
			return nil, false
		}
		return &d.Chunks[i], true
	}
	for i := range d.Chunks {
		if d.Chunks[i].ID == id {
			return &d.Chunks[i], true
		}
	}
	return nil, false
}
