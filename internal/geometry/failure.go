package geometry

import (
	"errors"
	"fmt"
)

// FailureKind classifies why one citation could not be carried through to
// a cutout. None of these abort a run; callers skip the citation and the
// corresponding manifest key is simply absent.
type FailureKind string

const (
	// MalformedGeometry covers a missing bbox, wrong arity, or an
	// unparseable bbox payload.
	MalformedGeometry FailureKind = "MALFORMED_GEOMETRY"
	// DegenerateRegion is a region with non-positive area after clamping.
	DegenerateRegion FailureKind = "DEGENERATE_REGION"
	// UnknownChunkReference is a citation whose chunk id is not in the
	// run's chunk list.
	UnknownChunkReference FailureKind = "UNKNOWN_CHUNK_REFERENCE"
	// PageOutOfRange is a citation pointing past the document's page count.
	PageOutOfRange FailureKind = "PAGE_OUT_OF_RANGE"
	// RenderFailure is any rasterization or crop error.
	RenderFailure FailureKind = "RENDER_FAILURE"
)

// Failure records one skipped citation with enough context to account for
// an absent manifest entry.
type Failure struct {
	Kind    FailureKind
	ChunkID string
	Key     string // provenance key, when known
	Page    int
	Err     error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: chunk %q page %d", f.Kind, f.ChunkID, f.Page)
	if f.Key != "" {
		msg = fmt.Sprintf("%s key %q", msg, f.Key)
	}
	if f.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure unwraps err into a *Failure, attaching citation context to a
// bare resolver/renderer failure. A non-Failure error is wrapped as kind.
func AsFailure(err error, kind FailureKind, chunkID string, page int) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		if f.ChunkID == "" {
			f.ChunkID = chunkID
		}
		if f.Page == 0 {
			f.Page = page
		}
		return f
	}
	return &Failure{Kind: kind, ChunkID: chunkID, Page: page, Err: err}
}
