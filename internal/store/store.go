// Package store abstracts where run artifacts land and how downstream
// systems hear about finished runs.
package store

import (
	"context"
	"io"
)

// Store persists named artifacts (cutout PNGs, consolidated output, the
// manifest) and hands back a stable URI for each.
type Store interface {
	// Put writes the artifact under name, overwriting any previous version,
	// and returns its URI. Name may carry a relative sub-path such as
	// "<run-id>/unit1_sellValue_chunk_005_page3.png".
	Put(ctx context.Context, name string, r io.Reader) (string, error)
	// Open reads a previously stored artifact back. A missing artifact is
	// a common.ErrNotFound; for the manifest that absence is the signal
	// that the run produced no cutouts.
	Open(name string) (io.ReadCloser, error)
	// URI returns the URI Put would produce for name without writing.
	URI(name string) string
}

// Notifier announces a finished run to whoever listens.
type Notifier interface {
	Publish(ctx context.Context, subject string, payload any) error
}
