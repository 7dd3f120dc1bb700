// Package provenance records which rendered artifact backs each extracted
// field, keyed by "unit{N}_{field}". The index is the bridge between the
// cutout stage and both the final merged payload and the reporting
// manifest.
package provenance

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/guirra-byte/contracts-extractor/internal/geometry"
)

// ManifestName is the side-output file consumed by reporting. Its absence
// for a run is the caller-visible signal that no cutouts were produced.
const ManifestName = "cutouts_manifest.json"

// Key builds the manifest key for one (unit, field) pair. Unit ordinals
// are 0-based internally and 1-based in the key.
func Key(unitOrdinal int, field string) string {
	return fmt.Sprintf("unit%d_%s", unitOrdinal+1, field)
}

// Artifact is one rendered cutout recorded under a manifest key. Seq is
// the citation's position in enumeration order; it keeps per-key artifact
// lists stable even when rendering completes out of order.
type Artifact struct {
	URI     string
	Name    string
	ChunkID string
	Page    int
	Region  geometry.Region
	Seq     int
}

// Index maps manifest keys to rendered artifacts. Record is safe for the
// concurrent citation workers; each key's list is append-only.
type Index struct {
	mu      sync.Mutex
	entries map[string][]Artifact
}

func NewIndex() *Index {
	return &Index{entries: make(map[string][]Artifact)}
}

// Record adds one artifact under a key.
func (ix *Index) Record(key string, a Artifact) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries[key] = append(ix.entries[key], a)
}

// ArtifactsFor returns a key's artifacts in citation order.
func (ix *Index) ArtifactsFor(key string) []Artifact {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	arts := append([]Artifact(nil), ix.entries[key]...)
	sort.Slice(arts, func(i, j int) bool {
		return arts[i].Seq < arts[j].Seq
	})
	return arts
}

// Len is the number of keys holding at least one artifact.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.entries)
}

// Entry pairs an artifact with the manifest key it was recorded under.
type Entry struct {
	Key      string
	Artifact Artifact
}

// Entries flattens the index for persistence: keys sorted, artifacts in
// citation order within each key.
func (ix *Index) Entries() []Entry {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	keys := make([]string, 0, len(ix.entries))
	for key := range ix.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []Entry
	for _, key := range keys {
		arts := append([]Artifact(nil), ix.entries[key]...)
		sort.Slice(arts, func(i, j int) bool {
			return arts[i].Seq < arts[j].Seq
		})
		for _, a := range arts {
			out = append(out, Entry{Key: key, Artifact: a})
		}
	}
	return out
}

// Manifest is the reporting side output: key → ordered artifact URIs.
type Manifest map[string][]string

// Manifest snapshots the index. Keys marshal sorted and per-key lists
// follow citation order, so re-runs produce byte-stable manifests.
func (ix *Index) Manifest() Manifest {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	m := make(Manifest, len(ix.entries))
	for key, arts := range ix.entries {
		sorted := append([]Artifact(nil), arts...)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Seq < sorted[j].Seq
		})
		uris := make([]string, len(sorted))
		for i, a := range sorted {
			uris[i] = a.URI
		}
		m[key] = uris
	}
	return m
}

// Encode marshals the manifest for storage.
func (m Manifest) Encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
