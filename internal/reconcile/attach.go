package reconcile

import (
	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/provenance"
)

// ResolvedCitation is a citation after artifact attachment. ChunkFileKey
// is the artifact locator, the raw chunk id when no artifact could be
// produced, or null for synthetic citations. Provenance is never silently
// dropped.
type ResolvedCitation struct {
	Field        string  `json:"field"`
	ChunkFileKey *string `json:"chunk_file_key"`
}

// FinalUnit is a merged unit with citations rewritten to artifacts; this
// is the shape of the consolidated run output.
type FinalUnit struct {
	Fields     map[string]any                  `json:"unit"`
	Sources    []ResolvedCitation              `json:"sources"`
	Confidence map[string]constants.Confidence `json:"confidence"`
}

// AttachArtifacts rewrites each merged unit's citations against the
// provenance index. A citation whose chunk produced a cutout points at
// that artifact; one that failed to render keeps its raw chunk id.
func AttachArtifacts(units []Unit, idx *provenance.Index) []FinalUnit {
	out := make([]FinalUnit, len(units))
	for i, u := range units {
		fu := FinalUnit{
			Fields:     u.Fields,
			Confidence: u.Confidence,
		}
		if len(u.Sources) > 0 {
			fu.Sources = make([]ResolvedCitation, 0, len(u.Sources))
		}

		for _, c := range u.Sources {
			rc := ResolvedCitation{Field: c.Field}
			if c.ChunkID != "" && c.ChunkID != SyntheticChunkID {
				id := c.ChunkID
				rc.ChunkFileKey = &id
				for _, a := range idx.ArtifactsFor(provenance.Key(i, c.Field)) {
					if a.ChunkID == c.ChunkID {
						uri := a.URI
						rc.ChunkFileKey = &uri
						break
					}
				}
			}
			fu.Sources = append(fu.Sources, rc)
		}
		out[i] = fu
	}
	return out
}
