// Package reconcile merges the unit lists produced by independent
// extraction passes into one consolidated record per physical property
// unit, then rewrites field citations to point at rendered artifacts.
//
// Reconciliation is identifier-aware: when passes declare a unit
// identifier, units pair up by its value regardless of list position, and
// position only pairs units where identifiers are missing. Extra units
// from any pass are appended, never dropped.
package reconcile

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/guirra-byte/contracts-extractor/constants"
)

// SyntheticChunkID marks a citation for a derived value with no physical
// location; it resolves to null instead of an artifact.
const SyntheticChunkID = "calculated"

// DefaultIdentifierField is the declared unit identifier used to pair
// units across passes.
const DefaultIdentifierField = "unitCode"

// Citation points a field at the chunk that justified its value.
type Citation struct {
	Field   string `json:"field"`
	ChunkID string `json:"chunk_id"`
	Excerpt string `json:"text_excerpt,omitempty"`
}

// Unit is one pass's record for one physical property unit. Field values
// may be null when the pass saw the field but not its value.
type Unit struct {
	Fields     map[string]any                  `json:"unit"`
	Sources    []Citation                      `json:"sources"`
	Confidence map[string]constants.Confidence `json:"confidence"`
}

// PassOutput is the complete, ordered result of one extraction pass.
type PassOutput struct {
	Name  string
	Units []Unit
}

type MergeOptions struct {
	// IdentifierField overrides DefaultIdentifierField.
	IdentifierField string
}

// Merge reconciles pass outputs in order. The first pass establishes the
// base sequence; every later pass contributes per matched unit:
//
//   - fields absent or null in the accumulated record
//   - confidence entries, overwriting on collision
//   - citations for fields that have none yet
//
// Units that match no base unit are appended at the end in pass order.
// Pass outputs are never mutated; merged units are fresh copies.
func Merge(passes []PassOutput, opts MergeOptions) []Unit {
	idField := opts.IdentifierField
	if idField == "" {
		idField = DefaultIdentifierField
	}

	var merged []Unit
	for pi, pass := range passes {
		if pi == 0 {
			merged = make([]Unit, len(pass.Units))
			for i, u := range pass.Units {
				merged[i] = cloneUnit(u)
			}
			continue
		}
		merged = applyPass(merged, pass.Units, idField)
	}
	return merged
}

// applyPass folds one overlay pass into the accumulated units: first by
// declared identifier, then by position for units without a keyed match,
// finally appending whatever matched nothing.
func applyPass(merged []Unit, overlay []Unit, idField string) []Unit {
	byID := make(map[string]int, len(merged))
	for i, u := range merged {
		if id, ok := identifier(u, idField); ok {
			if _, exists := byID[id]; !exists {
				byID[id] = i
			}
		}
	}

	consumed := make([]bool, len(overlay))
	usedTarget := make(map[int]bool, len(overlay))

	for oi, ou := range overlay {
		id, ok := identifier(ou, idField)
		if !ok {
			continue
		}
		mi, ok := byID[id]
		if !ok || usedTarget[mi] {
			continue
		}
		mergeInto(&merged[mi], ou)
		consumed[oi] = true
		usedTarget[mi] = true
	}

	for oi, ou := range overlay {
		if consumed[oi] || oi >= len(merged) || usedTarget[oi] {
			continue
		}
		// position only pairs units when identifiers cannot disagree
		oid, oHas := identifier(ou, idField)
		mid, mHas := identifier(merged[oi], idField)
		if oHas && mHas && oid != mid {
			continue
		}
		mergeInto(&merged[oi], ou)
		consumed[oi] = true
		usedTarget[oi] = true
	}

	for oi, ou := range overlay {
		if !consumed[oi] {
			merged = append(merged, cloneUnit(ou))
		}
	}
	return merged
}

func mergeInto(dst *Unit, src Unit) {
	if len(src.Fields) > 0 && dst.Fields == nil {
		dst.Fields = make(map[string]any, len(src.Fields))
	}
	for k, v := range src.Fields {
		if cur, ok := dst.Fields[k]; !ok || cur == nil {
			dst.Fields[k] = v
		}
	}

	if len(src.Confidence) > 0 && dst.Confidence == nil {
		dst.Confidence = make(map[string]constants.Confidence, len(src.Confidence))
	}
	for k, v := range src.Confidence {
		dst.Confidence[k] = v
	}

	cited := make(map[string]struct{}, len(dst.Sources))
	for _, c := range dst.Sources {
		cited[c.Field] = struct{}{}
	}
	for _, c := range src.Sources {
		if _, dup := cited[c.Field]; dup {
			continue
		}
		dst.Sources = append(dst.Sources, c)
		cited[c.Field] = struct{}{}
	}
}

// identifier extracts a unit's declared identifier as a comparable
// string. Absent, null, empty, and non-scalar values all count as no
// identifier.
func identifier(u Unit, field string) (string, bool) {
	v, ok := u.Fields[field]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return s, s != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

func cloneUnit(u Unit) Unit {
	out := Unit{}
	if u.Fields != nil {
		out.Fields = make(map[string]any, len(u.Fields))
		for k, v := range u.Fields {
			out.Fields[k] = v
		}
	}
	if u.Confidence != nil {
		out.Confidence = make(map[string]constants.Confidence, len(u.Confidence))
		for k, v := range u.Confidence {
			out.Confidence[k] = v
		}
	}
	if u.Sources != nil {
		out.Sources = append([]Citation(nil), u.Sources...)
	}
	return out
}
