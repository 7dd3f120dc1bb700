// Package geometry converts chunk bounding boxes from the document's
// bottom-left-origin user space into padded, clamped crop regions for the
// cutout renderer. Regions stay in native page units so the same geometry
// serves any render resolution.
package geometry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BBox is the canonical bounding box: native user-space units, bottom-left
// origin. T and B are measured up from the page bottom, so T > B for any
// box with height.
type BBox struct {
	L float64
	T float64
	R float64
	B float64
}

func (b BBox) Width() float64 {
	return b.R - b.L
}

func (b BBox) Height() float64 {
	return b.T - b.B
}

// IsZero reports the absent value.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// RawBBox is the ingestion-boundary shape of a bounding box. Segmenters
// and extraction passes emit either a 4-number list or a string of four
// comma-separated numbers, optionally wrapped in parentheses or brackets.
// Normalize canonicalizes to BBox; the ambiguity stops there.
type RawBBox struct {
	List []float64
	Text string
}

// NewRawBBox wraps a canonical box for serialization.
func NewRawBBox(b BBox) RawBBox {
	return RawBBox{List: []float64{b.L, b.T, b.R, b.B}}
}

// Present reports whether any bbox payload arrived.
func (r RawBBox) Present() bool {
	return r.List != nil || strings.TrimSpace(r.Text) != ""
}

// UnmarshalJSON accepts both wire shapes. An unrecognized shape is kept
// absent rather than failing the surrounding decode; the citation that
// references it degrades to a malformed-geometry skip at resolve time.
func (r *RawBBox) UnmarshalJSON(data []byte) error {
	r.List, r.Text = nil, ""

	var nums []float64
	if err := json.Unmarshal(data, &nums); err == nil {
		r.List = nums
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		r.Text = s
		return nil
	}
	return nil
}

func (r RawBBox) MarshalJSON() ([]byte, error) {
	switch {
	case r.List != nil:
		return json.Marshal(r.List)
	case strings.TrimSpace(r.Text) != "":
		return json.Marshal(r.Text)
	default:
		return []byte("null"), nil
	}
}

// Normalize canonicalizes the raw payload. A missing payload, wrong
// arity, unparseable part, or non-finite value is malformed geometry.
func (r RawBBox) Normalize() (BBox, error) {
	var vals []float64
	switch {
	case r.List != nil:
		vals = r.List
	case strings.TrimSpace(r.Text) != "":
		parsed, err := parseBBoxText(r.Text)
		if err != nil {
			return BBox{}, err
		}
		vals = parsed
	default:
		return BBox{}, fmt.Errorf("bbox missing")
	}

	if len(vals) != 4 {
		return BBox{}, fmt.Errorf("bbox has %d values, want 4", len(vals))
	}
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return BBox{}, fmt.Errorf("bbox value %d is not finite", i)
		}
	}
	return BBox{L: vals[0], T: vals[1], R: vals[2], B: vals[3]}, nil
}

func parseBBoxText(s string) ([]float64, error) {
	trimmed := strings.TrimSpace(s)
	for _, wrap := range [][2]string{{"(", ")"}, {"[", "]"}} {
		if strings.HasPrefix(trimmed, wrap[0]) && strings.HasSuffix(trimmed, wrap[1]) {
			trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			break
		}
	}

	parts := strings.Split(trimmed, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox string %q has %d parts, want 4", s, len(parts))
	}

	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox string %q part %d: %w", s, i, err)
		}
		vals[i] = v
	}
	return vals, nil
}
