package geometry

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		raw        RawBBox
		pageW      float64
		pageH      float64
		padding    float64
		want       Region
		wantKind   FailureKind
	}{
		{
			name:    "bottom-left flip with padding and clamp",
			raw:     RawBBox{List: []float64{100, 700, 300, 650}},
			pageW:   600,
			pageH:   800,
			padding: 10,
			want:    Region{Left: 90, Top: 90, Right: 310, Bottom: 160},
		},
		{
			name:    "no padding keeps exact flip",
			raw:     RawBBox{List: []float64{100, 700, 300, 650}},
			pageW:   600,
			pageH:   800,
			padding: 0,
			want:    Region{Left: 100, Top: 100, Right: 300, Bottom: 150},
		},
		{
			name:    "clamps negative left and top to zero",
			raw:     RawBBox{List: []float64{2, 798, 50, 700}},
			pageW:   600,
			pageH:   800,
			padding: 10,
			want:    Region{Left: 0, Top: 0, Right: 60, Bottom: 110},
		},
		{
			name:    "clamps right and bottom to page bounds",
			raw:     RawBBox{List: []float64{500, 100, 595, 5}},
			pageW:   600,
			pageH:   800,
			padding: 10,
			want:    Region{Left: 490, Top: 690, Right: 600, Bottom: 800},
		},
		{
			name:    "zero-height box gains area from padding",
			raw:     RawBBox{List: []float64{100, 400, 300, 400}},
			pageW:   600,
			pageH:   800,
			padding: 10,
			want:    Region{Left: 90, Top: 390, Right: 310, Bottom: 410},
		},
		{
			name:     "box entirely right of the page is degenerate",
			raw:      RawBBox{List: []float64{700, 400, 750, 350}},
			pageW:    600,
			pageH:    800,
			padding:  10,
			wantKind: DegenerateRegion,
		},
		{
			name:     "inverted box is degenerate",
			raw:      RawBBox{List: []float64{100, 100, 300, 200}},
			pageW:    600,
			pageH:    800,
			padding:  10,
			wantKind: DegenerateRegion,
		},
		{
			name:     "zero-area box without padding is degenerate",
			raw:      RawBBox{List: []float64{100, 400, 100, 400}},
			pageW:    600,
			pageH:    800,
			padding:  0,
			wantKind: DegenerateRegion,
		},
		{
			name:     "missing bbox is malformed",
			raw:      RawBBox{},
			pageW:    600,
			pageH:    800,
			padding:  10,
			wantKind: MalformedGeometry,
		},
		{
			name:     "wrong arity is malformed",
			raw:      RawBBox{List: []float64{1, 2, 3}},
			pageW:    600,
			pageH:    800,
			padding:  10,
			wantKind: MalformedGeometry,
		},
		{
			name:     "non-positive page size is malformed",
			raw:      RawBBox{List: []float64{100, 700, 300, 650}},
			pageW:    0,
			pageH:    800,
			padding:  10,
			wantKind: MalformedGeometry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := NewResolver(tt.padding)
			got, err := rs.Resolve(tt.raw, tt.pageW, tt.pageH)

			if tt.wantKind != "" {
				if err == nil {
					t.Fatalf("expected %s failure, got region %+v", tt.wantKind, got)
				}
				var f *Failure
				if !errors.As(err, &f) {
					t.Fatalf("error is not a *Failure: %v", err)
				}
				if f.Kind != tt.wantKind {
					t.Errorf("failure kind = %s, want %s", f.Kind, tt.wantKind)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("region = %+v, want %+v", got, tt.want)
			}
			if got.Right <= got.Left || got.Bottom <= got.Top {
				t.Errorf("region %+v has non-positive area", got)
			}
		})
	}
}

func TestResolveStringAndListMatch(t *testing.T) {
	tests := []struct {
		name string
		text string
		list []float64
	}{
		{"plain", "10, 20, 100, 200", []float64{10, 20, 100, 200}},
		{"parenthesized", "(10, 20, 100, 200)", []float64{10, 20, 100, 200}},
		{"bracketed", "[10.5,20.25,100,200]", []float64{10.5, 20.25, 100, 200}},
		{"padded whitespace", "  ( 10 , 20 , 100 , 200 )  ", []float64{10, 20, 100, 200}},
	}

	rs := NewResolver(DefaultPadding)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fromText, err := rs.Resolve(RawBBox{Text: tt.text}, 600, 800)
			if err != nil {
				t.Fatalf("text form: %v", err)
			}
			fromList, err := rs.Resolve(RawBBox{List: tt.list}, 600, 800)
			if err != nil {
				t.Fatalf("list form: %v", err)
			}
			if fromText != fromList {
				t.Errorf("text and list forms disagree: %+v vs %+v", fromText, fromList)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawBBox
		want    BBox
		wantErr bool
	}{
		{"list", RawBBox{List: []float64{1, 4, 3, 2}}, BBox{L: 1, T: 4, R: 3, B: 2}, false},
		{"string", RawBBox{Text: "1, 4, 3, 2"}, BBox{L: 1, T: 4, R: 3, B: 2}, false},
		{"five values", RawBBox{List: []float64{1, 2, 3, 4, 5}}, BBox{}, true},
		{"three parts", RawBBox{Text: "1,2,3"}, BBox{}, true},
		{"non-numeric part", RawBBox{Text: "1, two, 3, 4"}, BBox{}, true},
		{"nan value", RawBBox{List: []float64{1, math.NaN(), 3, 4}}, BBox{}, true},
		{"infinite value", RawBBox{List: []float64{1, math.Inf(1), 3, 4}}, BBox{}, true},
		{"absent", RawBBox{}, BBox{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.raw.Normalize()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("bbox = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRawBBoxJSON(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		present  bool
		wantBBox BBox
	}{
		{"number list", `[100, 700, 300, 650]`, true, BBox{L: 100, T: 700, R: 300, B: 650}},
		{"string form", `"(100, 700, 300, 650)"`, true, BBox{L: 100, T: 700, R: 300, B: 650}},
		{"null", `null`, false, BBox{}},
		{"unrecognized shape tolerated", `{"l": 1}`, false, BBox{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var raw RawBBox
			if err := json.Unmarshal([]byte(tt.payload), &raw); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if raw.Present() != tt.present {
				t.Fatalf("Present() = %v, want %v", raw.Present(), tt.present)
			}
			if !tt.present {
				return
			}
			got, err := raw.Normalize()
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != tt.wantBBox {
				t.Errorf("bbox = %+v, want %+v", got, tt.wantBBox)
			}
		})
	}
}

func TestRawBBoxRoundTrip(t *testing.T) {
	orig := NewRawBBox(BBox{L: 10, T: 200, R: 100, B: 20})
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded RawBBox
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	before, _ := orig.Normalize()
	after, err := decoded.Normalize()
	if err != nil {
		t.Fatalf("normalize decoded: %v", err)
	}
	if before != after {
		t.Errorf("round trip changed bbox: %+v vs %+v", before, after)
	}
}

func TestAsFailure(t *testing.T) {
	rs := NewResolver(0)
	_, err := rs.Resolve(RawBBox{}, 600, 800)
	if err == nil {
		t.Fatal("expected failure")
	}

	f := AsFailure(err, RenderFailure, "chunk_007", 3)
	if f.Kind != MalformedGeometry {
		t.Errorf("kind = %s, want %s (existing failure kind must win)", f.Kind, MalformedGeometry)
	}
	if f.ChunkID != "chunk_007" || f.Page != 3 {
		t.Errorf("context not attached: %+v", f)
	}

	plain := errors.New("pdftoppm exited 1")
	f = AsFailure(plain, RenderFailure, "chunk_001", 2)
	if f.Kind != RenderFailure || !errors.Is(f, plain) {
		t.Errorf("plain error not wrapped as render failure: %+v", f)
	}
}
