package document

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/geometry"
)

func box(l, t, r, b float64) geometry.RawBBox {
	return geometry.NewRawBBox(geometry.BBox{L: l, T: t, R: r, B: b})
}

func TestBuilderAssignsDenseIDs(t *testing.T) {
	b := NewBuilder("contract.pdf")
	b.AddPage(600, 800)

	admitted := []struct {
		typ  constants.ElementType
		page int
		bbox geometry.RawBBox
		text string
		want bool
	}{
		{constants.ElementTable, 1, box(50, 700, 550, 500), "| Unidade | Valor |\n|---|---|\n| 64 | 100000 |", true},
		{constants.ElementText, 1, box(50, 480, 550, 460), "CONTRATO DE COMPRA E VENDA", true},
		{constants.ElementText, 1, box(50, 450, 550, 430), "   ", false}, // whitespace only
		{constants.ElementText, 0, box(50, 420, 550, 400), "sem pagina", false},
		{constants.ElementText, 1, geometry.RawBBox{}, "sem bbox", false},
		{constants.ElementText, 1, box(50, 390, 550, 370), "Unidade 64, valor R$ 100.000,00", true},
	}

	var got []Chunk
	for i, el := range admitted {
		c, ok := b.Add(el.typ, el.page, el.bbox, el.text)
		if ok != el.want {
			t.Fatalf("element %d: admitted = %v, want %v", i, ok, el.want)
		}
		if ok {
			got = append(got, c)
		}
	}

	wantIDs := []string{"chunk_000", "chunk_001", "chunk_002"}
	if len(got) != len(wantIDs) {
		t.Fatalf("admitted %d chunks, want %d", len(got), len(wantIDs))
	}
	for i, c := range got {
		if c.ID != wantIDs[i] {
			t.Errorf("chunk %d id = %q, want %q (skipped elements must not reserve ordinals)", i, c.ID, wantIDs[i])
		}
	}
}

func TestBuilderKeepsTableWithoutLocation(t *testing.T) {
	b := NewBuilder("contract.pdf")
	b.AddPage(600, 800)

	c, ok := b.Add(constants.ElementTable, 0, geometry.RawBBox{}, "| a | b |\n|---|---|\n| 1 | 2 |")
	if !ok {
		t.Fatal("table without location must still be admitted")
	}
	if c.ID != "chunk_000" {
		t.Errorf("id = %q, want chunk_000", c.ID)
	}
}

func TestChunkByID(t *testing.T) {
	b := NewBuilder("contract.pdf")
	b.AddPage(600, 800)
	for i := 0; i < 11; i++ {
		b.Add(constants.ElementText, 1, box(10, 100, 200, 80), fmt.Sprintf("paragrafo %d", i))
	}
	d := b.Build()

	c, ok := d.ChunkByID("chunk_010")
	if !ok {
		t.Fatal("chunk_010 must exist")
	}
	if c.Text != "paragrafo 10" {
		t.Errorf("text = %q", c.Text)
	}

	if _, ok := d.ChunkByID("chunk_999"); ok {
		t.Error("chunk_999 must not resolve")
	}
	if _, ok := d.ChunkByID("CHUNK_010"); ok {
		t.Error("lookup must be case-sensitive")
	}
}

func TestPageSize(t *testing.T) {
	b := NewBuilder("contract.pdf")
	b.AddPage(600, 800)
	b.AddPage(595.28, 841.89)
	d := b.Build()

	tests := []struct {
		page   int
		wantOK bool
		wantH  float64
	}{
		{1, true, 800},
		{2, true, 841.89},
		{0, false, 0},
		{3, false, 0},
		{-1, false, 0},
	}
	for _, tt := range tests {
		info, ok := d.PageSize(tt.page)
		if ok != tt.wantOK {
			t.Errorf("PageSize(%d) ok = %v, want %v", tt.page, ok, tt.wantOK)
			continue
		}
		if ok && info.Height != tt.wantH {
			t.Errorf("PageSize(%d) height = %g, want %g", tt.page, info.Height, tt.wantH)
		}
	}
	if d.PageCount() != 2 {
		t.Errorf("PageCount = %d, want 2", d.PageCount())
	}
}

func TestChunkJSONShape(t *testing.T) {
	b := NewBuilder("contract.pdf")
	b.AddPage(600, 800)
	b.Add(constants.ElementText, 1, box(100, 700, 300, 650), "Unidade 64")
	d := b.Build()

	data, err := json.Marshal(d.Chunks)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded []Chunk
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("decoded %d chunks", len(decoded))
	}

	c := decoded[0]
	if c.ID != "chunk_000" || c.Page != 1 || c.Type != constants.ElementText {
		t.Errorf("decoded chunk = %+v", c)
	}
	bb, err := c.BBox.Normalize()
	if err != nil {
		t.Fatalf("normalize decoded bbox: %v", err)
	}
	if (bb != geometry.BBox{L: 100, T: 700, R: 300, B: 650}) {
		t.Errorf("bbox = %+v", bb)
	}
}

func TestFromChunksAcceptsStringBBoxes(t *testing.T) {
	payload := `[
		{"chunk_id": "chunk_000", "text": "Unidade 64", "page": 1, "bbox": "(100, 700, 300, 650)", "element_type": "text"},
		{"chunk_id": "chunk_001", "text": "| a |", "page": 1, "bbox": [10, 20, 30, 5], "element_type": "table"}
	]`

	var chunks []Chunk
	if err := json.Unmarshal([]byte(payload), &chunks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	d := FromChunks(chunks, []PageInfo{{Width: 600, Height: 800}})
	c, ok := d.ChunkByID("chunk_000")
	if !ok {
		t.Fatal("chunk_000 missing")
	}
	bb, err := c.BBox.Normalize()
	if err != nil {
		t.Fatalf("string bbox did not normalize: %v", err)
	}
	if bb.T != 700 {
		t.Errorf("t = %g, want 700", bb.T)
	}
}
