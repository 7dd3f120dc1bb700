package segment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func frag(text string, x, y float64) Fragment {
	return Fragment{Text: text, X: x, Y: y, W: float64(len(text)) * 5, FontSize: 10}
}

func TestGroupLines(t *testing.T) {
	frags := []Fragment{
		frag("venda", 60, 700.4), // same baseline as the next two, with jitter
		frag("de", 44, 700),
		frag("Contrato", 0, 699.8),
		frag("Unidade 64", 0, 680),
	}

	lines := groupLines(frags)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if got := lines[0].text(); got != "Contrato de venda" {
		t.Errorf("first line = %q (fragments must be ordered left to right)", got)
	}
	if got := lines[1].text(); got != "Unidade 64" {
		t.Errorf("second line = %q", got)
	}
}

func TestAssembleLineSpans(t *testing.T) {
	// "Unidade" and "64" are a word gap apart; "R$ 100.000" starts a
	// column-sized gap away.
	frags := []Fragment{
		frag("Unidade", 0, 500),
		frag("64", 40, 500),
		frag("R$ 100.000", 200, 500),
	}

	l := assembleLine(frags)
	if len(l.spans) != 2 {
		t.Fatalf("got %d spans, want 2: %+v", len(l.spans), l.spans)
	}
	if l.spans[0].text != "Unidade 64" {
		t.Errorf("span 0 = %q", l.spans[0].text)
	}
	if l.spans[1].text != "R$ 100.000" {
		t.Errorf("span 1 = %q", l.spans[1].text)
	}
	if l.left != 0 {
		t.Errorf("left = %g", l.left)
	}
}

func TestDetectTablesAlignedColumns(t *testing.T) {
	mkLine := func(y float64, cells ...string) line {
		frags := make([]Fragment, len(cells))
		for i, c := range cells {
			frags[i] = frag(c, float64(i)*150, y)
		}
		return assembleLine(frags)
	}

	lines := []line{
		mkLine(700, "Unidade", "Valor", "Assinatura"),
		mkLine(680, "64", "100000", "2024-01-10"),
		mkLine(660, "65", "120000", "2024-02-12"),
		mkLine(630, "Paragrafo final sem colunas"),
	}

	tables, prose := detectTables(lines)
	if len(tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(tables))
	}
	if len(prose) != 1 {
		t.Fatalf("got %d prose lines, want 1", len(prose))
	}

	cells := tables[0].table.Cells
	if len(cells) != 3 || len(cells[0]) != 3 {
		t.Fatalf("cells shape = %dx%d, want 3x3", len(cells), len(cells[0]))
	}
	if cells[1][0] != "64" || cells[2][1] != "120000" {
		t.Errorf("cells = %v", cells)
	}

	bb := tables[0].bbox()
	if bb.T <= bb.B || bb.R <= bb.L {
		t.Errorf("table bbox %+v is not a proper bottom-left-origin box", bb)
	}
}

func TestDetectTablesRejectsMisaligned(t *testing.T) {
	mk := func(y float64, xs []float64, texts []string) line {
		frags := make([]Fragment, len(texts))
		for i := range texts {
			frags[i] = frag(texts[i], xs[i], y)
		}
		return assembleLine(frags)
	}

	// two multi-span lines with drifting starts: not a table
	lines := []line{
		mk(700, []float64{0, 120}, []string{"compra", "venda"}),
		mk(680, []float64{45, 250}, []string{"posse", "escritura"}),
	}

	tables, prose := detectTables(lines)
	if len(tables) != 0 {
		t.Fatalf("misaligned columns detected as table: %+v", tables)
	}
	if len(prose) != 2 {
		t.Errorf("got %d prose lines, want 2", len(prose))
	}
}

func TestGroupBlocks(t *testing.T) {
	var lines []line
	for _, y := range []float64{700, 688, 676, 600, 588} {
		lines = append(lines, assembleLine([]Fragment{frag("linha", 0, y)}))
	}

	blocks := groupBlocks(lines)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if len(blocks[0].lines) != 3 || len(blocks[1].lines) != 2 {
		t.Errorf("block sizes = %d and %d, want 3 and 2", len(blocks[0].lines), len(blocks[1].lines))
	}

	text := blocks[0].text()
	if strings.Count(text, "\n") != 2 {
		t.Errorf("block text = %q, want three joined lines", text)
	}
}

func TestTableMarkdown(t *testing.T) {
	tb := Table{Cells: [][]string{
		{"Unidade", "Valor"},
		{"64", "R$ 100.000,00"},
		{"65", "linha\ncom | pipe"},
	}}

	got := tb.Markdown()
	want := "| Unidade | Valor |\n|---|---|\n| 64 | R$ 100.000,00 |\n| 65 | linha com \\| pipe |"
	if got != want {
		t.Errorf("markdown =\n%s\nwant\n%s", got, want)
	}
}

func TestTableMarkdownRaggedRows(t *testing.T) {
	tb := Table{Cells: [][]string{
		{"a", "b", "c"},
		{"1"},
	}}

	got := tb.Markdown()
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), got)
	}
	if strings.Count(lines[2], "|") != 4 {
		t.Errorf("short row not padded to column count: %q", lines[2])
	}
}

func TestFileHashHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.pdf")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := fileHashHex(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("hash = %s, want %s", got, want)
	}
}
