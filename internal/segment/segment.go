// Package segment turns a contract PDF into the chunked document model:
// positioned text fragments are grouped into lines, lines into prose
// blocks and tables, and each surviving element becomes one located chunk.
package segment

import (
	"strings"
)

// Fragment is one positioned piece of page text in native user-space
// units, bottom-left origin. Y is the text baseline.
type Fragment struct {
	Text     string
	X        float64
	Y        float64
	W        float64
	FontSize float64
}

// Table holds detected tabular content as rows of cell text.
type Table struct {
	Cells [][]string
}

// Markdown renders the table as a GitHub-flavored markdown table. The
// first row is treated as the header. Newlines and pipes inside cells are
// flattened so the result stays one table.
func (t *Table) Markdown() string {
	if len(t.Cells) == 0 {
		return ""
	}

	cols := 0
	for _, row := range t.Cells {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return ""
	}

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = cleanCell(row[i])
			}
			sb.WriteString(" ")
			sb.WriteString(cell)
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(t.Cells[0])
	sb.WriteString("|")
	for i := 0; i < cols; i++ {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
	for _, row := range t.Cells[1:] {
		writeRow(row)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func cleanCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.TrimSpace(s)
}
