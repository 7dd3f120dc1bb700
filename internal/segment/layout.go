package segment

import (
	"math"
	"sort"
	"strings"

	"github.com/guirra-byte/contracts-extractor/internal/geometry"
)

const (
	minLineTolerance = 2.0
	minColumnGap     = 18.0
	columnAlignTol   = 6.0
	minBlockGap      = 14.0
)

// span is a horizontal run of text within a line, separated from its
// neighbors by a column-sized gap.
type span struct {
	text string
	x    float64
	w    float64
}

type line struct {
	spans    []span
	baseline float64
	fontSize float64
	left     float64
	right    float64
}

func (l line) text() string {
	parts := make([]string, len(l.spans))
	for i, sp := range l.spans {
		parts[i] = sp.text
	}
	return strings.Join(parts, " ")
}

// bbox is the line's extent in bottom-left-origin native units. The
// ascent approximation is coarse; resolver padding absorbs the slack.
func (l line) bbox() geometry.BBox {
	return geometry.BBox{L: l.left, T: l.baseline + l.fontSize, R: l.right, B: l.baseline}
}

// block is a group of consecutive lines forming one prose chunk.
type block struct {
	lines []line
}

func (b block) text() string {
	parts := make([]string, len(b.lines))
	for i, l := range b.lines {
		parts[i] = l.text()
	}
	return strings.Join(parts, "\n")
}

func (b block) bbox() geometry.BBox {
	return unionBBoxes(b.lines)
}

// tableRun is a group of consecutive columnar lines detected as one table.
type tableRun struct {
	table Table
	lines []line
}

func (t tableRun) bbox() geometry.BBox {
	return unionBBoxes(t.lines)
}

func unionBBoxes(lines []line) geometry.BBox {
	if len(lines) == 0 {
		return geometry.BBox{}
	}
	u := lines[0].bbox()
	for _, l := range lines[1:] {
		bb := l.bbox()
		u.L = math.Min(u.L, bb.L)
		u.B = math.Min(u.B, bb.B)
		u.R = math.Max(u.R, bb.R)
		u.T = math.Max(u.T, bb.T)
	}
	return u
}

// groupLines clusters positioned fragments into visual lines: sort by
// baseline top-down, group within a tolerance derived from font height,
// then assemble each line left to right into gap-separated spans.
func groupLines(frags []Fragment) []line {
	if len(frags) == 0 {
		return nil
	}

	tol := lineTolerance(frags)
	sorted := make([]Fragment, len(frags))
	copy(sorted, frags)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > tol {
			return sorted[i].Y > sorted[j].Y
		}
		return false
	})

	var lines []line
	var current []Fragment
	for _, f := range sorted {
		if len(current) == 0 {
			current = []Fragment{f}
			continue
		}
		if math.Abs(f.Y-averageY(current)) <= tol {
			current = append(current, f)
		} else {
			lines = append(lines, assembleLine(current))
			current = []Fragment{f}
		}
	}
	if len(current) > 0 {
		lines = append(lines, assembleLine(current))
	}
	return lines
}

func lineTolerance(frags []Fragment) float64 {
	total := 0.0
	for _, f := range frags {
		total += f.FontSize
	}
	tol := (total / float64(len(frags))) * 0.5
	if tol < minLineTolerance {
		tol = minLineTolerance
	}
	return tol
}

func averageY(frags []Fragment) float64 {
	total := 0.0
	for _, f := range frags {
		total += f.Y
	}
	return total / float64(len(frags))
}

// assembleLine sorts a line's fragments left to right and merges them
// into spans. Small gaps become spaces; gaps of column width start a new
// span so table detection can see cell boundaries.
func assembleLine(frags []Fragment) line {
	sort.SliceStable(frags, func(i, j int) bool {
		return frags[i].X < frags[j].X
	})

	avgFont := 0.0
	for _, f := range frags {
		avgFont += f.FontSize
	}
	avgFont /= float64(len(frags))
	spaceGap := math.Max(avgFont*0.3, 1.0)
	columnGap := math.Max(avgFont*3, minColumnGap)

	l := line{
		baseline: averageY(frags),
		fontSize: avgFont,
		left:     frags[0].X,
	}

	var sb strings.Builder
	spanStart := frags[0].X
	cursor := frags[0].X
	flush := func(end float64) {
		if sb.Len() == 0 {
			return
		}
		l.spans = append(l.spans, span{text: sb.String(), x: spanStart, w: end - spanStart})
		sb.Reset()
	}

	for i, f := range frags {
		if i > 0 {
			gap := f.X - cursor
			switch {
			case gap > columnGap:
				flush(cursor)
				spanStart = f.X
			case gap > spaceGap:
				sb.WriteString(" ")
			}
		}
		sb.WriteString(f.Text)
		end := f.X + f.W
		if end > cursor {
			cursor = end
		}
	}
	flush(cursor)

	l.right = cursor
	return l
}

// detectTables finds runs of two or more consecutive multi-span lines
// whose span starts align on shared column positions, and converts each
// run into a table. Lines that are not part of a run are returned for
// prose block grouping, in their original order.
func detectTables(lines []line) ([]tableRun, []line) {
	var tables []tableRun
	var prose []line

	i := 0
	for i < len(lines) {
		if len(lines[i].spans) < 2 {
			prose = append(prose, lines[i])
			i++
			continue
		}

		j := i + 1
		for j < len(lines) && len(lines[j].spans) >= 2 {
			j++
		}

		run := lines[i:j]
		if len(run) >= 2 {
			if cols := alignColumns(run); len(cols) >= 2 {
				tables = append(tables, buildTable(run, cols))
				i = j
				continue
			}
		}
		prose = append(prose, run...)
		i = j
	}
	return tables, prose
}

// alignColumns clusters span start positions across a run of lines. A
// cluster only counts as a column when it repeats on at least two lines,
// and the run only qualifies as a table when most spans land on a column.
func alignColumns(run []line) []float64 {
	type colStart struct {
		x    float64
		line int
	}
	var starts []colStart
	for li, l := range run {
		for _, sp := range l.spans {
			starts = append(starts, colStart{x: sp.x, line: li})
		}
	}
	sort.Slice(starts, func(i, j int) bool {
		return starts[i].x < starts[j].x
	})

	var cols []float64
	clusterFrom := 0
	for i := 1; i <= len(starts); i++ {
		if i < len(starts) && starts[i].x-starts[i-1].x <= columnAlignTol {
			continue
		}
		cluster := starts[clusterFrom:i]
		clusterFrom = i

		seen := make(map[int]struct{}, len(cluster))
		sum := 0.0
		for _, cs := range cluster {
			seen[cs.line] = struct{}{}
			sum += cs.x
		}
		if len(seen) >= 2 {
			cols = append(cols, sum/float64(len(cluster)))
		}
	}
	if len(cols) < 2 {
		return nil
	}

	aligned := 0
	for _, cs := range starts {
		if _, ok := nearestColumn(cols, cs.x); ok {
			aligned++
		}
	}
	if float64(aligned) < float64(len(starts))*0.8 {
		return nil
	}
	return cols
}

func nearestColumn(cols []float64, x float64) (int, bool) {
	best, bestDist := -1, math.MaxFloat64
	for i, c := range cols {
		if d := math.Abs(x - c); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 || bestDist > columnAlignTol {
		return 0, false
	}
	return best, true
}

func buildTable(run []line, cols []float64) tableRun {
	cells := make([][]string, len(run))
	for r, l := range run {
		row := make([]string, len(cols))
		for _, sp := range l.spans {
			c, ok := nearestColumn(cols, sp.x)
			if !ok {
				// off-grid span joins the closest cell anyway
				c, _ = nearestColumnUnbounded(cols, sp.x)
			}
			if row[c] == "" {
				row[c] = sp.text
			} else {
				row[c] += " " + sp.text
			}
		}
		cells[r] = row
	}
	return tableRun{table: Table{Cells: cells}, lines: run}
}

func nearestColumnUnbounded(cols []float64, x float64) (int, bool) {
	best, bestDist := 0, math.MaxFloat64
	for i, c := range cols {
		if d := math.Abs(x - c); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, true
}

// groupBlocks splits prose lines into paragraph blocks wherever the
// vertical advance between consecutive baselines exceeds the typical
// advance for the page.
func groupBlocks(lines []line) []block {
	if len(lines) == 0 {
		return nil
	}

	gapThreshold := blockGapThreshold(lines)
	var blocks []block
	current := block{lines: []line{lines[0]}}
	for _, l := range lines[1:] {
		prev := current.lines[len(current.lines)-1]
		advance := prev.baseline - l.baseline
		if advance > gapThreshold {
			blocks = append(blocks, current)
			current = block{lines: []line{l}}
		} else {
			current.lines = append(current.lines, l)
		}
	}
	blocks = append(blocks, current)
	return blocks
}

func blockGapThreshold(lines []line) float64 {
	var advances []float64
	for i := 1; i < len(lines); i++ {
		adv := lines[i-1].baseline - lines[i].baseline
		if adv > 0 {
			advances = append(advances, adv)
		}
	}
	if len(advances) == 0 {
		return minBlockGap
	}
	sort.Float64s(advances)
	median := advances[len(advances)/2]
	threshold := median * 1.8
	if threshold < minBlockGap {
		threshold = minBlockGap
	}
	return threshold
}
