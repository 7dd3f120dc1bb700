// Package export renders a finished extraction run into human-facing
// outputs: an XLSX workbook, a markdown report, and its HTML rendering.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/geometry"
	"github.com/guirra-byte/contracts-extractor/internal/provenance"
	"github.com/guirra-byte/contracts-extractor/internal/reconcile"
)

// Summary is the slice of a completed run that reports are built from.
type Summary struct {
	RunID      string
	SourcePath string
	Units      []reconcile.FinalUnit
	Manifest   provenance.Manifest
	Failures   []*geometry.Failure
	Elapsed    time.Duration
}

// ArtifactCount is the number of cutouts across all manifest keys.
func (s Summary) ArtifactCount() int {
	n := 0
	for _, uris := range s.Manifest {
		n += len(uris)
	}
	return n
}

// lowConfidenceFields counts field values graded below high, for the
// report's review hint.
func (s Summary) lowConfidenceFields() int {
	n := 0
	for _, u := range s.Units {
		for _, c := range u.Confidence {
			if c.Rank() > 0 && c.Rank() < constants.ConfidenceHigh.Rank() {
				n++
			}
		}
	}
	return n
}

// Service produces report bytes for completed runs.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// fieldOrder fixes report row order: contract fields first, anything else
// alphabetically after them.
var fieldOrder = map[string]int{
	"unitCode":         0,
	"sellValue":        1,
	"buyerName":        2,
	"areaM2":           3,
	"pricePerM2":       4,
	"signingDate":      5,
	"installmentPlans": 6,
}

func orderedFields(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := fieldOrder[names[i]]
		oj, jok := fieldOrder[names[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok:
			return true
		case jok:
			return false
		default:
			return names[i] < names[j]
		}
	})
	return names
}

// formatValue flattens a field value for a report cell. Nested values
// (installment plans) render as compact JSON.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// unitLabel names a unit by its declared code, falling back to its
// 1-based position.
func unitLabel(u reconcile.FinalUnit, ordinal int) string {
	if code, ok := u.Fields["unitCode"].(string); ok && code != "" {
		return code
	}
	return fmt.Sprintf("unit%d", ordinal+1)
}

// sourceFor is the rendered source cell for one field: the artifact URI
// when the citation resolved, the raw chunk id when it did not, empty for
// synthetic or uncited fields.
func sourceFor(u reconcile.FinalUnit, field string) string {
	for _, src := range u.Sources {
		if src.Field != field {
			continue
		}
		if src.ChunkFileKey == nil {
			return ""
		}
		return *src.ChunkFileKey
	}
	return ""
}

// WorkbookXLSX builds a two-sheet workbook: "Units" with one row per
// extracted field, "Summary" with run totals.
func (s *Service) WorkbookXLSX(sum Summary) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const unitsSheet = "Units"
	const summarySheet = "Summary"
	for _, sheet := range []string{unitsSheet, summarySheet} {
		if index, _ := f.GetSheetIndex(sheet); index == -1 {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(unitsSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"Unit", "Field", "Value", "Confidence", "Source"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(unitsSheet, cell, h)
	}

	row := 2
	for i, u := range sum.Units {
		label := unitLabel(u, i)
		for _, field := range orderedFields(u.Fields) {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(unitsSheet, cell, v)
			}
			write(1, label)
			write(2, field)
			write(3, formatValue(u.Fields[field]))
			write(4, string(u.Confidence[field]))
			write(5, sourceFor(u, field))
			row++
		}
	}

	_ = f.SetColWidth(unitsSheet, "A", "A", 10) // unit
	_ = f.SetColWidth(unitsSheet, "B", "B", 20) // field
	_ = f.SetColWidth(unitsSheet, "C", "C", 48) // value
	_ = f.SetColWidth(unitsSheet, "D", "D", 12) // confidence
	_ = f.SetColWidth(unitsSheet, "E", "E", 64) // source

	summary := [][2]any{
		{"Run", sum.RunID},
		{"Source", sum.SourcePath},
		{"Units", len(sum.Units)},
		{"Artifacts", sum.ArtifactCount()},
		{"Failures", len(sum.Failures)},
		{"Elapsed", sum.Elapsed.Round(time.Millisecond).String()},
	}
	for i, kv := range summary {
		keyCell, _ := excelize.CoordinatesToCellName(1, i+1)
		valCell, _ := excelize.CoordinatesToCellName(2, i+1)
		_ = f.SetCellValue(summarySheet, keyCell, kv[0])
		_ = f.SetCellValue(summarySheet, valCell, kv[1])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 14)
	_ = f.SetColWidth(summarySheet, "B", "B", 64)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"run_id", sum.RunID,
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
