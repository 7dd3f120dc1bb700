package export

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// MarkdownReport renders the run as a GFM document: a units table, the
// manifest keys each unit contributed, and a failures section.
func (s *Service) MarkdownReport(sum Summary) []byte {
	start := time.Now()
	var b strings.Builder

	fmt.Fprintf(&b, "# Extraction report: %s\n\n", path.Base(sum.SourcePath))
	fmt.Fprintf(&b, "Run `%s` extracted %d unit(s) with %d cutout artifact(s) in %s.\n\n",
		sum.RunID, len(sum.Units), sum.ArtifactCount(), sum.Elapsed.Round(time.Millisecond))
	if low := sum.lowConfidenceFields(); low > 0 {
		fmt.Fprintf(&b, "%d field value(s) carry less than high confidence and deserve review.\n\n", low)
	}

	b.WriteString("## Units\n\n")
	if len(sum.Units) == 0 {
		b.WriteString("No units were extracted.\n\n")
	} else {
		b.WriteString("| Unit | Field | Value | Confidence | Source |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for i, u := range sum.Units {
			label := unitLabel(u, i)
			for _, field := range orderedFields(u.Fields) {
				fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
					mdCell(label),
					mdCell(field),
					mdCell(formatValue(u.Fields[field])),
					mdCell(string(u.Confidence[field])),
					mdCell(sourceBase(sourceFor(u, field))),
				)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("## Failures\n\n")
	if len(sum.Failures) == 0 {
		b.WriteString("None.\n")
	} else {
		b.WriteString("| Kind | Key | Chunk | Page |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, f := range sum.Failures {
			fmt.Fprintf(&b, "| %s | %s | %s | %d |\n",
				mdCell(string(f.Kind)), mdCell(f.Key), mdCell(f.ChunkID), f.Page)
		}
	}

	out := []byte(b.String())
	s.logger.Info("export.markdown.ok",
		"run_id", sum.RunID,
		"bytes", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// HTMLReport is the markdown report converted through goldmark with the
// GFM extension, so the tables survive.
func (s *Service) HTMLReport(sum Summary) ([]byte, error) {
	start := time.Now()

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert(s.MarkdownReport(sum), &buf); err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}

	s.logger.Info("export.html.ok",
		"run_id", sum.RunID,
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// mdCell keeps cell text from breaking the table.
func mdCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// sourceBase shortens artifact URIs to their file name; raw chunk ids
// pass through.
func sourceBase(src string) string {
	if strings.Contains(src, "://") {
		return path.Base(src)
	}
	return src
}
