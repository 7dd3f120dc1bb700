package segment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	pdflib "github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/document"
	"github.com/guirra-byte/contracts-extractor/internal/geometry"
)

// Fallback page size when a media box is absent (A4 portrait, points).
const (
	defaultPageWidth  = 595.28
	defaultPageHeight = 841.89
)

type Segmenter struct {
	logger *slog.Logger
}

func NewSegmenter(logger *slog.Logger) *Segmenter {
	return &Segmenter{logger: logger}
}

// Segment chunks one contract PDF. Failure to open the document is fatal
// to the run; a malformed individual page is logged and skipped, keeping
// its size on record so later citations against it still resolve.
func (s *Segmenter) Segment(ctx context.Context, path string) (*document.Document, error) {
	start := time.Now()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	hash, err := fileHashHex(path)
	if err != nil {
		return nil, fmt.Errorf("hash document: %w", err)
	}

	b := document.NewBuilder(path)
	b.SetContentHash(hash)

	type pageLayout struct {
		page   int
		tables []tableRun
		blocks []block
	}

	numPages := reader.NumPage()
	layouts := make([]pageLayout, 0, numPages)

	for pageNo := 1; pageNo <= numPages; pageNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNo)
		if page.V.IsNull() {
			b.AddPage(defaultPageWidth, defaultPageHeight)
			continue
		}
		w, h := mediaBoxSize(page)
		b.AddPage(w, h)

		frags, err := pageFragments(page)
		if err != nil {
			s.logger.Warn("segment.page_skip",
				slog.Int("page", pageNo),
				slog.String("error", err.Error()))
			continue
		}

		lines := groupLines(frags)
		tables, prose := detectTables(lines)
		layouts = append(layouts, pageLayout{
			page:   pageNo,
			tables: tables,
			blocks: groupBlocks(prose),
		})
	}

	// Tables across the whole document are emitted before prose, and
	// chunk ids follow this emission order.
	for _, pl := range layouts {
		for _, tr := range pl.tables {
			b.Add(constants.ElementTable, pl.page, geometry.NewRawBBox(tr.bbox()), tr.table.Markdown())
		}
	}
	for _, pl := range layouts {
		for _, blk := range pl.blocks {
			b.Add(constants.ElementText, pl.page, geometry.NewRawBBox(blk.bbox()), blk.text())
		}
	}

	doc := b.Build()
	s.logger.Info("segment.done",
		slog.String("source", filepath.Base(path)),
		slog.Int("pages", doc.PageCount()),
		slog.Int("chunks", len(doc.Chunks)),
		slog.Duration("duration", time.Since(start)))
	return doc, nil
}

// pageFragments reads one page's positioned text. The reader panics on
// malformed content streams, so the panic is converted to an error here
// and the page degrades to empty.
func pageFragments(page pdflib.Page) (frags []Fragment, err error) {
	defer func() {
		if r := recover(); r != nil {
			frags = nil
			err = fmt.Errorf("content stream: %v", r)
		}
	}()

	content := page.Content()
	frags = make([]Fragment, 0, len(content.Text))
	for _, t := range content.Text {
		s := norm.NFC.String(t.S)
		if strings.TrimSpace(s) == "" {
			continue
		}
		frags = append(frags, Fragment{
			Text:     s,
			X:        t.X,
			Y:        t.Y,
			W:        t.W,
			FontSize: t.FontSize,
		})
	}
	return frags, nil
}

// mediaBoxSize reads the page's media box, walking up the page tree for
// inherited values.
func mediaBoxSize(page pdflib.Page) (w, h float64) {
	v := page.V
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		mb := v.Key("MediaBox")
		if !mb.IsNull() && mb.Len() == 4 {
			llx, lly := mb.Index(0).Float64(), mb.Index(1).Float64()
			urx, ury := mb.Index(2).Float64(), mb.Index(3).Float64()
			if urx > llx && ury > lly {
				return urx - llx, ury - lly
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageWidth, defaultPageHeight
}

func fileHashHex(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
