package document

import (
	"fmt"
	"strings"

	"github.com/guirra-byte/contracts-extractor/constants"
	"github.com/guirra-byte/contracts-extractor/internal/geometry"
)

// Builder assembles a Document, assigning chunk ids as a zero-padded
// counter in admission order. Skipped elements never reserve an ordinal,
// so the emitted id sequence stays dense.
type Builder struct {
	doc  Document
	next int
}

func NewBuilder(sourcePath string) *Builder {
	return &Builder{doc: Document{SourcePath: sourcePath}}
}

func (b *Builder) SetContentHash(hash string) {
	b.doc.ContentHash = hash
}

// AddPage records a page's native size. Pages must be added in order;
// the count established here bounds citation page references.
func (b *Builder) AddPage(width, height float64) {
	b.doc.Pages = append(b.doc.Pages, PageInfo{Width: width, Height: height})
}

// Add admits one segmented element as a chunk. Elements with empty or
// whitespace-only text are skipped. Text elements additionally need a
// page and a bbox; tables are kept without location because their
// markdown still feeds field extraction, and citations against them
// degrade at resolve time instead.
func (b *Builder) Add(typ constants.ElementType, page int, box geometry.RawBBox, text string) (Chunk, bool) {
	if strings.TrimSpace(text) == "" {
		return Chunk{}, false
	}
	if typ != constants.ElementTable && (page < 1 || !box.Present()) {
		return Chunk{}, false
	}

	c := Chunk{
		ID:   fmt.Sprintf("chunk_%03d", b.next),
		Text: text,
		Page: page,
		BBox: box,
		Type: typ,
	}
	b.next++
	b.doc.Chunks = append(b.doc.Chunks, c)
	return c, true
}

// Build finalizes the document and its citation index. The builder must
// not be reused afterwards.
func (b *Builder) Build() *Document {
	d := b.doc
	d.indexChunks()
	return &d
}
