package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/guirra-byte/contracts-extractor/internal/geometry"
)

// DocHandle owns the rasterization state for one document run: the temp
// directory pdftoppm writes into and the per-page raster cache. It must
// be Closed when the run finishes, on failure paths included; the cutout
// stage holds it for the whole citation loop.
type DocHandle struct {
	r     *Renderer
	path  string
	pages int
	tmp   string

	mu      sync.Mutex
	rasters map[int]*rasterEntry
}

type rasterEntry struct {
	once sync.Once
	img  image.Image
	err  error
}

// Open acquires a rendering handle for one document. pageCount bounds the
// page indices citations may reference.
func (r *Renderer) Open(path string, pageCount int) (*DocHandle, error) {
	tmp, err := os.MkdirTemp("", "cutout-*")
	if err != nil {
		return nil, fmt.Errorf("create raster dir: %w", err)
	}
	return &DocHandle{
		r:       r,
		path:    path,
		pages:   pageCount,
		tmp:     tmp,
		rasters: make(map[int]*rasterEntry),
	}, nil
}

// Close releases the raster cache and temp directory. Close is
// idempotent; the handle is unusable afterwards.
func (h *DocHandle) Close() error {
	h.mu.Lock()
	h.rasters = nil
	h.mu.Unlock()
	if h.tmp == "" {
		return nil
	}
	tmp := h.tmp
	h.tmp = ""
	return os.RemoveAll(tmp)
}

// RenderPNG crops the cited region from the page raster and encodes it as
// PNG. The region arrives in native page units; the handle's scale factor
// is applied uniformly to the raster and the crop rectangle. Errors are
// *geometry.Failure values of kind PageOutOfRange or RenderFailure.
func (h *DocHandle) RenderPNG(ctx context.Context, page int, reg geometry.Region) ([]byte, error) {
	img, err := h.Render(ctx, page, reg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, &geometry.Failure{Kind: geometry.RenderFailure, Page: page, Err: fmt.Errorf("encode png: %w", err)}
	}
	return buf.Bytes(), nil
}

// Render returns the cropped region as an image, applying the cutout edge
// cap when configured.
func (h *DocHandle) Render(ctx context.Context, page int, reg geometry.Region) (image.Image, error) {
	if page < 1 || page > h.pages {
		return nil, &geometry.Failure{
			Kind: geometry.PageOutOfRange,
			Page: page,
			Err:  fmt.Errorf("page %d of %d", page, h.pages),
		}
	}

	raster, err := h.raster(ctx, page)
	if err != nil {
		return nil, &geometry.Failure{Kind: geometry.RenderFailure, Page: page, Err: err}
	}

	crop, err := cropRaster(raster, reg, h.r.cfg.Scale)
	if err != nil {
		return nil, &geometry.Failure{Kind: geometry.RenderFailure, Page: page, Err: err}
	}
	return capCutout(crop, h.r.cfg.MaxCutoutEdge), nil
}

// raster renders one page at most once per handle. Concurrent citations
// against the same page block on the entry's once instead of re-running
// pdftoppm.
func (h *DocHandle) raster(ctx context.Context, page int) (image.Image, error) {
	h.mu.Lock()
	if h.rasters == nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("handle closed")
	}
	e, ok := h.rasters[page]
	if !ok {
		e = &rasterEntry{}
		h.rasters[page] = e
	}
	h.mu.Unlock()

	e.once.Do(func() {
		e.img, e.err = h.renderPage(ctx, page)
	})
	return e.img, e.err
}

func (h *DocHandle) renderPage(ctx context.Context, page int) (image.Image, error) {
	dpi := int(math.Round(72 * h.r.cfg.Scale))
	prefix := filepath.Join(h.tmp, fmt.Sprintf("p%d", page))

	// pdftoppm -r <dpi> -f <p> -l <p> -png <in.pdf> <prefix>
	_, errb, err := h.r.runner.Run(ctx, h.r.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", dpi),
		"-f", fmt.Sprintf("%d", page),
		"-l", fmt.Sprintf("%d", page),
		"-png", h.path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, truncate(string(errb), 512))
	}

	// pdftoppm zero-pads the page suffix, so glob instead of guessing
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no image for page %d", page)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode page %d raster: %w", page, err)
	}
	return img, nil
}

func cropRaster(raster image.Image, reg geometry.Region, scale float64) (image.Image, error) {
	rect := image.Rect(
		roundPx(reg.Left*scale),
		roundPx(reg.Top*scale),
		roundPx(reg.Right*scale),
		roundPx(reg.Bottom*scale),
	)
	rect = rect.Intersect(raster.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("crop %v falls outside raster %v", rect, raster.Bounds())
	}

	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if si, ok := raster.(subImager); ok {
		return si.SubImage(rect), nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), raster, rect.Min, draw.Src)
	return dst, nil
}

// capCutout downscales oversized cutouts so whole-table citations do not
// produce multi-megabyte artifacts. Aspect ratio is preserved.
func capCutout(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, hgt := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && hgt <= maxEdge) {
		return img
	}

	ratio := float64(maxEdge) / float64(max(w, hgt))
	dst := image.NewRGBA(image.Rect(0, 0, roundPx(float64(w)*ratio), roundPx(float64(hgt)*ratio)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

func roundPx(v float64) int {
	return int(math.Round(v))
}
