// Package render rasterizes contract pages and crops cited regions into
// PNG cutout artifacts. Pages are rendered through pdftoppm at a scale
// factor over the native resolution and cached per run, so many citations
// against one page cost a single rasterization.
package render

import (
	"fmt"
	"log/slog"
	"strings"
)

type Config struct {
	Pdftoppm      string  // binary name or absolute path; if empty -> "pdftoppm"
	Scale         float64 // raster scale over native resolution, default 2.0
	MaxCutoutEdge int     // cap on a cutout's longest edge in pixels; 0 = no cap
}

// Renderer holds the run-independent rendering configuration. Per-document
// state lives in DocHandle.
type Renderer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewRenderer(cfg Config, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 2.0
	}
	return &Renderer{cfg: cfg, runner: execRunner{}, logger: logger}
}

// NewRendererWithRunner is NewRenderer with the command runner swapped out,
// so callers can rasterize without a pdftoppm binary on PATH.
func NewRendererWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Renderer {
	r := NewRenderer(cfg, logger)
	if runner != nil {
		r.runner = runner
	}
	return r
}

// Scale reports the configured raster scale factor.
func (r *Renderer) Scale() float64 {
	return r.cfg.Scale
}

// ArtifactName is the deterministic cutout filename for one citation:
// unit{ordinal+1}_{field}_{chunkID}_page{page}.png. The same inputs always
// reproduce the same name, so re-runs overwrite in place instead of
// accumulating variants.
func ArtifactName(unitOrdinal int, field, chunkID string, page int) string {
	return fmt.Sprintf("unit%d_%s_%s_page%d.png", unitOrdinal+1, sanitizeToken(field), sanitizeToken(chunkID), page)
}

// sanitizeToken keeps file names portable: anything outside letters,
// digits, dash and underscore becomes an underscore.
func sanitizeToken(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
