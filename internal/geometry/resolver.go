package geometry

import "fmt"

// DefaultPadding is the context margin applied around a cited box, in
// native page units.
const DefaultPadding = 10.0

// Region is a padded, clamped crop rectangle in native page units with a
// top-left origin. The renderer scales it to pixels.
type Region struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

func (r Region) Width() float64 {
	return r.Right - r.Left
}

func (r Region) Height() float64 {
	return r.Bottom - r.Top
}

// Resolver converts citation bounding boxes into render-ready regions.
type Resolver struct {
	Padding float64
}

func NewResolver(padding float64) *Resolver {
	if padding < 0 {
		padding = 0
	}
	return &Resolver{Padding: padding}
}

// Resolve normalizes the raw bbox, flips it from bottom-left to top-left
// origin, pads it on all four sides, and clamps it to the page. Errors
// are *Failure values of kind MalformedGeometry or DegenerateRegion.
func (rs *Resolver) Resolve(raw RawBBox, pageWidth, pageHeight float64) (Region, error) {
	box, err := raw.Normalize()
	if err != nil {
		return Region{}, &Failure{Kind: MalformedGeometry, Err: err}
	}
	if pageWidth <= 0 || pageHeight <= 0 {
		return Region{}, &Failure{
			Kind: MalformedGeometry,
			Err:  fmt.Errorf("page size %gx%g", pageWidth, pageHeight),
		}
	}

	// T and B are measured up from the page bottom; the render target
	// measures down from the top.
	reg := Region{
		Left:   box.L - rs.Padding,
		Top:    (pageHeight - box.T) - rs.Padding,
		Right:  box.R + rs.Padding,
		Bottom: (pageHeight - box.B) + rs.Padding,
	}

	if reg.Left < 0 {
		reg.Left = 0
	}
	if reg.Top < 0 {
		reg.Top = 0
	}
	if reg.Right > pageWidth {
		reg.Right = pageWidth
	}
	if reg.Bottom > pageHeight {
		reg.Bottom = pageHeight
	}

	if reg.Right <= reg.Left || reg.Bottom <= reg.Top {
		return Region{}, &Failure{
			Kind: DegenerateRegion,
			Err:  fmt.Errorf("region collapsed to %gx%g", reg.Width(), reg.Height()),
		}
	}
	return reg, nil
}
