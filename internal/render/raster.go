package render

import (
	"image"
	"io"

	"github.com/fogleman/gg"
)

// RasterSurface implements Surface on an in-memory RGBA image via gg,
// for PNG export. The canvas starts white.
type RasterSurface struct {
	ctx *gg.Context
}

// NewRasterSurface allocates a width x height canvas.
func NewRasterSurface(width, height int) *RasterSurface {
	ctx := gg.NewContext(width, height)
	ctx.SetRGB(1, 1, 1)
	ctx.Clear()
	return &RasterSurface{ctx: ctx}
}

func (s *RasterSurface) MoveTo(x, y float64) {
	s.ctx.MoveTo(x, y)
}

func (s *RasterSurface) LineTo(x, y float64) {
	s.ctx.LineTo(x, y)
}

func (s *RasterSurface) ClosePath() {
	s.ctx.ClosePath()
}

func (s *RasterSurface) FillPath(c Color, alpha float64) {
	s.ctx.SetRGBA255(int(c.R), int(c.G), int(c.B), int(alpha*255+0.5))
	s.ctx.Fill()
}

func (s *RasterSurface) StrokePath(c Color, width float64, dash []float64) {
	s.ctx.SetRGBA255(int(c.R), int(c.G), int(c.B), 255)
	s.ctx.SetLineWidth(width)
	if len(dash) > 0 {
		s.ctx.SetDash(dash...)
	}
	s.ctx.Stroke()
	s.ctx.SetDash()
}

func (s *RasterSurface) FillText(text string, x, y float64, c Color) {
	s.ctx.SetRGB255(int(c.R), int(c.G), int(c.B))
	s.ctx.DrawStringAnchored(text, x, y, 0.5, 0)
}

// Image exposes the backing image.
func (s *RasterSurface) Image() image.Image {
	return s.ctx.Image()
}

// EncodePNG writes the canvas as PNG.
func (s *RasterSurface) EncodePNG(w io.Writer) error {
	return s.ctx.EncodePNG(w)
}
