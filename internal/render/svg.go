package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// SVGSurface implements Surface on an SVG document. Each FillPath or
// StrokePath call emits one <path> element from the accumulated path
// data. Call End to close the document.
type SVGSurface struct {
	canvas *svg.SVG
	path   strings.Builder
}

// NewSVGSurface starts an SVG document of the given pixel size on w.
func NewSVGSurface(w io.Writer, width, height int) *SVGSurface {
	canvas := svg.New(w)
	canvas.Start(width, height)
	return &SVGSurface{canvas: canvas}
}

func (s *SVGSurface) MoveTo(x, y float64) {
	fmt.Fprintf(&s.path, "M%.2f %.2f ", x, y)
}

func (s *SVGSurface) LineTo(x, y float64) {
	fmt.Fprintf(&s.path, "L%.2f %.2f ", x, y)
}

func (s *SVGSurface) ClosePath() {
	s.path.WriteString("Z")
}

func (s *SVGSurface) FillPath(c Color, alpha float64) {
	style := fmt.Sprintf("fill:%s;fill-opacity:%.2f;stroke:none", c.Hex(), alpha)
	s.canvas.Path(s.takePath(), style)
}

func (s *SVGSurface) StrokePath(c Color, width float64, dash []float64) {
	style := fmt.Sprintf("fill:none;stroke:%s;stroke-width:%.2f", c.Hex(), width)
	if len(dash) > 0 {
		style += ";stroke-dasharray:" + joinFloats(dash)
	}
	s.canvas.Path(s.takePath(), style)
}

func (s *SVGSurface) FillText(text string, x, y float64, c Color) {
	style := fmt.Sprintf("fill:%s;font-family:sans-serif;font-size:13px;text-anchor:middle", c.Hex())
	s.canvas.Text(int(math.Round(x)), int(math.Round(y)), text, style)
}

// End closes the SVG document. The surface must not be drawn to after.
func (s *SVGSurface) End() {
	s.canvas.End()
}

func (s *SVGSurface) takePath() string {
	d := strings.TrimSpace(s.path.String())
	s.path.Reset()
	return d
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	}
	return strings.Join(parts, ",")
}
