// Package render draws cluster outlines onto a pluggable 2D surface and
// owns the per-frame pipeline that turns normalized relationship data
// plus externally computed node positions into painted blobs. Outline
// rendering sits beneath the host's node and edge layers; this package
// never draws nodes or edges itself.
package render

import "fmt"

// Color is an opaque RGB color.
type Color struct {
	R, G, B uint8
}

// Hex renders the color as a #rrggbb string.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Surface is the minimal immediate-mode contract the renderer draws
// through. A path is built with MoveTo/LineTo/ClosePath and consumed by
// the next FillPath or StrokePath call. FillText draws a single line
// horizontally centered on x with its baseline at y. Implementations own
// encoding, fonts, and join/cap details; they are not required to be
// safe for concurrent use.
type Surface interface {
	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()
	FillPath(c Color, alpha float64)
	StrokePath(c Color, width float64, dash []float64)
	FillText(text string, x, y float64, c Color)
}

func mustHex(s string) Color {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		panic(fmt.Sprintf("bad palette hex %q: %v", s, err))
	}
	return Color{R: r, G: g, B: b}
}
