package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/inkwise/storyweb/internal/geom"
)

func TestSVGSurfaceOutput(t *testing.T) {
	var buf bytes.Buffer
	surface := NewSVGSurface(&buf, 400, 300)

	ring := []geom.Point{{X: 10, Y: 10}, {X: 110, Y: 10}, {X: 60, Y: 90}}
	DrawOutline(surface, ring, OutlineColor(0), "Círculo de María")
	surface.End()

	out := buf.String()
	for _, want := range []string{
		"<svg",
		`d="M10.00 10.00 L110.00 10.00 L60.00 90.00 Z"`,
		"fill:#8b5cf6;fill-opacity:0.15;stroke:none",
		"fill:none;stroke:#8b5cf6;stroke-width:2.00",
		"stroke-dasharray:6,4",
		"text-anchor:middle",
		"Círculo de María",
		"</svg>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("SVG output missing %q:\n%s", want, out)
		}
	}
}

func TestSVGSurfaceByteStableAcrossRenders(t *testing.T) {
	renderOnce := func() string {
		var buf bytes.Buffer
		surface := NewSVGSurface(&buf, 640, 480)
		p := NewPipeline(Options{}, nil)
		p.Render(surface, triangleFrame())
		surface.End()
		return buf.String()
	}

	first := renderOnce()
	second := renderOnce()
	if first != second {
		t.Fatal("same frame produced different SVG bytes")
	}
	if !strings.Contains(first, "<path") {
		t.Fatal("expected at least one path element")
	}
}
