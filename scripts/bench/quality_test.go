// quality_test.go — Outline quality benchmark with golden shape cases.
// Run: go test ./scripts/bench/ -run TestOutlineQuality -v
//
// Uses frozen member layouts to measure containment, margin, and
// smoothness of the generated cluster outlines. Fails if quality drops
// below thresholds.
package main

import (
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/inkwise/storyweb/internal/geom"
	"github.com/inkwise/storyweb/internal/relation"
	"github.com/inkwise/storyweb/internal/render"
)

// GoldenShape defines a frozen member layout and its expectations.
type GoldenShape struct {
	Name         string
	Positions    map[int64]geom.Point
	Radii        map[int64]float64
	WantDrawable bool
	Description  string
}

// QualityResult stores outline metrics for a single shape.
type QualityResult struct {
	Shape       string  `json:"shape"`
	Members     int     `json:"members"`
	RingPoints  int     `json:"ring_points"`
	Containment float64 `json:"containment"`
	MinMarginPx float64 `json:"min_margin_px"`
	LatencyMs   float64 `json:"latency_ms"`
	Pass        bool    `json:"pass"`
}

func goldenShapes() []GoldenShape {
	rng := rand.New(rand.NewSource(7))

	pair := GoldenShape{
		Name:         "pair",
		Positions:    map[int64]geom.Point{1: {X: 400, Y: 500}, 2: {X: 600, Y: 500}},
		Radii:        map[int64]float64{1: 20, 2: 20},
		WantDrawable: true,
		Description:  "two nodes side by side",
	}

	trio := GoldenShape{
		Name:         "trio",
		Positions:    map[int64]geom.Point{1: {X: 400, Y: 300}, 2: {X: 700, Y: 350}, 3: {X: 550, Y: 600}},
		Radii:        map[int64]float64{1: 35, 2: 25, 3: 15},
		WantDrawable: true,
		Description:  "triangle with mixed radii",
	}

	collinear := GoldenShape{
		Name:         "collinear",
		Positions:    map[int64]geom.Point{},
		Radii:        map[int64]float64{},
		WantDrawable: true,
		Description:  "five nodes on a horizontal line",
	}
	for i := int64(1); i <= 5; i++ {
		collinear.Positions[i] = geom.Point{X: 200 + float64(i-1)*150, Y: 400}
		collinear.Radii[i] = 18
	}

	blob := GoldenShape{
		Name:         "blob",
		Positions:    map[int64]geom.Point{},
		Radii:        map[int64]float64{},
		WantDrawable: true,
		Description:  "eight overlapping nodes in a tight knot",
	}
	for i := int64(1); i <= 8; i++ {
		blob.Positions[i] = geom.Point{
			X: 800 + rng.Float64()*60,
			Y: 500 + rng.Float64()*60,
		}
		blob.Radii[i] = 22
	}

	ring := GoldenShape{
		Name:         "ring",
		Positions:    map[int64]geom.Point{},
		Radii:        map[int64]float64{},
		WantDrawable: true,
		Description:  "twelve nodes on a wide circle",
	}
	for i := int64(1); i <= 12; i++ {
		angle := 2 * math.Pi * float64(i-1) / 12
		ring.Positions[i] = geom.Point{
			X: 800 + 300*math.Cos(angle),
			Y: 500 + 300*math.Sin(angle),
		}
		ring.Radii[i] = 16
	}

	spread := GoldenShape{
		Name:         "spread",
		Positions:    map[int64]geom.Point{},
		Radii:        map[int64]float64{},
		WantDrawable: true,
		Description:  "twenty scattered nodes with varied radii",
	}
	for i := int64(1); i <= 20; i++ {
		spread.Positions[i] = geom.Point{
			X: 200 + rng.Float64()*1200,
			Y: 150 + rng.Float64()*700,
		}
		spread.Radii[i] = 10 + rng.Float64()*50
	}

	underpopulated := GoldenShape{
		Name:         "underpopulated",
		Positions:    map[int64]geom.Point{1: {X: 500, Y: 500}},
		Radii:        map[int64]float64{1: 30},
		WantDrawable: false,
		Description:  "a single positioned member never draws",
	}

	return []GoldenShape{pair, trio, collinear, blob, ring, spread, underpopulated}
}

func measureShape(t *testing.T, shape GoldenShape) QualityResult {
	t.Helper()

	members := make([]int64, 0, len(shape.Positions))
	for id := range shape.Positions {
		members = append(members, id)
	}
	c := relation.Cluster{ID: 1, Name: shape.Name, EntityIDs: members}

	p := render.NewPipeline(render.Options{}, nil)
	start := time.Now()
	outline, ok := p.Outline(c, shape.Positions, shape.Radii)
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	result := QualityResult{
		Shape:     shape.Name,
		Members:   len(members),
		LatencyMs: latency,
	}

	if !shape.WantDrawable {
		result.Pass = !ok
		if ok {
			t.Errorf("[%s] expected not drawable, got %d-point outline", shape.Name, len(outline))
		}
		return result
	}
	if !ok {
		t.Errorf("[%s] expected a drawable outline", shape.Name)
		return result
	}

	result.RingPoints = len(outline)
	result.Containment, result.MinMarginPx = containment(outline, shape.Positions, shape.Radii)
	result.Pass = result.Containment == 1.0 && result.MinMarginPx > 0 && result.RingPoints >= 30

	return result
}

// containment samples each member circle's perimeter and reports the
// fraction of samples inside the outline plus the smallest distance
// from any sample to the outline boundary.
func containment(outline []geom.Point, positions map[int64]geom.Point, radii map[int64]float64) (float64, float64) {
	const samplesPerNode = 24

	total, inside := 0, 0
	minMargin := math.MaxFloat64
	for id, pos := range positions {
		r := radii[id]
		for i := 0; i < samplesPerNode; i++ {
			angle := 2 * math.Pi * float64(i) / samplesPerNode
			pt := geom.Point{X: pos.X + r*math.Cos(angle), Y: pos.Y + r*math.Sin(angle)}
			total++
			if pointInPolygon(pt, outline) {
				inside++
				if d := distToBoundary(pt, outline); d < minMargin {
					minMargin = d
				}
			}
		}
	}
	if total == 0 {
		return 0, 0
	}
	if inside < total {
		minMargin = 0
	}
	return float64(inside) / float64(total), minMargin
}

func pointInPolygon(pt geom.Point, poly []geom.Point) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) &&
			pt.X < (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

func distToBoundary(pt geom.Point, poly []geom.Point) float64 {
	best := math.MaxFloat64
	n := len(poly)
	for i := 0; i < n; i++ {
		a, b := poly[i], poly[(i+1)%n]
		if d := distToSegment(pt, a, b); d < best {
			best = d
		}
	}
	return best
}

func distToSegment(pt, a, b geom.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return math.Hypot(pt.X-a.X, pt.Y-a.Y)
	}
	t := ((pt.X-a.X)*dx + (pt.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(pt.X-(a.X+t*dx), pt.Y-(a.Y+t*dy))
}

func TestOutlineQuality(t *testing.T) {
	shapes := goldenShapes()
	var results []QualityResult

	for _, shape := range shapes {
		t.Run(shape.Name, func(t *testing.T) {
			result := measureShape(t, shape)
			results = append(results, result)

			if shape.WantDrawable {
				t.Logf("[%s] %d members, %d ring points, containment %.3f, margin %.1fpx, %.3fms",
					shape.Name, result.Members, result.RingPoints,
					result.Containment, result.MinMarginPx, result.LatencyMs)

				if result.Containment < 1.0 {
					t.Errorf("[%s] containment %.3f: member circles poke through the outline", shape.Name, result.Containment)
				}
				if result.MinMarginPx <= 0 {
					t.Errorf("[%s] outline touches a member circle (margin %.2fpx)", shape.Name, result.MinMarginPx)
				}
				if result.RingPoints < 30 {
					t.Errorf("[%s] outline too coarse: %d points", shape.Name, result.RingPoints)
				}
				if result.LatencyMs > 25 {
					t.Errorf("[%s] outline too slow: %.1fms (target: <25ms)", shape.Name, result.LatencyMs)
				}
			}
		})
	}

	// Write report
	report := map[string]interface{}{
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"platform":     runtime.GOOS + "/" + runtime.GOARCH,
		"shapes":       results,
	}
	jsonBytes, _ := json.MarshalIndent(report, "", "  ")
	home, _ := os.UserHomeDir()
	outDir := filepath.Join(home, ".storyweb")
	os.MkdirAll(outDir, 0755)
	outPath := filepath.Join(outDir, "quality_results.json")
	os.WriteFile(outPath, jsonBytes, 0644)
	t.Logf("\nQuality report written to %s", outPath)
}
