// Package layout holds the host-side glue between an external layout
// engine and the outline pipeline: node size derivation, canvas fitting
// for captured coordinates, and a deterministic fallback placement for
// snapshots that never went through a live layout. There is no force
// simulation here; positions are produced elsewhere and only adapted.
package layout

import (
	"math"

	"github.com/inkwise/storyweb/internal/geom"
	"github.com/inkwise/storyweb/internal/relation"
)

// Rendered node size range in pixels.
const (
	MinNodeRadius = 15.0
	MaxNodeRadius = 45.0
)

// NodeRadius maps a mention count into the rendered size range, scaled
// linearly against the graph's largest mention count. Unknown or
// unmentioned entities get the minimum size.
func NodeRadius(mentions, maxMentions int) float64 {
	if maxMentions <= 0 || mentions <= 0 {
		return MinNodeRadius
	}
	if mentions > maxMentions {
		mentions = maxMentions
	}
	frac := float64(mentions) / float64(maxMentions)
	return MinNodeRadius + frac*(MaxNodeRadius-MinNodeRadius)
}

// Radii derives the rendered radius of every entity in one pass.
func Radii(entities map[int64]relation.Entity) map[int64]float64 {
	maxMentions := 0
	for _, e := range entities {
		if e.MentionCount > maxMentions {
			maxMentions = e.MentionCount
		}
	}
	out := make(map[int64]float64, len(entities))
	for id, e := range entities {
		out[id] = NodeRadius(e.MentionCount, maxMentions)
	}
	return out
}

// Fit rescales arbitrary layout coordinates to fill a width x height
// canvas, keeping pad pixels clear on every side. Axes scale
// independently; a degenerate axis (all points equal) collapses to the
// padded origin of that axis.
func Fit(positions map[int64]geom.Point, width, height, pad float64) map[int64]geom.Point {
	if len(positions) == 0 {
		return map[int64]geom.Point{}
	}

	minX, maxX := math.MaxFloat64, -math.MaxFloat64
	minY, maxY := math.MaxFloat64, -math.MaxFloat64
	for _, p := range positions {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX < 0.01 {
		rangeX = 1
	}
	if rangeY < 0.01 {
		rangeY = 1
	}

	targetW := width - 2*pad
	targetH := height - 2*pad

	fitted := make(map[int64]geom.Point, len(positions))
	for id, p := range positions {
		fitted[id] = geom.Point{
			X: pad + (p.X-minX)/rangeX*targetW,
			Y: pad + (p.Y-minY)/rangeY*targetH,
		}
	}
	return fitted
}

// Ring places ids evenly on a circle around center in the given order.
// Callers that need reproducible output pass ids in a stable order.
func Ring(ids []int64, center geom.Point, radius float64) map[int64]geom.Point {
	out := make(map[int64]geom.Point, len(ids))
	if len(ids) == 0 {
		return out
	}
	step := 2 * math.Pi / float64(len(ids))
	for i, id := range ids {
		angle := step * float64(i)
		out[id] = geom.Point{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		}
	}
	return out
}
