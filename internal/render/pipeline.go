package render

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/inkwise/storyweb/internal/geom"
	"github.com/inkwise/storyweb/internal/layout"
	"github.com/inkwise/storyweb/internal/relation"
)

// Reference defaults for blob construction.
const (
	DefaultNodeMargin  = 15.0
	DefaultHullPadding = 35.0
)

const (
	fillAlpha   = 0.15
	strokeWidth = 2.0
	labelOffset = 10.0
)

var dashPattern = []float64{6, 4}

// Options tune outline construction. Zero fields fall back to the
// reference defaults.
type Options struct {
	NodeMargin        float64
	HullPadding       float64
	PerimeterSamples  int
	ChaikinIterations int
	CurveSamples      int
}

func (o Options) withDefaults() Options {
	if o.NodeMargin <= 0 {
		o.NodeMargin = DefaultNodeMargin
	}
	if o.HullPadding <= 0 {
		o.HullPadding = DefaultHullPadding
	}
	if o.PerimeterSamples <= 0 {
		o.PerimeterSamples = geom.DefaultPerimeterSamples
	}
	if o.ChaikinIterations <= 0 {
		o.ChaikinIterations = geom.DefaultChaikinIterations
	}
	if o.CurveSamples <= 0 {
		o.CurveSamples = geom.DefaultCurveSamples
	}
	return o
}

// Frame is everything the host supplies for one draw pass: the
// normalized graph, current positions and node sizes from the layout
// engine, the active filter, and any transient label overrides keyed by
// cluster id.
type Frame struct {
	Entities  map[int64]relation.Entity
	Records   []relation.Record
	Clusters  []relation.Cluster
	Positions map[int64]geom.Point
	Radii     map[int64]float64
	Filters   relation.FilterState
	Labels    map[int64]string
}

// FrameStats summarizes one draw pass.
type FrameStats struct {
	ClustersDrawn    int
	ClustersSkipped  int
	VisibleRelations int
	DroppedRelations int
}

// Pipeline runs the full blob pass for a frame: filter the edge set,
// then for every drawable cluster sample member perimeters, hull,
// expand, smooth, and paint. Rendering is synchronous and recomputes
// everything from the frame; repeated calls with the same frame emit
// identical draw sequences.
type Pipeline struct {
	opts Options
	log  *log.Logger
}

// NewPipeline builds a pipeline with the given options. A nil logger
// silences diagnostics.
func NewPipeline(opts Options, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{opts: opts.withDefaults(), log: logger}
}

// Render draws every drawable cluster of the frame onto the surface.
// Clusters with fewer than two positioned members, or whose pooled
// perimeter degenerates below a polygon, are skipped silently.
func (p *Pipeline) Render(s Surface, f Frame) FrameStats {
	visible, dropped := relation.VisibleRelations(f.Entities, f.Records, f.Filters)
	for _, d := range dropped {
		p.log.Debug("dropping relation",
			"reason", string(d.Reason),
			"source", d.Record.SourceID,
			"target", d.Record.TargetID)
	}

	stats := FrameStats{
		VisibleRelations: len(visible),
		DroppedRelations: len(dropped),
	}
	for i, cluster := range f.Clusters {
		ring, ok := p.Outline(cluster, f.Positions, f.Radii)
		if !ok {
			stats.ClustersSkipped++
			continue
		}
		label := cluster.DisplayLabel(f.Labels[cluster.ID], f.Entities)
		DrawOutline(s, ring, OutlineColor(i), label)
		stats.ClustersDrawn++
	}
	return stats
}

// VisibleRelations applies the frame's filter so the host can draw its
// own edge layer from the same edge set the blobs were computed against.
func (p *Pipeline) VisibleRelations(f Frame) []relation.Record {
	visible, _ := relation.VisibleRelations(f.Entities, f.Records, f.Filters)
	return visible
}

// Outline computes the smoothed blob ring for one cluster. ok is false
// when fewer than two members have known positions or when the pooled
// perimeter collapses below a polygon.
func (p *Pipeline) Outline(c relation.Cluster, positions map[int64]geom.Point, radii map[int64]float64) ([]geom.Point, bool) {
	pooled := make([]geom.Point, 0, len(c.EntityIDs)*p.opts.PerimeterSamples)
	positioned := 0
	for _, id := range c.EntityIDs {
		pos, ok := positions[id]
		if !ok {
			continue
		}
		positioned++
		r := radii[id]
		if r <= 0 {
			r = layout.MinNodeRadius
		}
		pooled = append(pooled, geom.SamplePerimeter(pos, r+p.opts.NodeMargin, p.opts.PerimeterSamples)...)
	}
	if positioned < 2 {
		return nil, false
	}
	hull := geom.ConvexHull(pooled)
	if len(hull) < 3 {
		return nil, false
	}
	expanded := geom.Expand(hull, p.opts.HullPadding)
	return geom.Smooth(expanded, p.opts.ChaikinIterations, p.opts.CurveSamples), true
}

// DrawOutline paints one closed ring: translucent fill, dashed opaque
// border in the same hue, and the label centered above the ring's
// topmost vertex. Rings below polygon size are ignored.
func DrawOutline(s Surface, ring []geom.Point, c Color, label string) {
	if len(ring) < 3 {
		return
	}
	tracePath(s, ring)
	s.FillPath(c, fillAlpha)
	tracePath(s, ring)
	s.StrokePath(c, strokeWidth, dashPattern)

	if label == "" {
		return
	}
	top := ring[0]
	for _, p := range ring[1:] {
		if p.Y < top.Y {
			top = p
		}
	}
	s.FillText(label, top.X, top.Y-labelOffset, c)
}

func tracePath(s Surface, ring []geom.Point) {
	s.MoveTo(ring[0].X, ring[0].Y)
	for _, p := range ring[1:] {
		s.LineTo(p.X, p.Y)
	}
	s.ClosePath()
}
