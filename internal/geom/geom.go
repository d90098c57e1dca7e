// Package geom provides the screen-space primitives used to build organic
// cluster outlines: perimeter sampling, convex hulls, centroid-relative
// expansion, and corner-cutting plus spline smoothing.
//
// All functions are pure, never mutate their inputs, and treat coordinates
// as screen space (y grows downward).
package geom

import "math"

// Reference defaults for outline construction. Callers exposing tuning
// knobs should start from these.
const (
	DefaultPerimeterSamples  = 8
	DefaultChaikinIterations = 4
	DefaultCurveSamples      = 10
)

// Point is a position in screen space.
type Point struct {
	X float64
	Y float64
}

// Centroid returns the unweighted mean of the given points.
// The zero Point is returned for an empty slice.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(points))
	return Point{X: sx / n, Y: sy / n}
}

// SamplePerimeter returns count points evenly spaced on the circle of the
// given radius around center, starting at angle zero and proceeding by
// 2*pi/count. A count of zero or less falls back to
// DefaultPerimeterSamples.
func SamplePerimeter(center Point, radius float64, count int) []Point {
	if count <= 0 {
		count = DefaultPerimeterSamples
	}
	points := make([]Point, count)
	step := 2 * math.Pi / float64(count)
	for i := 0; i < count; i++ {
		angle := step * float64(i)
		points[i] = Point{
			X: center.X + radius*math.Cos(angle),
			Y: center.Y + radius*math.Sin(angle),
		}
	}
	return points
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func distanceSquared(a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}

// cross returns the z component of (a-o) x (b-o). Positive means the turn
// o->a->b is counter-clockwise in mathematical orientation.
func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
