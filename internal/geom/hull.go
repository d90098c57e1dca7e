package geom

import (
	"math"
	"sort"
)

// ConvexHull computes the convex hull of the given points with a Graham
// scan: anchor at the lowest y (ties broken by lowest x), remaining points
// sorted by polar angle around the anchor (ties by distance, nearest
// first), then a stack sweep that pops on non-left turns. Collinear points
// are excluded, so the result contains only strict corner vertices.
//
// Fewer than 3 distinct input points are returned unchanged. Distinctness
// can also collapse during the sweep (all points collinear), in which case
// the result has fewer than 3 vertices and is not a usable polygon;
// callers skip outline rendering for such sets.
func ConvexHull(points []Point) []Point {
	distinct := dedupe(points)
	if len(distinct) < 3 {
		return points
	}

	anchorIdx := 0
	for i := 1; i < len(distinct); i++ {
		p := distinct[i]
		a := distinct[anchorIdx]
		if p.Y < a.Y || (p.Y == a.Y && p.X < a.X) {
			anchorIdx = i
		}
	}
	anchor := distinct[anchorIdx]

	rest := make([]Point, 0, len(distinct)-1)
	rest = append(rest, distinct[:anchorIdx]...)
	rest = append(rest, distinct[anchorIdx+1:]...)

	sort.Slice(rest, func(i, j int) bool {
		ai := math.Atan2(rest[i].Y-anchor.Y, rest[i].X-anchor.X)
		aj := math.Atan2(rest[j].Y-anchor.Y, rest[j].X-anchor.X)
		if ai != aj {
			return ai < aj
		}
		return distanceSquared(anchor, rest[i]) < distanceSquared(anchor, rest[j])
	})

	hull := make([]Point, 0, len(distinct))
	hull = append(hull, anchor)
	for _, p := range rest {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull
}

// Expand moves every hull vertex outward from the hull's centroid by
// padding pixels: a vertex at distance d from the centroid is scaled by
// (d+padding)/d along its centroid ray. Vertices exactly at the centroid
// stay put. Hulls with fewer than 3 vertices are returned unchanged.
func Expand(hull []Point, padding float64) []Point {
	if len(hull) < 3 {
		return hull
	}
	c := Centroid(hull)
	out := make([]Point, len(hull))
	for i, p := range hull {
		d := distance(c, p)
		if d == 0 {
			out[i] = p
			continue
		}
		scale := (d + padding) / d
		out[i] = Point{
			X: c.X + (p.X-c.X)*scale,
			Y: c.Y + (p.Y-c.Y)*scale,
		}
	}
	return out
}

func dedupe(points []Point) []Point {
	seen := make(map[Point]struct{}, len(points))
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
