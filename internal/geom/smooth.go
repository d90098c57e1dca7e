package geom

// Chaikin applies the given number of corner-cutting iterations to a
// closed polygon. Each iteration replaces every edge (p0, p1) with the two
// points at 25% and 75% along it; original vertices are discarded, so the
// ring doubles in size per iteration and pulls toward the polygon
// interior. Inputs with fewer than 3 points, or a non-positive iteration
// count, are returned unchanged.
func Chaikin(points []Point, iterations int) []Point {
	if len(points) < 3 || iterations <= 0 {
		return points
	}
	current := points
	for it := 0; it < iterations; it++ {
		next := make([]Point, 0, len(current)*2)
		for i := range current {
			p0 := current[i]
			p1 := current[(i+1)%len(current)]
			dx := p1.X - p0.X
			dy := p1.Y - p0.Y
			next = append(next,
				Point{X: p0.X + dx*0.25, Y: p0.Y + dy*0.25},
				Point{X: p0.X + dx*0.75, Y: p0.Y + dy*0.75},
			)
		}
		current = next
	}
	return current
}

// CatmullRom interpolates a closed uniform Catmull-Rom spline through the
// given control ring, emitting perSegment points per control segment. The
// curve passes through every control point exactly: output index
// i*perSegment equals control point i. A perSegment of zero or less falls
// back to DefaultCurveSamples. Fewer than 3 control points are returned
// unchanged.
func CatmullRom(points []Point, perSegment int) []Point {
	if len(points) < 3 {
		return points
	}
	if perSegment <= 0 {
		perSegment = DefaultCurveSamples
	}
	n := len(points)
	out := make([]Point, 0, n*perSegment)
	for i := 0; i < n; i++ {
		p0 := points[(i-1+n)%n]
		p1 := points[i]
		p2 := points[(i+1)%n]
		p3 := points[(i+2)%n]
		for s := 0; s < perSegment; s++ {
			t := float64(s) / float64(perSegment)
			out = append(out, catmullRomPoint(p0, p1, p2, p3, t))
		}
	}
	return out
}

// Smooth is the standard outline finish: Chaikin corner cutting followed
// by a closed Catmull-Rom pass over the result.
func Smooth(points []Point, iterations, perSegment int) []Point {
	return CatmullRom(Chaikin(points, iterations), perSegment)
}

func catmullRomPoint(p0, p1, p2, p3 Point, t float64) Point {
	t2 := t * t
	t3 := t2 * t
	return Point{
		X: 0.5 * (2*p1.X + (p2.X-p0.X)*t + (2*p0.X-5*p1.X+4*p2.X-p3.X)*t2 + (3*p1.X-p0.X-3*p2.X+p3.X)*t3),
		Y: 0.5 * (2*p1.Y + (p2.Y-p0.Y)*t + (2*p0.Y-5*p1.Y+4*p2.Y-p3.Y)*t2 + (3*p1.Y-p0.Y-3*p2.Y+p3.Y)*t3),
	}
}
