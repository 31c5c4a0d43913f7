// Package geometry holds the wall math shared by the server simulation and
// client-side prediction. Everything here is pure and allocation free.
package geometry

// Point is a position on the map plane.
type Point struct {
	X float64
	Y float64
}

// Segment is a line segment from (X1,Y1) to (X2,Y2). Walls and single-tick
// movement paths are both segments.
type Segment struct {
	X1, Y1 float64
	X2, Y2 float64
}

// SegmentBetween returns the segment running from a to b.
func SegmentBetween(a, b Point) Segment {
	return Segment{X1: a.X, Y1: a.Y, X2: b.X, Y2: b.Y}
}

// Start returns the first endpoint of s.
func (s Segment) Start() Point { return Point{X: s.X1, Y: s.Y1} }

// End returns the second endpoint of s.
func (s Segment) End() Point { return Point{X: s.X2, Y: s.Y2} }

// Intersects reports whether the movement segment crosses the wall segment.
//
// The coefficients are the ones of the determinant form of the line-line
// intersection: t runs along move, u along wall. Parallel and coincident
// segments never intersect. The move's start point is excluded (t > 0) so a
// player standing exactly on a wall can always step away from it.
func Intersects(move, wall Segment) bool {
	x1, y1, x2, y2 := move.X1, move.Y1, move.X2, move.Y2
	x3, y3, x4, y4 := wall.X1, wall.Y1, wall.X2, wall.Y2

	denom := det(x1-x2, x3-x4, y1-y2, y3-y4)
	if denom == 0 {
		return false
	}

	t := det(x1-x3, x3-x4, y1-y3, y3-y4) / denom
	u := -det(x1-x2, x1-x3, y1-y2, y1-y3) / denom

	return 0 < t && t <= 1 && 0 <= u && u <= 1
}

// CrossesAny reports whether move intersects at least one of walls.
func CrossesAny(move Segment, walls []Segment) bool {
	for _, w := range walls {
		if Intersects(move, w) {
			return true
		}
	}
	return false
}

// det is the determinant of the 2x2 matrix [[a, b], [c, d]].
func det(a, b, c, d float64) float64 {
	return a*d - b*c
}
