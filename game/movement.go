package game

import "github.com/earthtowalt/hide-and-seek/geometry"

// Motion is a single mover as seen by Step.
type Motion struct {
	From   geometry.Point
	Role   Role
	Speed  float64
	Inputs InputSet
}

// Step returns where m ends up after one tick against walls.
//
// Ghosts always reach the candidate position. Everyone else only moves when the
// displacement is non-zero and the straight path does not cross a wall; a
// rejected move leaves the mover exactly where it was.
func Step(m Motion, walls []geometry.Segment) geometry.Point {
	dx, dy := m.Inputs.Displacement(m.Speed)
	to := geometry.Point{X: m.From.X + dx, Y: m.From.Y + dy}

	if m.Role.IgnoresWalls() {
		return to
	}
	if dx == 0 && dy == 0 {
		return m.From
	}
	if geometry.CrossesAny(geometry.SegmentBetween(m.From, to), walls) {
		return m.From
	}
	return to
}
