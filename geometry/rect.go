package geometry

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// RectAround returns the size×size box centred on c.
func RectAround(c Point, size float64) Rect {
	half := size / 2
	return Rect{
		MinX: c.X - half,
		MinY: c.Y - half,
		MaxX: c.X + half,
		MaxY: c.Y + half,
	}
}

// Overlaps reports whether a and b share interior area. Boxes that only touch
// along an edge do not overlap.
func Overlaps(a, b Rect) bool {
	return a.MinX < b.MaxX && b.MinX < a.MaxX &&
		a.MinY < b.MaxY && b.MinY < a.MaxY
}
