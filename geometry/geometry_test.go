package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntersects(t *testing.T) {
	wall := Segment{X1: 0, Y1: 0, X2: 10, Y2: 0}

	tests := []struct {
		name string
		move Segment
		want bool
	}{
		{"crossing", Segment{X1: 5, Y1: -5, X2: 5, Y2: 5}, true},
		{"ends on wall", Segment{X1: 5, Y1: -5, X2: 5, Y2: 0}, true},
		{"starts on wall moving away", Segment{X1: 5, Y1: 0, X2: 5, Y2: 5}, false},
		{"short of wall", Segment{X1: 5, Y1: -5, X2: 5, Y2: -1}, false},
		{"passes beyond wall end", Segment{X1: 11, Y1: -5, X2: 11, Y2: 5}, false},
		{"touches wall endpoint", Segment{X1: 10, Y1: -5, X2: 10, Y2: 5}, true},
		{"parallel", Segment{X1: 0, Y1: 1, X2: 10, Y2: 1}, false},
		{"collinear overlapping", Segment{X1: 2, Y1: 0, X2: 8, Y2: 0}, false},
		{"zero length", Segment{X1: 5, Y1: -1, X2: 5, Y2: -1}, false},
		{"diagonal crossing", Segment{X1: 0, Y1: -3, X2: 6, Y2: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Intersects(tt.move, wall))
		})
	}
}

func TestCrossesAny(t *testing.T) {
	walls := []Segment{
		{X1: 0, Y1: 0, X2: 10, Y2: 0},
		{X1: 20, Y1: -10, X2: 20, Y2: 10},
	}

	assert.True(t, CrossesAny(Segment{X1: 15, Y1: 0, X2: 25, Y2: 0}, walls))
	assert.False(t, CrossesAny(Segment{X1: 12, Y1: 1, X2: 18, Y2: 1}, walls))
	assert.False(t, CrossesAny(Segment{X1: 12, Y1: 1, X2: 18, Y2: 1}, nil))
}

func TestOverlaps(t *testing.T) {
	a := RectAround(Point{X: 0, Y: 0}, 25)

	assert.True(t, Overlaps(a, RectAround(Point{X: 10, Y: 10}, 25)))
	assert.True(t, Overlaps(a, a))
	assert.False(t, Overlaps(a, RectAround(Point{X: 25, Y: 0}, 25)), "edge contact is not overlap")
	assert.False(t, Overlaps(a, RectAround(Point{X: 0, Y: 40}, 25)))
}
