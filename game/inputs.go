package game

import "strings"

// InputSet is the set of directional keys a player is holding.
type InputSet uint8

const (
	InputUp InputSet = 1 << iota
	InputDown
	InputRight
	InputLeft

	allInputs = InputUp | InputDown | InputRight | InputLeft
)

// Has reports whether every flag in f is set.
func (s InputSet) Has(f InputSet) bool {
	return s&f == f
}

// With returns s with f added.
func (s InputSet) With(f InputSet) InputSet {
	return s | f
}

// Without returns s with f removed.
func (s InputSet) Without(f InputSet) InputSet {
	return s &^ f
}

// Valid reports whether s only contains known flags.
func (s InputSet) Valid() bool {
	return s&^allInputs == 0
}

// Displacement sums the contribution of every active flag scaled by speed.
// Opposing flags are not filtered: up+down contributes both increments and
// cancels out on that axis.
func (s InputSet) Displacement(speed float64) (dx, dy float64) {
	if s.Has(InputUp) {
		dy -= speed
	}
	if s.Has(InputDown) {
		dy += speed
	}
	if s.Has(InputLeft) {
		dx -= speed
	}
	if s.Has(InputRight) {
		dx += speed
	}
	return dx, dy
}

func (s InputSet) String() string {
	if s == 0 {
		return "none"
	}
	names := make([]string, 0, 4)
	for _, f := range []struct {
		flag InputSet
		name string
	}{{InputUp, "up"}, {InputDown, "down"}, {InputRight, "right"}, {InputLeft, "left"}} {
		if s.Has(f.flag) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "+")
}
