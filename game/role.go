package game

import "fmt"

// Role is the closed set of parts a player can play in a round.
type Role uint8

const (
	Ghost Role = iota
	Hider
	Seeker
)

// Speeds holds the per-role movement speed, in map units per tick.
type Speeds struct {
	Ghost  float64
	Hider  float64
	Seeker float64
}

func (r Role) String() string {
	switch r {
	case Ghost:
		return "ghost"
	case Hider:
		return "hider"
	case Seeker:
		return "seeker"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r <= Seeker
}

// MarshalText renders a role by name in JSON.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// IgnoresWalls reports whether movement for this role skips wall collision.
func (r Role) IgnoresWalls() bool {
	return r == Ghost
}

// Speed returns the speed a player of this role moves at.
func (r Role) Speed(s Speeds) float64 {
	switch r {
	case Hider:
		return s.Hider
	case Seeker:
		return s.Seeker
	default:
		return s.Ghost
	}
}

// State is the phase of the round.
type State uint8

const (
	Waiting State = iota
	Hiding
	Seeking
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Hiding:
		return "hiding"
	case Seeking:
		return "seeking"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the declared states.
func (s State) Valid() bool {
	return s <= Seeking
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
