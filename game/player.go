package game

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/earthtowalt/hide-and-seek/geometry"
)

// Player is the server's authoritative record of one logged-in participant.
type Player struct {
	ID         uuid.UUID
	Username   string
	Addr       net.Addr // transport endpoint; never replicated
	ReturnPort int

	Role     Role
	Location geometry.Point
	Speed    float64
	Inputs   InputSet
	Score    int

	LastInputTimestamp int64
	LastActiveAt       time.Time
}

// Assign switches the player's role and picks up that role's speed.
func (p *Player) Assign(r Role, s Speeds) {
	p.Role = r
	p.Speed = r.Speed(s)
}

// Motion returns what the movement engine needs to advance p by one tick.
func (p *Player) Motion() Motion {
	return Motion{From: p.Location, Role: p.Role, Speed: p.Speed, Inputs: p.Inputs}
}

// State returns the replicated view of p.
func (p *Player) State() PlayerState {
	return PlayerState{
		Username: p.Username,
		Role:     p.Role,
		X:        p.Location.X,
		Y:        p.Location.Y,
		Speed:    p.Speed,
		Inputs:   p.Inputs,
		Score:    p.Score,
	}
}

// PlayerState is the plain data sent to clients for every player in an update.
type PlayerState struct {
	Username string   `json:"username"`
	Role     Role     `json:"role"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Speed    float64  `json:"speed"`
	Inputs   InputSet `json:"inputs"`
	Score    int      `json:"score"`
}

// Location returns the state's position as a point.
func (s PlayerState) Location() geometry.Point {
	return geometry.Point{X: s.X, Y: s.Y}
}

// Motion returns the movement input for a replicated player.
func (s PlayerState) Motion() Motion {
	return Motion{From: s.Location(), Role: s.Role, Speed: s.Speed, Inputs: s.Inputs}
}
