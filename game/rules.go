package game

import (
	"errors"
	"time"

	"github.com/earthtowalt/hide-and-seek/geometry"
)

// Rule validation errors.
var (
	ErrInvalidSpeed    = errors.New("role speeds must be positive")
	ErrInvalidDuration = errors.New("round durations must be positive")
	ErrInvalidCatchBox = errors.New("catch box must be positive")
)

// Round defaults.
const (
	DefaultCatchBonus    = 2
	DefaultSurvivalBonus = 1
	DefaultPlayerSize    = 10
	DefaultSpawnJitter   = 25
)

// Rules is everything that tunes a round.
type Rules struct {
	Speeds Speeds

	Cooldown time.Duration
	Hide     time.Duration
	Seek     time.Duration

	CatchBonus    int
	SurvivalBonus int

	// CatchBox is the side of the square around a player used for catching.
	CatchBox float64
	// SpawnJitter is the half-width of the random offset around the centre
	// applied to every player at the start of a round.
	SpawnJitter float64
	// Center is where players spawn.
	Center geometry.Point
}

// DefaultRules returns the stock rules of the game.
func DefaultRules() Rules {
	return Rules{
		Speeds:        Speeds{Ghost: 10, Hider: 7, Seeker: 9},
		Cooldown:      10 * time.Second,
		Hide:          5 * time.Second,
		Seek:          30 * time.Second,
		CatchBonus:    DefaultCatchBonus,
		SurvivalBonus: DefaultSurvivalBonus,
		CatchBox:      DefaultPlayerSize * 2.5,
		SpawnJitter:   DefaultSpawnJitter,
		Center:        geometry.Point{X: 480, Y: 480},
	}
}

// Validate reports the first invalid setting.
func (r Rules) Validate() error {
	if r.Speeds.Ghost <= 0 || r.Speeds.Hider <= 0 || r.Speeds.Seeker <= 0 {
		return ErrInvalidSpeed
	}
	if r.Cooldown <= 0 || r.Hide <= 0 || r.Seek <= 0 {
		return ErrInvalidDuration
	}
	if r.CatchBox <= 0 {
		return ErrInvalidCatchBox
	}
	return nil
}
