package game

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/earthtowalt/hide-and-seek/geometry"
)

const (
	minPlayers = 2 // Minimum number of players for a round.

	maxMapSeed = math.MaxInt32
)

// MapGenerator turns a seed into the ordered wall list of a map. It must be
// deterministic.
type MapGenerator func(seed int64) []geometry.Segment

// Map is a generated wall layout together with the seed that produced it. A
// Map is never mutated after construction; a new round gets a new Map.
type Map struct {
	Seed  int64
	Walls []geometry.Segment
}

// TickResult describes what a single Tick changed.
type TickResult struct {
	From, To State
	// Caught holds the hiders turned into ghosts this tick.
	Caught []*Player
	// Seeker is whoever was seeking when catches were resolved, nil if nobody.
	// It stays set when the round ends on the same tick.
	Seeker *Player
	// ReapIdle is set when idle players should be evicted now.
	ReapIdle bool
	// NewMap is set when the map was regenerated.
	NewMap bool
}

// Transitioned reports whether the round moved to another state.
func (r TickResult) Transitioned() bool {
	return r.From != r.To
}

// World is the round state machine. It does not own the players; each call
// receives the current roster. A World is not safe for concurrent use.
type World struct {
	rules    Rules
	generate MapGenerator
	rng      *rand.Rand

	state   State
	resetAt time.Time
	seeker  *Player
	round   uuid.UUID
	gameMap *Map
}

// NewWorld returns a World waiting for players with a freshly generated map.
func NewWorld(rules Rules, generate MapGenerator, rng *rand.Rand, now time.Time) (*World, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		rules:    rules,
		generate: generate,
		rng:      rng,
		state:    Waiting,
		resetAt:  now,
	}
	w.regenerate()
	return w, nil
}

// State returns the current round state.
func (w *World) State() State { return w.state }

// Map returns the current map.
func (w *World) Map() *Map { return w.gameMap }

// Seeker returns the current seeker, nil outside a round.
func (w *World) Seeker() *Player { return w.seeker }

// Round returns the id of the current round, uuid.Nil while waiting.
func (w *World) Round() uuid.UUID { return w.round }

// Rules returns the rules the world was built with.
func (w *World) Rules() Rules { return w.rules }

// Spawn places a newly joined player at the centre as a ghost.
func (w *World) Spawn(p *Player) {
	p.Assign(Ghost, w.rules.Speeds)
	p.Location = w.rules.Center
}

// Tick advances the simulation by one step at wall-clock time now.
func (w *World) Tick(now time.Time, players []*Player) TickResult {
	res := TickResult{From: w.state}

	switch {
	case len(players) < minPlayers:
		w.abort(players)
		w.resetAt = now
		res.ReapIdle = true
	case w.state != Waiting && !slices.Contains(players, w.seeker):
		w.abort(players)
		w.resetAt = now
	}

	for _, p := range players {
		if p == w.seeker && w.state == Hiding {
			continue
		}
		p.Location = Step(p.Motion(), w.gameMap.Walls)
	}

	if w.state == Seeking && w.seeker != nil {
		res.Caught = w.catch(players)
	}
	res.Seeker = w.seeker

	elapsed := now.Sub(w.resetAt)
	r := w.rules
	switch {
	case w.state == Waiting && elapsed > r.Cooldown:
		w.startRound(players)
	case w.state == Hiding && elapsed > r.Cooldown+r.Hide:
		w.state = Seeking
	case w.state == Seeking && elapsed > r.Cooldown+r.Hide+r.Seek:
		w.endRound(players)
		w.resetAt = now
		res.ReapIdle = true
		res.NewMap = true
	}

	res.To = w.state
	return res
}

// Reset abandons the current round without awarding survival points and
// restarts the cooldown from now.
func (w *World) Reset(now time.Time, players []*Player) {
	w.abort(players)
	w.resetAt = now
}

func (w *World) startRound(players []*Player) {
	w.state = Hiding
	w.round = uuid.New()

	j := w.rules.SpawnJitter
	for _, p := range players {
		p.Assign(Hider, w.rules.Speeds)
		p.Location = geometry.Point{
			X: w.rules.Center.X + w.jitter(j),
			Y: w.rules.Center.Y + w.jitter(j),
		}
	}

	w.seeker = players[w.rng.IntN(len(players))]
	w.seeker.Assign(Seeker, w.rules.Speeds)
}

func (w *World) jitter(j float64) float64 {
	if j <= 0 {
		return 0
	}
	return w.rng.Float64()*2*j - j
}

func (w *World) catch(players []*Player) []*Player {
	seekerBox := geometry.RectAround(w.seeker.Location, w.rules.CatchBox)
	var caught []*Player
	for _, p := range players {
		if p == w.seeker || p.Role != Hider {
			continue
		}
		if !geometry.Overlaps(seekerBox, geometry.RectAround(p.Location, w.rules.CatchBox)) {
			continue
		}
		p.Assign(Ghost, w.rules.Speeds)
		w.seeker.Score += w.rules.CatchBonus
		caught = append(caught, p)
	}
	return caught
}

func (w *World) endRound(players []*Player) {
	for _, p := range players {
		if p.Role == Hider {
			p.Score += w.rules.SurvivalBonus
		}
	}
	w.abort(players)
	w.regenerate()
}

func (w *World) abort(players []*Player) {
	for _, p := range players {
		p.Assign(Ghost, w.rules.Speeds)
	}
	w.state = Waiting
	w.seeker = nil
	w.round = uuid.Nil
}

func (w *World) regenerate() {
	seed := w.rng.Int64N(maxMapSeed) + 1
	w.gameMap = &Map{Seed: seed, Walls: w.generate(seed)}
}
