package service

import (
	"errors"
	"net"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/earthtowalt/hide-and-seek/game"
)

// Registry errors.
var (
	ErrDuplicateUsername = errors.New("username already taken")
	ErrEmptyUsername     = errors.New("username is empty")
	ErrUsernameTooLong   = errors.New("username is too long")
	ErrUnknownAddress    = errors.New("no player at address")
)

const maxUsernameLength = 32

// Registry is the player table. Players are keyed by username and by
// transport address, and kept in login order. A Registry belongs to the
// server's owner goroutine and has no lock of its own.
type Registry struct {
	players []*game.Player
	byName  map[string]*game.Player
	byAddr  map[string]*game.Player
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*game.Player),
		byAddr: make(map[string]*game.Player),
	}
}

// Login registers username at addr. The new player still needs spawning
// into the world. A second login from an address that already has a player
// replaces that player.
func (r *Registry) Login(username string, addr net.Addr, returnPort int, ts int64, now time.Time) (*game.Player, error) {
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, ErrUsernameTooLong
	}
	if _, ok := r.byName[username]; ok {
		return nil, ErrDuplicateUsername
	}
	if old, ok := r.byAddr[addr.String()]; ok {
		r.remove(old)
	}

	p := &game.Player{
		ID:                 uuid.New(),
		Username:           username,
		Addr:               addr,
		ReturnPort:         returnPort,
		LastInputTimestamp: ts,
		LastActiveAt:       now,
	}
	r.players = append(r.players, p)
	r.byName[username] = p
	r.byAddr[addr.String()] = p
	return p, nil
}

// ApplyInputs replaces the input set of the player at addr when ts is not
// older than the last one applied. A stale set reports false with no error.
func (r *Registry) ApplyInputs(addr net.Addr, set game.InputSet, ts int64, now time.Time) (bool, error) {
	p, ok := r.byAddr[addr.String()]
	if !ok {
		return false, ErrUnknownAddress
	}
	if ts < p.LastInputTimestamp {
		return false, nil
	}
	p.Inputs = set
	p.LastInputTimestamp = ts
	p.LastActiveAt = now
	return true, nil
}

// ReapIdle removes and returns every player whose last accepted input is
// more than threshold before now.
func (r *Registry) ReapIdle(now time.Time, threshold time.Duration) []*game.Player {
	var idle []*game.Player
	for _, p := range r.players {
		if now.Sub(p.LastActiveAt) > threshold {
			idle = append(idle, p)
		}
	}
	for _, p := range idle {
		r.remove(p)
	}
	return idle
}

// Kick removes the player called username.
func (r *Registry) Kick(username string) (*game.Player, bool) {
	p, ok := r.byName[username]
	if !ok {
		return nil, false
	}
	r.remove(p)
	return p, true
}

// ByAddr looks a player up by transport address.
func (r *Registry) ByAddr(addr net.Addr) (*game.Player, bool) {
	p, ok := r.byAddr[addr.String()]
	return p, ok
}

// Players returns the live roster in login order. Callers must not keep it
// across mutations.
func (r *Registry) Players() []*game.Player {
	return r.players
}

func (r *Registry) Len() int {
	return len(r.players)
}

func (r *Registry) remove(p *game.Player) {
	r.players = slices.DeleteFunc(r.players, func(q *game.Player) bool { return q == p })
	delete(r.byName, p.Username)
	delete(r.byAddr, p.Addr.String())
}
