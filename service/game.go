package service

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/earthtowalt/hide-and-seek/game"
	"github.com/earthtowalt/hide-and-seek/protocol"
	"github.com/earthtowalt/hide-and-seek/service/i"
	"github.com/earthtowalt/hide-and-seek/transport"
)

// Server errors.
var (
	ErrMissingSocket = errors.New("socket is required")
	ErrMissingMap    = errors.New("map generator is required")
	ErrInvalidPeriod = errors.New("tick and broadcast intervals must be positive")
	ErrUnknownPlayer = errors.New("no player with that username")
	ErrServerStopped = errors.New("server is stopped")
)

const (
	defaultInboxSize = 256
	readErrorBackoff = time.Millisecond
)

// Config configures a GameServer. Zero-valued optional fields take defaults.
type Config struct {
	Socket       i.Socket
	Rules        game.Rules
	MapGenerator game.MapGenerator
	Codec        *protocol.Codec

	TickInterval      time.Duration
	BroadcastInterval time.Duration
	IdleTimeout       time.Duration

	LoginRate  rate.Limit // Per-address login attempts per second; zero disables limiting.
	LoginBurst int

	Rand   *rand.Rand
	Clock  func() time.Time
	Logger i.Logger
}

type datagram struct {
	addr net.Addr
	msg  protocol.Message
}

// snapshot is an immutable authoritative state published by the owner
// goroutine for the broadcast loop and admin readers.
type snapshot struct {
	revision int64
	update   protocol.Update
	targets  []net.Addr
}

// GameServer runs one hide-and-seek world over a datagram socket. All game
// state is owned by a single goroutine; the receive and broadcast loops talk
// to it through the inbox and the published snapshot.
type GameServer struct {
	socket  i.Socket
	codec   *protocol.Codec
	logger  i.Logger
	now     func() time.Time
	metrics *Metrics

	tickInterval      time.Duration
	broadcastInterval time.Duration
	idleTimeout       time.Duration
	loginRate         rate.Limit
	loginBurst        int

	// Owned by the run goroutine.
	registry *Registry
	world    *game.World
	limiters map[string]*rate.Limiter

	readErrors rate.Sometimes

	inbox     chan datagram
	commands  chan func()
	latest    atomic.Pointer[snapshot]
	revisions protocol.Sequence
	updates   protocol.Sequence

	stop     chan struct{}
	stopOnce sync.Once
	Wg       sync.WaitGroup
}

// NewGameServer builds a server around c. The world starts waiting for
// players on a freshly generated map.
func NewGameServer(c *Config) (*GameServer, error) {
	if c.Socket == nil {
		return nil, ErrMissingSocket
	}
	if c.MapGenerator == nil {
		return nil, ErrMissingMap
	}
	if c.TickInterval <= 0 || c.BroadcastInterval <= 0 {
		return nil, ErrInvalidPeriod
	}

	clock := c.Clock
	if clock == nil {
		clock = time.Now
	}
	rng := c.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	codec := c.Codec
	if codec == nil {
		codec = protocol.NewCodec(protocol.DefaultMaxPacket)
	}
	logger := c.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	loginRate := c.LoginRate
	if loginRate <= 0 {
		loginRate = rate.Inf
	}
	idle := c.IdleTimeout
	if idle <= 0 {
		idle = time.Minute
	}

	world, err := game.NewWorld(c.Rules, c.MapGenerator, rng, clock())
	if err != nil {
		return nil, err
	}

	g := &GameServer{
		socket:            c.Socket,
		codec:             codec,
		logger:            logger,
		now:               clock,
		metrics:           &Metrics{},
		tickInterval:      c.TickInterval,
		broadcastInterval: c.BroadcastInterval,
		idleTimeout:       idle,
		loginRate:         loginRate,
		loginBurst:        max(c.LoginBurst, 1),
		registry:          NewRegistry(),
		world:             world,
		limiters:          make(map[string]*rate.Limiter),
		inbox:             make(chan datagram, defaultInboxSize),
		commands:          make(chan func()),
		readErrors:        rate.Sometimes{First: 1, Interval: time.Second},
		stop:              make(chan struct{}),
	}
	g.publish()
	return g, nil
}

// Start launches the receive, simulation and broadcast loops.
func (g *GameServer) Start() {
	g.Wg.Add(3)
	go g.receive()
	go g.run()
	go g.broadcast()
	g.logger.Info(fmt.Sprintf("game server listening on %s (map seed %d)", g.socket.LocalAddr(), g.world.Map().Seed))
}

// Stop ends every loop, waits for them and closes the socket. It is safe to
// call more than once.
func (g *GameServer) Stop() {
	g.stopOnce.Do(func() {
		close(g.stop)
		if err := g.socket.Close(); err != nil {
			g.logger.Warning(fmt.Sprintf("closing socket: %v", err))
		}
		g.Wg.Wait()
		g.logger.Info("game server stopped")
	})
}

// Snapshot returns the most recently published state. Its Timestamp is that
// of the last broadcast.
func (g *GameServer) Snapshot() protocol.Update {
	s := g.latest.Load()
	u := s.update
	u.Timestamp = g.updates.Last()
	return u
}

// Revision identifies the published snapshot. It changes whenever the owner
// publishes, whether or not anything was broadcast.
func (g *GameServer) Revision() int64 {
	return g.latest.Load().revision
}

// Metrics returns a copy of the server counters.
func (g *GameServer) Metrics() map[string]any {
	return g.metrics.Snapshot()
}

// Kick removes username and tells its client.
func (g *GameServer) Kick(username string) error {
	var err error
	if e := g.do(func() {
		p, ok := g.registry.Kick(username)
		if !ok {
			err = ErrUnknownPlayer
			return
		}
		g.kick(p, "removed by admin")
	}); e != nil {
		return e
	}
	return err
}

// ResetRound abandons the running round and restarts the cooldown.
func (g *GameServer) ResetRound() error {
	return g.do(func() {
		from := g.world.State()
		g.world.Reset(g.now(), g.registry.Players())
		g.logger.Info(fmt.Sprintf("round reset by admin (was %s)", from))
	})
}

// do runs fn on the owner goroutine and waits for it.
func (g *GameServer) do(fn func()) error {
	done := make(chan struct{})
	cmd := func() {
		fn()
		g.publish()
		close(done)
	}
	select {
	case g.commands <- cmd:
	case <-g.stop:
		return ErrServerStopped
	}
	select {
	case <-done:
		return nil
	case <-g.stop:
		return ErrServerStopped
	}
}

func (g *GameServer) run() {
	defer g.Wg.Done()
	ticker := time.NewTicker(g.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case d := <-g.inbox:
			g.handle(d)
		case cmd := <-g.commands:
			cmd()
		case <-ticker.C:
			g.tick()
		}
	}
}

func (g *GameServer) receive() {
	defer g.Wg.Done()
	buf := make([]byte, g.codec.MaxPacket+1)
	failures := 0

	for {
		n, addr, err := g.socket.ReadFrom(buf)
		if err != nil {
			switch {
			case transport.IsClosed(err):
				return
			case transport.IsConnReset(err):
				g.logger.Warning(fmt.Sprintf("connection reset reported by peer: %v", err))
				continue
			}
			failures++
			g.readErrors.Do(func() {
				g.logger.Error(fmt.Sprintf("reading datagram (%d in a row): %v", failures, err))
			})
			select {
			case <-g.stop:
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		failures = 0
		g.metrics.RecordPacketIn()

		msg, err := g.codec.Decode(buf[:n])
		if err != nil {
			g.metrics.RecordMalformed()
			continue
		}

		select {
		case g.inbox <- datagram{addr: addr, msg: msg}:
		case <-g.stop:
			return
		}
	}
}

func (g *GameServer) broadcast() {
	defer g.Wg.Done()
	ticker := time.NewTicker(g.broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.broadcastSnapshot()
		}
	}
}

// broadcastSnapshot encodes the latest snapshot once under a fresh update
// timestamp and sends it to every registered player.
func (g *GameServer) broadcastSnapshot() {
	s := g.latest.Load()
	if len(s.targets) == 0 {
		return
	}
	u := s.update
	u.Timestamp = g.updates.Next()

	b, err := g.codec.Encode(u)
	if err != nil {
		g.logger.Error(fmt.Sprintf("encoding update: %v", err))
		return
	}
	for _, addr := range s.targets {
		g.write(addr, b)
	}
	g.metrics.RecordBroadcast()
}

func (g *GameServer) handle(d datagram) {
	g.logger.Debug(fmt.Sprintf("%s from %s", d.msg.Kind(), d.addr))
	switch m := d.msg.(type) {
	case protocol.Login:
		g.handleLogin(d.addr, m)
	case protocol.Inputs:
		g.handleInputs(d.addr, m)
	default:
		g.logger.Warning(fmt.Sprintf("ignoring %s from %s", m.Kind(), d.addr))
	}
}

func (g *GameServer) handleLogin(addr net.Addr, m protocol.Login) {
	if !g.allowLogin(addr) {
		g.metrics.RecordRateLimited()
		return
	}

	p, err := g.registry.Login(m.Username, addr, m.ReturnPort, m.Timestamp, g.now())
	if err != nil {
		g.metrics.RecordLoginRejected()
		g.logger.Warning(fmt.Sprintf("login %q from %s rejected: %v", m.Username, addr, err))
		g.reply(addr, protocol.LoginAck{Status: protocol.StatusBad})
		return
	}

	g.world.Spawn(p)
	g.metrics.RecordLoginAccepted()
	g.metrics.SetPlayers(g.registry.Len())
	g.publish()
	g.reply(addr, protocol.LoginAck{Status: protocol.StatusOK})
	g.logger.Info(fmt.Sprintf("%s joined from %s as session %s (return port %d)", p.Username, addr, p.ID, p.ReturnPort))
}

func (g *GameServer) handleInputs(addr net.Addr, m protocol.Inputs) {
	applied, err := g.registry.ApplyInputs(addr, m.Inputs, m.Timestamp, g.now())
	if errors.Is(err, ErrUnknownAddress) {
		g.metrics.RecordKick()
		g.reply(addr, protocol.Kick{})
		return
	}
	if !applied {
		g.metrics.RecordStaleInputs()
		return
	}
	g.reply(addr, protocol.InputsAck{Inputs: m.Inputs})
}

func (g *GameServer) allowLogin(addr net.Addr) bool {
	key := addr.String()
	l, ok := g.limiters[key]
	if !ok {
		l = rate.NewLimiter(g.loginRate, g.loginBurst)
		g.limiters[key] = l
	}
	return l.Allow()
}

func (g *GameServer) tick() {
	now := g.now()
	res := g.world.Tick(now, g.registry.Players())
	g.metrics.RecordTick()

	for _, p := range res.Caught {
		g.logger.Info(fmt.Sprintf("%s (%s) was caught by %s", p.Username, p.ID, res.Seeker.Username))
	}
	if res.Transitioned() {
		if res.To == game.Hiding {
			g.metrics.RecordRoundStarted()
			seeker := g.world.Seeker()
			g.logger.Info(fmt.Sprintf("round %s started, %s (%s) is seeking", g.world.Round(), seeker.Username, seeker.ID))
		} else {
			g.logger.Info(fmt.Sprintf("round state %s -> %s", res.From, res.To))
		}
	}
	if res.ReapIdle {
		for _, p := range g.registry.ReapIdle(now, g.idleTimeout) {
			g.kick(p, "idle")
		}
	}
	if res.NewMap {
		clear(g.limiters)
		g.logger.Info(fmt.Sprintf("new map with seed %d", g.world.Map().Seed))
	}
	g.publish()
}

// kick notifies a player already removed from the registry.
func (g *GameServer) kick(p *game.Player, reason string) {
	g.metrics.RecordKick()
	g.metrics.SetPlayers(g.registry.Len())
	g.reply(p.Addr, protocol.Kick{})
	g.logger.Info(fmt.Sprintf("kicked %s (session %s): %s", p.Username, p.ID, reason))
}

// publish makes the current world visible to the broadcast loop.
func (g *GameServer) publish() {
	players := g.registry.Players()
	s := &snapshot{
		update: protocol.Update{
			State:   g.world.State(),
			MapSeed: g.world.Map().Seed,
			Players: make([]game.PlayerState, len(players)),
		},
		targets: make([]net.Addr, len(players)),
	}
	for n, p := range players {
		s.update.Players[n] = p.State()
		s.targets[n] = p.Addr
	}
	s.revision = g.revisions.Next()
	g.latest.Store(s)
}

func (g *GameServer) reply(addr net.Addr, m protocol.Message) {
	b, err := g.codec.Encode(m)
	if err != nil {
		g.logger.Error(fmt.Sprintf("encoding %s: %v", m.Kind(), err))
		return
	}
	g.write(addr, b)
}

func (g *GameServer) write(addr net.Addr, b []byte) {
	n, err := g.socket.WriteTo(b, addr)
	if err != nil {
		if !transport.IsClosed(err) {
			g.logger.Warning(fmt.Sprintf("writing to %s: %v", addr, err))
		}
		return
	}
	g.metrics.RecordPacketOut(n)
}

type nopLogger struct{}

func (nopLogger) Debug(string)   {}
func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}
func (nopLogger) Error(string)   {}
