// Package client is the player side of the game: it logs in, streams its
// inputs, reconciles server updates and predicts its own movement between
// them.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"

	"github.com/earthtowalt/hide-and-seek/game"
	"github.com/earthtowalt/hide-and-seek/geometry"
	"github.com/earthtowalt/hide-and-seek/protocol"
	"github.com/earthtowalt/hide-and-seek/service/i"
	"github.com/earthtowalt/hide-and-seek/transport"
)

// Client errors. ErrLoginRejected and ErrKicked end a session.
var (
	ErrLoginRejected = errors.New("login rejected by server")
	ErrKicked        = errors.New("kicked by server")
	ErrMissingSocket = errors.New("socket is required")
	ErrMissingServer = errors.New("server address is required")
	ErrMissingMap    = errors.New("map generator is required")
)

// Config configures a Client.
type Config struct {
	Username     string
	Server       net.Addr
	Socket       i.Socket
	Codec        *protocol.Codec
	MapGenerator game.MapGenerator
	Logger       i.Logger
}

// View is a copy of the client's picture of the game for rendering.
type View struct {
	State   game.State
	MapSeed int64
	Walls   []geometry.Segment
	Players []game.PlayerState
	// Self indexes the local player in Players, -1 when it is not there yet.
	Self     int
	LoggedIn bool
}

// Client holds the local replica of one game.
type Client struct {
	username string
	server   net.Addr
	socket   i.Socket
	codec    *protocol.Codec
	generate game.MapGenerator
	logger   i.Logger

	outgoing protocol.Sequence

	mu       sync.Mutex
	intent   game.InputSet
	updates  protocol.Watermark
	loggedIn bool
	state    game.State
	players  []game.PlayerState
	self     int
	hasMap   bool
	mapSeed  int64
	walls    []geometry.Segment
}

// New returns a Client that has not logged in yet.
func New(c Config) (*Client, error) {
	if c.Socket == nil {
		return nil, ErrMissingSocket
	}
	if c.Server == nil {
		return nil, ErrMissingServer
	}
	if c.MapGenerator == nil {
		return nil, ErrMissingMap
	}
	codec := c.Codec
	if codec == nil {
		codec = protocol.NewCodec(protocol.DefaultMaxPacket)
	}
	logger := c.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Client{
		username: c.Username,
		server:   c.Server,
		socket:   c.Socket,
		codec:    codec,
		generate: c.MapGenerator,
		logger:   logger,
		state:    game.Waiting,
		self:     -1,
	}, nil
}

// Login asks the server to register the client's username. The answer is
// handled by Run.
func (c *Client) Login() error {
	return c.send(protocol.Login{
		Username:   c.username,
		ReturnPort: returnPort(c.socket.LocalAddr()),
		Timestamp:  c.outgoing.Next(),
	})
}

// SetInputs records the player's current intent and sends it.
func (c *Client) SetInputs(set game.InputSet) error {
	c.mu.Lock()
	c.intent = set
	c.mu.Unlock()
	return c.sendInputs(set)
}

// Run processes server datagrams until ctx is done, the socket is closed or
// the session ends. It closes the socket when ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.socket.Close() })
	defer stop()

	buf := make([]byte, c.codec.MaxPacket+1)
	for {
		n, _, err := c.socket.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if transport.IsConnReset(err) {
				c.logger.Warning(fmt.Sprintf("server unreachable: %v", err))
				continue
			}
			return err
		}

		msg, err := c.codec.Decode(buf[:n])
		if err != nil {
			c.logger.Warning(fmt.Sprintf("dropping datagram: %v", err))
			continue
		}
		if err := c.handle(msg); err != nil {
			return err
		}
	}
}

func (c *Client) handle(msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.LoginAck:
		if m.Status != protocol.StatusOK {
			return ErrLoginRejected
		}
		c.mu.Lock()
		c.loggedIn = true
		c.mu.Unlock()
		c.logger.Info(fmt.Sprintf("logged in as %s", c.username))
	case protocol.Kick:
		return ErrKicked
	case protocol.InputsAck:
		c.mu.Lock()
		intent := c.intent
		c.mu.Unlock()
		if m.Inputs != intent {
			return c.sendInputs(intent)
		}
	case protocol.Update:
		if resend, intent := c.apply(m); resend {
			return c.sendInputs(intent)
		}
	}
	return nil
}

// apply reconciles an update and reports whether the server's copy of the
// local inputs was out of date.
func (c *Client) apply(u protocol.Update) (bool, game.InputSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.updates.Advance(u.Timestamp) {
		return false, c.intent
	}

	c.players = slices.Clone(u.Players)
	c.state = u.State
	c.self = slices.IndexFunc(c.players, func(p game.PlayerState) bool { return p.Username == c.username })

	resend := false
	if c.self >= 0 && c.players[c.self].Inputs != c.intent {
		c.players[c.self].Inputs = c.intent
		resend = true
	}

	if !c.hasMap || u.MapSeed != c.mapSeed {
		c.walls = c.generate(u.MapSeed)
		c.mapSeed = u.MapSeed
		c.hasMap = true
		c.logger.Debug(fmt.Sprintf("rebuilt map for seed %d", u.MapSeed))
	}
	return resend, c.intent
}

// Predict advances the local player one tick against the local walls. The
// seeker stays put while the hiders hide.
func (c *Client) Predict() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.self < 0 {
		return
	}
	me := &c.players[c.self]
	if c.state == game.Hiding && me.Role == game.Seeker {
		return
	}
	to := game.Step(me.Motion(), c.walls)
	me.X, me.Y = to.X, to.Y
}

// View returns a copy of the current replica.
func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		State:    c.state,
		MapSeed:  c.mapSeed,
		Walls:    c.walls,
		Players:  slices.Clone(c.players),
		Self:     c.self,
		LoggedIn: c.loggedIn,
	}
}

// Close releases the socket.
func (c *Client) Close() error {
	return c.socket.Close()
}

func (c *Client) sendInputs(set game.InputSet) error {
	return c.send(protocol.Inputs{Inputs: set, Timestamp: c.outgoing.Next()})
}

func (c *Client) send(m protocol.Message) error {
	b, err := c.codec.Encode(m)
	if err != nil {
		return err
	}
	if _, err := c.socket.WriteTo(b, c.server); err != nil {
		return fmt.Errorf("sending %s: %w", m.Kind(), err)
	}
	return nil
}

func returnPort(addr net.Addr) int {
	if u, ok := addr.(*net.UDPAddr); ok {
		return u.Port
	}
	return 0
}

type nopLogger struct{}

func (nopLogger) Debug(string)   {}
func (nopLogger) Info(string)    {}
func (nopLogger) Warning(string) {}
func (nopLogger) Error(string)   {}
