package service

import (
	"errors"
	"math/rand/v2"
	"net"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/earthtowalt/hide-and-seek/game"
	"github.com/earthtowalt/hide-and-seek/geometry"
	"github.com/earthtowalt/hide-and-seek/protocol"
	"github.com/earthtowalt/hide-and-seek/transport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakySocket fails the first failures reads with err.
type flakySocket struct {
	*transport.MemorySocket
	mu       sync.Mutex
	failures int
	err      error
}

func (s *flakySocket) ReadFrom(p []byte) (int, net.Addr, error) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return 0, nil, s.err
	}
	s.mu.Unlock()
	return s.MemorySocket.ReadFrom(p)
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+msg)
}

func (l *recordingLogger) Debug(msg string)   { l.record("DEBUG", msg) }
func (l *recordingLogger) Info(msg string)    { l.record("INFO", msg) }
func (l *recordingLogger) Warning(msg string) { l.record("WARN", msg) }
func (l *recordingLogger) Error(msg string)   { l.record("ERROR", msg) }

func (l *recordingLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

type testServer struct {
	*GameServer
	network *transport.MemoryNetwork
	clock   *fakeClock
}

func newTestServer(t *testing.T, tweak func(*Config)) *testServer {
	t.Helper()
	network := transport.NewMemoryNetwork()
	clock := &fakeClock{now: t0}
	c := &Config{
		Socket: network.Listen("server"),
		Rules:  game.DefaultRules(),
		MapGenerator: func(seed int64) []geometry.Segment {
			return nil
		},
		TickInterval:      10 * time.Millisecond,
		BroadcastInterval: 10 * time.Millisecond,
		IdleTimeout:       time.Minute,
		Rand:              rand.New(rand.NewPCG(1, 2)),
		Clock:             clock.Now,
	}
	if tweak != nil {
		tweak(c)
	}
	g, err := NewGameServer(c)
	require.NoError(t, err)
	t.Cleanup(g.Stop)
	return &testServer{GameServer: g, network: network, clock: clock}
}

// client opens a socket for a player and returns it with its address.
func (s *testServer) client(name string) (*transport.MemorySocket, transport.MemoryAddr) {
	return s.network.Listen(name), transport.MemoryAddr(name)
}

func (s *testServer) login(t *testing.T, name string, ts int64) *transport.MemorySocket {
	t.Helper()
	sock, addr := s.client(name)
	s.handle(datagram{addr: addr, msg: protocol.Login{Username: name, ReturnPort: 4000, Timestamp: ts}})
	assert.Equal(t, protocol.LoginAck{Status: protocol.StatusOK}, next(t, sock, protocol.KindLoginAck))
	return sock
}

// next reads from sock until a message of kind arrives.
func next(t *testing.T, sock *transport.MemorySocket, kind protocol.Kind) protocol.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		got := make(chan protocol.Message, 1)
		go func() {
			buf := make([]byte, protocol.DefaultMaxPacket)
			n, _, err := sock.ReadFrom(buf)
			if err != nil {
				close(got)
				return
			}
			m, err := protocol.Decode(buf[:n])
			if err != nil {
				close(got)
				return
			}
			got <- m
		}()
		select {
		case m, ok := <-got:
			require.True(t, ok, "socket closed or datagram malformed")
			if m.Kind() == kind {
				return m
			}
		case <-deadline:
			t.Fatalf("no %s received", kind)
			return nil
		}
	}
}

func TestNewGameServerValidates(t *testing.T) {
	network := transport.NewMemoryNetwork()
	noMap := func(int64) []geometry.Segment { return nil }

	_, err := NewGameServer(&Config{MapGenerator: noMap, TickInterval: time.Second, BroadcastInterval: time.Second})
	assert.ErrorIs(t, err, ErrMissingSocket)
	_, err = NewGameServer(&Config{Socket: network.Listen("a"), TickInterval: time.Second, BroadcastInterval: time.Second})
	assert.ErrorIs(t, err, ErrMissingMap)
	_, err = NewGameServer(&Config{Socket: network.Listen("b"), MapGenerator: noMap, BroadcastInterval: time.Second})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = NewGameServer(&Config{Socket: network.Listen("c"), MapGenerator: noMap, TickInterval: time.Second, BroadcastInterval: time.Second})
	assert.ErrorIs(t, err, game.ErrInvalidSpeed)
}

func TestLoginSpawnsGhostAtCentre(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t, "alice", 1)

	require.Equal(t, 1, s.registry.Len())
	p := s.registry.Players()[0]
	assert.Equal(t, game.Ghost, p.Role)
	assert.Equal(t, game.DefaultRules().Speeds.Ghost, p.Speed)
	assert.Equal(t, game.DefaultRules().Center, p.Location)

	snap := s.Snapshot()
	require.Len(t, snap.Players, 1)
	assert.Equal(t, "alice", snap.Players[0].Username)
	assert.Equal(t, uint64(1), s.Metrics()["logins_accepted"])
}

func TestDuplicateLoginIsRejected(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t, "alice", 1)

	sock, addr := s.client("impostor")
	s.handle(datagram{addr: addr, msg: protocol.Login{Username: "alice", Timestamp: 1}})

	assert.Equal(t, protocol.LoginAck{Status: protocol.StatusBad}, next(t, sock, protocol.KindLoginAck))
	assert.Equal(t, 1, s.registry.Len())
	assert.Equal(t, uint64(1), s.Metrics()["logins_rejected"])
}

func TestLoginIsRateLimitedPerAddress(t *testing.T) {
	s := newTestServer(t, func(c *Config) {
		c.LoginRate = rate.Every(time.Hour)
		c.LoginBurst = 1
	})
	_, addr := s.client("flood")
	s.handle(datagram{addr: addr, msg: protocol.Login{Username: "", Timestamp: 1}})
	s.handle(datagram{addr: addr, msg: protocol.Login{Username: "flood", Timestamp: 2}})

	assert.Zero(t, s.registry.Len())
	assert.Equal(t, uint64(1), s.Metrics()["rate_limited"])

	s.login(t, "other", 1)
}

func TestInputsAreAckedAndStaleOnesDropped(t *testing.T) {
	s := newTestServer(t, nil)
	sock := s.login(t, "alice", 1)
	addr := transport.MemoryAddr("alice")

	s.handle(datagram{addr: addr, msg: protocol.Inputs{Inputs: game.InputUp | game.InputLeft, Timestamp: 5}})
	assert.Equal(t, protocol.InputsAck{Inputs: game.InputUp | game.InputLeft}, next(t, sock, protocol.KindInputsAck))

	s.handle(datagram{addr: addr, msg: protocol.Inputs{Inputs: game.InputDown, Timestamp: 3}})
	assert.Equal(t, game.InputUp|game.InputLeft, s.registry.Players()[0].Inputs)
	assert.Equal(t, uint64(1), s.Metrics()["stale_inputs"])
}

func TestInputsFromUnknownAddressAreKicked(t *testing.T) {
	s := newTestServer(t, nil)
	sock, addr := s.client("stranger")

	s.handle(datagram{addr: addr, msg: protocol.Inputs{Inputs: game.InputUp, Timestamp: 1}})

	assert.Equal(t, protocol.Kick{}, next(t, sock, protocol.KindKick))
	assert.Zero(t, s.registry.Len())
}

func TestTickStartsRoundAfterCooldown(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t, "alice", 1)
	s.login(t, "bob", 1)

	s.tick()
	assert.Equal(t, game.Waiting, s.Snapshot().State)

	s.clock.Advance(game.DefaultRules().Cooldown + time.Millisecond)
	s.tick()

	snap := s.Snapshot()
	assert.Equal(t, game.Hiding, snap.State)
	roles := map[game.Role]int{}
	for _, p := range snap.Players {
		roles[p.Role]++
	}
	assert.Equal(t, map[game.Role]int{game.Hider: 1, game.Seeker: 1}, roles)
	assert.Equal(t, uint64(1), s.Metrics()["rounds"])
}

func TestTickReapsIdlePlayers(t *testing.T) {
	s := newTestServer(t, nil)
	sock := s.login(t, "alice", 1)

	s.clock.Advance(30 * time.Second)
	s.tick()
	assert.Equal(t, 1, s.registry.Len())

	s.clock.Advance(31 * time.Second)
	s.tick()

	assert.Zero(t, s.registry.Len())
	assert.Equal(t, protocol.Kick{}, next(t, sock, protocol.KindKick))
	assert.Empty(t, s.Snapshot().Players)
}

func TestBroadcastStampsIncreasingTimestamps(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.login(t, "alice", 1)
	bob := s.login(t, "bob", 1)

	s.broadcastSnapshot()
	s.broadcastSnapshot()

	for _, sock := range []*transport.MemorySocket{alice, bob} {
		first := next(t, sock, protocol.KindUpdate).(protocol.Update)
		second := next(t, sock, protocol.KindUpdate).(protocol.Update)
		assert.Equal(t, int64(1), first.Timestamp)
		assert.Equal(t, int64(2), second.Timestamp)
		assert.Len(t, first.Players, 2)
	}
	assert.Equal(t, int64(2), s.Snapshot().Timestamp)
}

func TestRunningServer(t *testing.T) {
	s := newTestServer(t, nil)
	s.Start()
	sock, _ := s.client("alice")
	server := transport.MemoryAddr("server")

	_, err := sock.WriteTo([]byte{0xff, 0xff, 0xff}, server)
	require.NoError(t, err)
	login, err := protocol.Encode(protocol.Login{Username: "alice", Timestamp: 1})
	require.NoError(t, err)
	_, err = sock.WriteTo(login, server)
	require.NoError(t, err)

	assert.Equal(t, protocol.LoginAck{Status: protocol.StatusOK}, next(t, sock, protocol.KindLoginAck))
	update := next(t, sock, protocol.KindUpdate).(protocol.Update)
	assert.Equal(t, "alice", update.Players[0].Username)
	assert.Equal(t, uint64(1), s.Metrics()["malformed"])

	assert.ErrorIs(t, s.Kick("nobody"), ErrUnknownPlayer)
	require.NoError(t, s.Kick("alice"))
	assert.Equal(t, protocol.Kick{}, next(t, sock, protocol.KindKick))
	assert.Empty(t, s.Snapshot().Players)

	require.NoError(t, s.ResetRound())

	s.Stop()
	assert.ErrorIs(t, s.Kick("alice"), ErrServerStopped)
	assert.ErrorIs(t, s.ResetRound(), ErrServerStopped)
}

func TestCatchOnFinalSeekingTick(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t, "alice", 1)
	s.login(t, "bob", 1)
	r := game.DefaultRules()

	s.clock.Advance(r.Cooldown + time.Millisecond)
	s.tick()
	s.clock.Advance(r.Hide)
	s.tick()
	require.Equal(t, game.Seeking, s.Snapshot().State)
	for _, p := range s.registry.Players() {
		p.Location = r.Center
	}

	s.clock.Advance(r.Seek)
	require.NotPanics(t, s.tick)

	snap := s.Snapshot()
	assert.Equal(t, game.Waiting, snap.State)
	scores := []int{snap.Players[0].Score, snap.Players[1].Score}
	assert.ElementsMatch(t, []int{r.CatchBonus, 0}, scores)
}

func runningFlakyServer(t *testing.T, failures int, err error) *testServer {
	t.Helper()
	s := newTestServer(t, func(c *Config) {
		c.Socket = &flakySocket{MemorySocket: c.Socket.(*transport.MemorySocket), failures: failures, err: err}
	})
	s.Start()
	return s
}

func loginOverNetwork(t *testing.T, s *testServer, name string) {
	t.Helper()
	sock, _ := s.client(name)
	b, err := protocol.Encode(protocol.Login{Username: name, Timestamp: 1})
	require.NoError(t, err)
	_, err = sock.WriteTo(b, transport.MemoryAddr("server"))
	require.NoError(t, err)
	assert.Equal(t, protocol.LoginAck{Status: protocol.StatusOK}, next(t, sock, protocol.KindLoginAck))
}

func TestReceiveSurvivesConnectionReset(t *testing.T) {
	reset := &net.OpError{Op: "read", Net: "udp", Err: os.NewSyscallError("recvfrom", syscall.ECONNRESET)}
	s := runningFlakyServer(t, 1, reset)

	loginOverNetwork(t, s, "alice")
}

func TestReceiveSurvivesRepeatedReadErrors(t *testing.T) {
	s := runningFlakyServer(t, 150, errors.New("transient read failure"))

	loginOverNetwork(t, s, "alice")
	assert.Len(t, s.Snapshot().Players, 1)
}

func TestRevisionAdvancesWithoutBroadcasts(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t, "alice", 1)
	before := s.Revision()

	s.clock.Advance(61 * time.Second)
	s.tick()

	assert.Greater(t, s.Revision(), before)
	assert.Empty(t, s.Snapshot().Players)
	assert.Zero(t, s.Snapshot().Timestamp, "nothing was broadcast")
}

func TestLogsNameSessionsAndDispatch(t *testing.T) {
	rec := &recordingLogger{}
	s := newTestServer(t, func(c *Config) { c.Logger = rec })
	s.login(t, "alice", 1)
	id := s.registry.Players()[0].ID.String()
	p, ok := s.registry.Kick("alice")
	require.True(t, ok)
	s.kick(p, "idle")

	lines := rec.Lines()
	assert.Contains(t, lines, "DEBUG login from alice")
	assert.Contains(t, lines, "INFO alice joined from alice as session "+id+" (return port 4000)")
	assert.Contains(t, lines, "INFO kicked alice (session "+id+"): idle")
}
