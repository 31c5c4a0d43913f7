package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/earthtowalt/hide-and-seek/game"
	"github.com/earthtowalt/hide-and-seek/geometry"
)

// Config holds the application's configuration values.
type Config struct {
	HostIP   string // Host IP every listener binds to
	UDPPort  int    // Port for the game UDP socket
	GrpcPort int    // Port for the admin gRPC server
	HTTPPort int    // Port for health, metrics and spectators

	ServerAddr string // Game server address dialled by the bot client

	MaxPacket int // Largest datagram read or written (in bytes)

	SeekerSpeed float64
	HiderSpeed  float64
	GhostSpeed  float64

	Cooldown time.Duration
	Hide     time.Duration
	Seek     time.Duration

	IdleTimeout       time.Duration // Players without accepted input for this long are kicked
	BroadcastInterval time.Duration // Period between snapshots sent to clients
	TickRate          int           // Simulation ticks per second

	MapSize     int     // Maze cells per side
	MapCellSize float64 // Map units per maze cell

	LoginRate  float64 // Sustained login attempts per second per address
	LoginBurst int

	LogFile string // Optional rolling log file
	Debug   bool
}

// Load reads a .env file if present, then the environment. Unset variables
// take the game's stock values; malformed ones are reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[APP] [INFO] .env file not found or could not be loaded: %v", err)
	}

	var errs error
	r := reader{errs: &errs}
	c := Config{
		HostIP:   r.str("HOST_IP", "0.0.0.0"),
		UDPPort:  r.integer("UDP_PORT", 10001),
		GrpcPort: r.integer("GRPC_PORT", 10002),
		HTTPPort: r.integer("HTTP_PORT", 10080),

		ServerAddr: r.str("SERVER_ADDR", "127.0.0.1:10001"),

		MaxPacket: r.integer("MAX_PACKET", 2048),

		SeekerSpeed: r.float("SEEKER_SPEED", 9),
		HiderSpeed:  r.float("HIDER_SPEED", 7),
		GhostSpeed:  r.float("GHOST_SPEED", 10),

		Cooldown: r.duration("COOLDOWN_TIME", 10*time.Second),
		Hide:     r.duration("HIDE_TIME", 5*time.Second),
		Seek:     r.duration("SEEK_TIME", 30*time.Second),

		IdleTimeout:       r.duration("INACTIVE_TIME", 60*time.Second),
		BroadcastInterval: r.duration("BROADCAST_INTERVAL", 100*time.Millisecond),
		TickRate:          r.integer("TICK_RATE", 30),

		MapSize:     r.integer("MAP_SIZE", 20),
		MapCellSize: r.float("MAP_CELL_SIZE", 48),

		LoginRate:  r.float("LOGIN_RATE", 1),
		LoginBurst: r.integer("LOGIN_BURST", 5),

		LogFile: r.str("LOG_FILE", ""),
		Debug:   r.boolean("DEBUG", false),
	}

	if c.MaxPacket <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("MAX_PACKET must be positive, got %d", c.MaxPacket))
	}
	if c.TickRate <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("TICK_RATE must be positive, got %d", c.TickRate))
	}
	if c.BroadcastInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("BROADCAST_INTERVAL must be positive, got %s", c.BroadcastInterval))
	}
	if c.IdleTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("INACTIVE_TIME must be positive, got %s", c.IdleTimeout))
	}
	if errs == nil {
		errs = c.Rules().Validate()
	}
	return c, errs
}

// Rules returns the round rules described by c.
func (c Config) Rules() game.Rules {
	r := game.DefaultRules()
	r.Speeds = game.Speeds{Ghost: c.GhostSpeed, Hider: c.HiderSpeed, Seeker: c.SeekerSpeed}
	r.Cooldown = c.Cooldown
	r.Hide = c.Hide
	r.Seek = c.Seek
	half := float64(c.MapSize) * c.MapCellSize / 2
	r.Center = geometry.Point{X: half, Y: half}
	return r
}

// TickInterval is the period of the simulation loop.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// UDPAddr is the game socket's bind address.
func (c Config) UDPAddr() string {
	return net.JoinHostPort(c.HostIP, strconv.Itoa(c.UDPPort))
}

// GrpcAddr is the admin listener's address.
func (c Config) GrpcAddr() string {
	return net.JoinHostPort(c.HostIP, strconv.Itoa(c.GrpcPort))
}

// HTTPAddr is the HTTP listener's address.
func (c Config) HTTPAddr() string {
	return net.JoinHostPort(c.HostIP, strconv.Itoa(c.HTTPPort))
}

// reader pulls typed values out of the environment, collecting parse errors.
type reader struct {
	errs *error
}

func (r reader) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func (r reader) integer(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*r.errs = multierr.Append(*r.errs, fmt.Errorf("environment variable %s must be an integer: %w", key, err))
		return fallback
	}
	return n
}

func (r reader) float(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*r.errs = multierr.Append(*r.errs, fmt.Errorf("environment variable %s must be a number: %w", key, err))
		return fallback
	}
	return f
}

func (r reader) boolean(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*r.errs = multierr.Append(*r.errs, fmt.Errorf("environment variable %s must be a boolean: %w", key, err))
		return fallback
	}
	return b
}

// duration accepts Go duration strings ("1m30s") or a bare number of seconds.
func (r reader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*r.errs = multierr.Append(*r.errs, fmt.Errorf("environment variable %s must be a duration: %w", key, err))
		return fallback
	}
	return d
}
