package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/earthtowalt/hide-and-seek/game"
	"github.com/earthtowalt/hide-and-seek/protocol"
	"github.com/earthtowalt/hide-and-seek/service/i"
)

const spectatorWriteWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatusView is the JSON form of a snapshot.
type StatusView struct {
	Timestamp int64              `json:"timestamp"`
	State     game.State         `json:"state"`
	MapSeed   int64              `json:"map_seed"`
	Players   []game.PlayerState `json:"players"`
}

func statusView(u protocol.Update) StatusView {
	players := u.Players
	if players == nil {
		players = []game.PlayerState{}
	}
	return StatusView{Timestamp: u.Timestamp, State: u.State, MapSeed: u.MapSeed, Players: players}
}

// HTTPHandler serves health, metrics, status and the spectator stream.
type HTTPHandler struct {
	game     i.GameServer
	interval time.Duration
	logger   i.Logger
}

// NewHTTPHandler returns a handler streaming to spectators every interval.
func NewHTTPHandler(g i.GameServer, interval time.Duration, logger i.Logger) *HTTPHandler {
	return &HTTPHandler{game: g, interval: interval, logger: logger}
}

// RegisterRoutes mounts the handler on engine.
func (h *HTTPHandler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", h.health)
	engine.GET("/metrics", h.metrics)
	engine.GET("/status", h.status)
	engine.GET("/spectate", h.spectate)
}

// NewRouter returns a gin engine with every route registered.
func NewRouter(h *HTTPHandler) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	h.RegisterRoutes(engine)
	return engine
}

func (h *HTTPHandler) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) metrics(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.game.Metrics())
}

func (h *HTTPHandler) status(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, statusView(h.game.Snapshot()))
}

// spectate streams snapshots to a read-only websocket client until it goes
// away.
func (h *HTTPHandler) spectate(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.Warning(fmt.Sprintf("spectator upgrade failed: %v", err))
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	last := int64(-1)
	for {
		select {
		case <-gone:
			return
		case <-ctx.Request.Context().Done():
			return
		case <-ticker.C:
			rev := h.game.Revision()
			if rev == last {
				continue
			}
			last = rev
			u := h.game.Snapshot()
			_ = conn.SetWriteDeadline(time.Now().Add(spectatorWriteWait))
			if err := conn.WriteJSON(statusView(u)); err != nil {
				return
			}
		}
	}
}
