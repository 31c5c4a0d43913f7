package i

import (
	"github.com/earthtowalt/hide-and-seek/protocol"
)

// GameServer defines the interface for the authoritative hide-and-seek server.
type GameServer interface {
	// Start launches the receive, broadcast and simulation loops.
	Start()

	// Stop ends every loop and closes the socket.
	Stop()

	// Snapshot returns the most recently published authoritative state.
	Snapshot() protocol.Update

	// Revision changes every time a new snapshot is published.
	Revision() int64

	// Kick removes a player by username and notifies its client.
	Kick(username string) error

	// ResetRound abandons the current round and restarts the cooldown.
	ResetRound() error

	// Metrics returns a read-only copy of the server counters.
	Metrics() map[string]any
}
