package service

import "sync/atomic"

// Metrics counts server activity. Every method is safe for concurrent use.
type Metrics struct {
	packetsIn      atomic.Uint64
	packetsOut     atomic.Uint64
	bytesOut       atomic.Uint64
	malformed      atomic.Uint64
	staleInputs    atomic.Uint64
	kicks          atomic.Uint64
	loginsAccepted atomic.Uint64
	loginsRejected atomic.Uint64
	rateLimited    atomic.Uint64
	ticks          atomic.Uint64
	broadcasts     atomic.Uint64
	rounds         atomic.Uint64
	players        atomic.Int64
}

func (m *Metrics) RecordPacketIn() { m.packetsIn.Add(1) }
func (m *Metrics) RecordMalformed() { m.malformed.Add(1) }
func (m *Metrics) RecordStaleInputs() { m.staleInputs.Add(1) }
func (m *Metrics) RecordKick() { m.kicks.Add(1) }
func (m *Metrics) RecordLoginAccepted() { m.loginsAccepted.Add(1) }
func (m *Metrics) RecordLoginRejected() { m.loginsRejected.Add(1) }
func (m *Metrics) RecordRateLimited() { m.rateLimited.Add(1) }
func (m *Metrics) RecordTick() { m.ticks.Add(1) }
func (m *Metrics) RecordBroadcast() { m.broadcasts.Add(1) }
func (m *Metrics) RecordRoundStarted() { m.rounds.Add(1) }
func (m *Metrics) SetPlayers(n int) { m.players.Store(int64(n)) }

func (m *Metrics) RecordPacketOut(bytes int) {
	m.packetsOut.Add(1)
	if bytes > 0 {
		m.bytesOut.Add(uint64(bytes))
	}
}

// Snapshot returns a point-in-time copy of every counter.
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"packets_in":      m.packetsIn.Load(),
		"packets_out":     m.packetsOut.Load(),
		"bytes_out":       m.bytesOut.Load(),
		"malformed":       m.malformed.Load(),
		"stale_inputs":    m.staleInputs.Load(),
		"kicks":           m.kicks.Load(),
		"logins_accepted": m.loginsAccepted.Load(),
		"logins_rejected": m.loginsRejected.Load(),
		"rate_limited":    m.rateLimited.Load(),
		"ticks":           m.ticks.Load(),
		"broadcasts":      m.broadcasts.Load(),
		"rounds":          m.rounds.Load(),
		"players":         m.players.Load(),
	}
}
