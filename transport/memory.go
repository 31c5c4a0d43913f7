package transport

import (
	"net"
	"sync"
)

const memoryQueueSize = 256

// MemoryAddr addresses a MemorySocket.
type MemoryAddr string

func (a MemoryAddr) Network() string { return "memory" }
func (a MemoryAddr) String() string  { return string(a) }

// MemoryNetwork routes datagrams between sockets in the same process. Like
// UDP, writes to unknown or congested endpoints are silently dropped.
type MemoryNetwork struct {
	mu      sync.RWMutex
	sockets map[string]*MemorySocket
	// Drop, when set, is consulted for every datagram; returning true loses it.
	Drop func(from, to net.Addr, p []byte) bool
}

// NewMemoryNetwork returns an empty network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{sockets: make(map[string]*MemorySocket)}
}

// Listen registers a socket at addr, replacing any previous one.
func (n *MemoryNetwork) Listen(addr string) *MemorySocket {
	s := &MemorySocket{
		net:   n,
		addr:  MemoryAddr(addr),
		queue: make(chan memoryDatagram, memoryQueueSize),
		done:  make(chan struct{}),
	}
	n.mu.Lock()
	n.sockets[addr] = s
	n.mu.Unlock()
	return s
}

func (n *MemoryNetwork) deliver(from net.Addr, to net.Addr, p []byte) {
	if n.Drop != nil && n.Drop(from, to, p) {
		return
	}
	n.mu.RLock()
	dst, ok := n.sockets[to.String()]
	n.mu.RUnlock()
	if !ok {
		return
	}
	d := memoryDatagram{from: from, data: append([]byte(nil), p...)}
	select {
	case <-dst.done:
	case dst.queue <- d:
	default:
	}
}

type memoryDatagram struct {
	from net.Addr
	data []byte
}

// MemorySocket is one endpoint on a MemoryNetwork.
type MemorySocket struct {
	net   *MemoryNetwork
	addr  MemoryAddr
	queue chan memoryDatagram
	done  chan struct{}
	once  sync.Once
}

// ReadFrom blocks for the next datagram. Datagrams longer than p are truncated
// as a UDP socket would.
func (s *MemorySocket) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case <-s.done:
		return 0, nil, net.ErrClosed
	case d := <-s.queue:
		return copy(p, d.data), d.from, nil
	}
}

func (s *MemorySocket) WriteTo(p []byte, addr net.Addr) (int, error) {
	select {
	case <-s.done:
		return 0, net.ErrClosed
	default:
	}
	s.net.deliver(s.addr, addr, p)
	return len(p), nil
}

func (s *MemorySocket) LocalAddr() net.Addr {
	return s.addr
}

func (s *MemorySocket) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.net.mu.Lock()
		if s.net.sockets[string(s.addr)] == s {
			delete(s.net.sockets, string(s.addr))
		}
		s.net.mu.Unlock()
	})
	return nil
}
