package i

import "net"

// Socket is a datagram endpoint. Reads block; writes are fire-and-forget.
type Socket interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	LocalAddr() net.Addr
	Close() error
}
