// Package transport wraps the datagram sockets the game runs over.
package transport

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// UDPSocket is a bound UDP endpoint.
type UDPSocket struct {
	conn *net.UDPConn
}

// Listen binds a UDP socket to addr ("host:port"). Port 0 picks an ephemeral
// port, which is what clients use.
func Listen(addr string) (*UDPSocket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return &UDPSocket{conn: conn}, nil
}

// ResolveAddr resolves a "host:port" UDP address.
func ResolveAddr(addr string) (net.Addr, error) {
	return net.ResolveUDPAddr("udp", addr)
}

func (s *UDPSocket) ReadFrom(p []byte) (int, net.Addr, error) {
	return s.conn.ReadFrom(p)
}

func (s *UDPSocket) WriteTo(p []byte, addr net.Addr) (int, error) {
	return s.conn.WriteTo(p, addr)
}

func (s *UDPSocket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSocket) Close() error {
	return s.conn.Close()
}

// IsConnReset reports whether err is the ICMP-induced reset some platforms
// surface on a UDP read after a peer went away. It is not fatal to the socket.
func IsConnReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}

// IsClosed reports whether err means the socket was closed locally.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
