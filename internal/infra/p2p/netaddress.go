package p2p

import (
	"net"
	"strconv"
	"time"

	"github.com/tutu-network/peernet/internal/domain"
)

// NetAddress identifies a remote endpoint. Host and Port are fixed at
// construction; Services and LastSeen are refreshed as the peer is seen.
type NetAddress struct {
	Host     string
	Port     uint16
	Services uint64
	LastSeen time.Time

	hostname string
}

// FromHost builds an address from a host and port. Ports outside (0, 65535)
// are rejected.
func FromHost(host string, port int) (*NetAddress, error) {
	if port <= 0 || port >= 0xffff {
		return nil, &ValidationError{Field: "port", Value: strconv.Itoa(port), Err: domain.ErrInvalidPort}
	}
	if host == "" {
		return nil, &ValidationError{Field: "host", Value: host, Err: domain.ErrInvalidAddress}
	}
	return &NetAddress{
		Host:     host,
		Port:     uint16(port),
		hostname: net.JoinHostPort(host, strconv.Itoa(port)),
	}, nil
}

// ParseNetAddress parses "host:port".
func ParseNetAddress(s string) (*NetAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return nil, &ValidationError{Field: "address", Value: s, Err: domain.ErrInvalidAddress}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, &ValidationError{Field: "port", Value: portStr, Err: domain.ErrInvalidPort}
	}
	return FromHost(host, port)
}

// FromConn builds an address from the remote end of an accepted connection.
// A connection that no longer exposes a remote host and port is rejected
// with ErrInvalidAddress.
func FromConn(conn net.Conn) (*NetAddress, error) {
	if conn == nil {
		return nil, &ValidationError{Field: "conn", Err: domain.ErrInvalidAddress}
	}
	ra := conn.RemoteAddr()
	if ra == nil {
		return nil, &ValidationError{Field: "remote", Err: domain.ErrInvalidAddress}
	}
	host, portStr, err := net.SplitHostPort(ra.String())
	if err != nil || host == "" {
		return nil, &ValidationError{Field: "remote", Value: ra.String(), Err: domain.ErrInvalidAddress}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		return nil, &ValidationError{Field: "remote", Value: ra.String(), Err: domain.ErrInvalidAddress}
	}
	return FromHost(host, port)
}

// Hostname is the "host:port" key used by the peer list.
func (a *NetAddress) Hostname() string { return a.hostname }

func (a *NetAddress) String() string { return a.hostname }

// Touch refreshes the mutable fields.
func (a *NetAddress) Touch(services uint64, seen time.Time) {
	a.Services = services
	a.LastSeen = seen
}

// IsLocal reports whether the host names this machine.
func (a *NetAddress) IsLocal() bool {
	if a.Host == "localhost" {
		return true
	}
	ip := net.ParseIP(a.Host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}
