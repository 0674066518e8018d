package p2p

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Transport is the raw socket layer the pools run on. TCPTransport is the
// production implementation; tests substitute in-memory ones.
type Transport interface {
	// Dial connects to addr ("host:port"). It must return promptly once ctx
	// is cancelled.
	Dial(ctx context.Context, addr string) (net.Conn, error)

	// Listen binds a listening endpoint on addr.
	Listen(ctx context.Context, addr string) (net.Listener, error)
}

// TCPTransport dials and listens over plain TCP.
type TCPTransport struct {
	KeepAlive time.Duration
}

// NewTCPTransport returns a TCP transport with a 30s keep-alive period.
func NewTCPTransport() *TCPTransport {
	return &TCPTransport{KeepAlive: 30 * time.Second}
}

func (t *TCPTransport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{KeepAlive: t.KeepAlive}
	return d.DialContext(ctx, "tcp", addr)
}

func (t *TCPTransport) Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{KeepAlive: t.KeepAlive}
	return lc.Listen(ctx, "tcp", addr)
}

// setNoDelay disables Nagle's algorithm when the connection supports it.
func setNoDelay(conn net.Conn) {
	if tc, ok := conn.(interface{ SetNoDelay(bool) error }); ok {
		_ = tc.SetNoDelay(true)
	}
}

// ─── Capped Listener ────────────────────────────────────────────────────────

// capListener enforces a maximum number of simultaneously accepted
// connections. Connections over the cap are closed before Accept returns
// them, so the pool never sees them.
type capListener struct {
	net.Listener

	max      atomic.Int64
	active   atomic.Int64
	onReject func(net.Addr)
}

func newCapListener(ln net.Listener, max int, onReject func(net.Addr)) *capListener {
	l := &capListener{Listener: ln, onReject: onReject}
	l.max.Store(int64(max))
	return l
}

// SetMaxConnections changes the cap. Existing connections are kept.
func (l *capListener) SetMaxConnections(n int) { l.max.Store(int64(n)) }

// MaxConnections returns the current cap.
func (l *capListener) MaxConnections() int { return int(l.max.Load()) }

// Connections returns the number of accepted connections not yet closed.
func (l *capListener) Connections() int { return int(l.active.Load()) }

func (l *capListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		max := l.max.Load()
		if max > 0 && l.active.Load() >= max {
			remote := conn.RemoteAddr()
			_ = conn.Close()
			if l.onReject != nil {
				l.onReject(remote)
			}
			continue
		}

		l.active.Add(1)
		return &trackedConn{Conn: conn, release: func() { l.active.Add(-1) }}, nil
	}
}

// trackedConn gives its slot back to the capListener on first Close.
type trackedConn struct {
	net.Conn
	once    sync.Once
	release func()
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(c.release)
	return err
}

// SetNoDelay forwards to the wrapped TCP connection.
func (c *trackedConn) SetNoDelay(noDelay bool) error {
	if tc, ok := c.Conn.(interface{ SetNoDelay(bool) error }); ok {
		return tc.SetNoDelay(noDelay)
	}
	return nil
}
