package p2p

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ─── Fake Transport ─────────────────────────────────────────────────────────

// fakeTransport records dials. By default a dial blocks until its context is
// cancelled, which models an address that never answers.
type fakeTransport struct {
	mu     sync.Mutex
	dials  []string
	dialFn func(ctx context.Context, addr string) (net.Conn, error)
}

func (f *fakeTransport) Dial(ctx context.Context, addr string) (net.Conn, error) {
	f.mu.Lock()
	f.dials = append(f.dials, addr)
	fn := f.dialFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, addr)
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeTransport) Listen(ctx context.Context, addr string) (net.Listener, error) {
	return nil, errors.New("fake transport cannot listen")
}

func (f *fakeTransport) Dials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dials...)
}

// pipeDialer answers every dial with one end of a net.Pipe and keeps the
// remote ends so tests can write to or hang up on the peer.
type pipeDialer struct {
	mu      sync.Mutex
	remotes map[string]net.Conn
}

func newPipeDialer() *pipeDialer {
	return &pipeDialer{remotes: make(map[string]net.Conn)}
}

func (d *pipeDialer) dial(ctx context.Context, addr string) (net.Conn, error) {
	local, remote := net.Pipe()
	d.mu.Lock()
	d.remotes[addr] = remote
	d.mu.Unlock()
	return &addrConn{Conn: local, remote: tcpAddr(addr)}, nil
}

func (d *pipeDialer) remote(addr string) net.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remotes[addr]
}

// addrConn overrides RemoteAddr, which net.Pipe reports as "pipe".
type addrConn struct {
	net.Conn
	remote net.Addr
}

func (c *addrConn) RemoteAddr() net.Addr { return c.remote }

func tcpAddr(hostport string) net.Addr {
	addr, err := net.ResolveTCPAddr("tcp", hostport)
	if err != nil {
		return nil
	}
	return addr
}

// ─── Helpers ────────────────────────────────────────────────────────────────

const testWait = 3 * time.Second

func testPoolConfig(tr Transport) PoolConfig {
	cfg := DefaultPoolConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 40000
	cfg.Seeds = nil
	cfg.RefillInterval = time.Hour
	cfg.Transport = tr
	cfg.Logger = zap.NewNop().Sugar()
	return cfg
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// signalLog records peer signals in order. It is only written on the loop.
type signalLog struct {
	mu     sync.Mutex
	events []string
	errs   []error
	closes []bool
	data   []byte
}

func (s *signalLog) add(ev string) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *signalLog) handlers() peerHandlers {
	return peerHandlers{
		onConnect: func() { s.add("connect") },
		onOpen:    func() { s.add("open") },
		onError: func(err error) {
			s.mu.Lock()
			s.errs = append(s.errs, err)
			s.mu.Unlock()
			s.add("error")
		},
		onClose: func(connected bool) {
			s.mu.Lock()
			s.closes = append(s.closes, connected)
			s.mu.Unlock()
			s.add("close")
		},
		onData: func(b []byte) {
			s.mu.Lock()
			s.data = append(s.data, b...)
			s.mu.Unlock()
		},
	}
}

func (s *signalLog) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
