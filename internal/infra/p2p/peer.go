package p2p

import (
	"context"
	"net"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tutu-network/peernet/internal/domain"
)

// DefaultConnectTimeout bounds the outbound connect phase.
const DefaultConnectTimeout = 15 * time.Second

// Origin is how a peer's socket was obtained.
type Origin int

const (
	OriginOutbound Origin = iota // dialed by this node
	OriginInbound                // accepted by this node's listener
)

// Direction maps the origin onto the domain direction.
func (o Origin) Direction() domain.Direction {
	if o == OriginInbound {
		return domain.Inbound
	}
	return domain.Outbound
}

// State is a step of the peer connection state machine.
// Destroyed is terminal and reachable from every other state.
type State int

const (
	StateIdle State = iota
	StateBinding
	StateConnecting
	StateConnected
	StateOpen
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBinding:
		return "binding"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateOpen:
		return "open"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// peerHandlers are the lifecycle signals a Peer emits to its Pool. All run
// on the pool loop. connect and open fire at most once, error may fire more
// than once, close fires exactly once.
type peerHandlers struct {
	onConnect func()
	onOpen    func()
	onError   func(error)
	onClose   func(connected bool)
	onData    func([]byte)
	handshake func(*Peer) error
}

// peerEnv is what a Peer borrows from its Pool.
type peerEnv struct {
	loop           *loop
	clock          clock.Clock
	transport      Transport
	connectTimeout time.Duration
}

// Peer is one tracked connection, inbound or outbound. Unless noted
// otherwise its methods must be called on the owning pool's loop.
type Peer struct {
	env     peerEnv
	id      uint64
	address *NetAddress
	origin  Origin

	state       State
	connected   bool
	destroyed   bool
	loader      bool
	connectTime time.Time
	bytesRecv   uint64

	socket   *socket
	timer    *clock.Timer
	handle   Handle
	handlers peerHandlers

	openPending bool
	openDone    bool
	openErr     error
	opened      chan struct{}
	done        chan struct{}
}

func newPeer(env peerEnv, addr *NetAddress, origin Origin) *Peer {
	if env.connectTimeout <= 0 {
		env.connectTimeout = DefaultConnectTimeout
	}
	if env.clock == nil {
		env.clock = clock.New()
	}
	return &Peer{
		env:     env,
		address: addr,
		origin:  origin,
		state:   StateIdle,
		opened:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// newOutboundPeer creates an idle peer for addr. Nothing is dialed until
// connect is called.
func newOutboundPeer(env peerEnv, addr *NetAddress) *Peer {
	a := *addr
	return newPeer(env, &a, OriginOutbound)
}

// newInboundPeer adopts an accepted connection. It fails with
// ErrInvalidAddress when the connection no longer has a remote endpoint.
func newInboundPeer(env peerEnv, conn net.Conn) (*Peer, error) {
	addr, err := FromConn(conn)
	if err != nil {
		return nil, err
	}
	p := newPeer(env, addr, OriginInbound)
	if err := p.accept(conn); err != nil {
		return nil, err
	}
	return p, nil
}

// ─── Accessors ──────────────────────────────────────────────────────────────
// ID, Hostname, Address and Outbound are fixed before the peer is shared and
// are safe from any goroutine.

// ID is the pool-assigned identifier; zero until the peer is bound.
func (p *Peer) ID() uint64 { return p.id }

// Hostname is the peer's "host:port" registry key.
func (p *Peer) Hostname() string { return p.address.Hostname() }

// Address returns the peer's network address.
func (p *Peer) Address() *NetAddress { return p.address }

// Outbound reports whether this node dialed the peer.
func (p *Peer) Outbound() bool { return p.origin == OriginOutbound }

// Done is closed when the peer is destroyed.
func (p *Peer) Done() <-chan struct{} { return p.done }

// State returns the current state. Loop only.
func (p *Peer) State() State { return p.state }

// Connected reports whether the transport is connected. Loop only.
func (p *Peer) Connected() bool { return p.connected }

// Destroyed reports whether the peer reached its terminal state. Loop only.
func (p *Peer) Destroyed() bool { return p.destroyed }

// Info snapshots the peer. Loop only.
func (p *Peer) Info() domain.PeerInfo {
	return domain.PeerInfo{
		ID:          p.id,
		Hostname:    p.address.Hostname(),
		Host:        p.address.Host,
		Port:        p.address.Port,
		Services:    p.address.Services,
		Direction:   p.origin.Direction(),
		State:       p.state.String(),
		Connected:   p.connected,
		Loader:      p.loader,
		ConnectedAt: p.connectTime,
		LastSeen:    p.address.LastSeen,
		BytesRecv:   p.bytesRecv,
	}
}

// WaitOpen blocks until the open attempt resolves and returns its single
// outcome: nil once open, otherwise the error that ended the attempt. Safe
// from any goroutine other than the loop.
func (p *Peer) WaitOpen(ctx context.Context) error {
	select {
	case <-p.opened:
		return p.openErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy asks the loop to tear the peer down. Safe from any goroutine and
// idempotent.
func (p *Peer) Destroy() {
	p.env.loop.post(p.destroy)
}

// ─── Transitions ────────────────────────────────────────────────────────────

// bind attaches the socket. A peer is bound exactly once.
func (p *Peer) bind(s *socket) error {
	if p.socket != nil || p.state != StateIdle {
		return domain.ErrAlreadyBound
	}
	p.socket = s
	p.state = StateBinding
	return nil
}

// accept binds an inbound connection; the peer starts connected.
func (p *Peer) accept(conn net.Conn) error {
	s := acceptedSocket(p.env.loop, p, conn)
	if err := p.bind(s); err != nil {
		return err
	}
	setNoDelay(conn)

	p.connectTime = p.env.clock.Now()
	p.connected = true
	p.state = StateConnected

	s.startReading(conn)
	return nil
}

// connect issues the outbound dial and arms the connect timer.
func (p *Peer) connect() error {
	s := newSocket(p.env.loop, p)
	if err := p.bind(s); err != nil {
		return err
	}

	p.state = StateConnecting
	p.timer = p.env.clock.AfterFunc(p.env.connectTimeout, func() {
		p.env.loop.post(func() { p.handleConnectTimeout(s) })
	})
	s.dial(p.env.transport, p.address.Hostname())
	return nil
}

// open runs the readiness step once the transport is connected and then
// emits open. For an outbound peer still connecting it completes when the
// connect signal arrives.
func (p *Peer) open() {
	if p.destroyed || p.openPending || p.openDone {
		return
	}
	p.openPending = true
	if p.connected {
		p.finishOpen()
	}
}

func (p *Peer) finishOpen() {
	p.openPending = false
	if p.destroyed {
		return
	}

	if hs := p.handlers.handshake; hs != nil {
		if err := hs(p); err != nil {
			p.resolveOpen(err)
			p.emitError(err)
			p.destroy()
			return
		}
	}
	if p.destroyed {
		return
	}

	p.state = StateOpen
	p.address.Touch(p.address.Services, p.env.clock.Now())
	p.resolveOpen(nil)
	if p.handlers.onOpen != nil {
		p.handlers.onOpen()
	}
}

// resolveOpen records the single outcome of the open attempt.
func (p *Peer) resolveOpen(err error) {
	if p.openDone {
		return
	}
	p.openDone = true
	p.openErr = err
	close(p.opened)
}

// failConnect ends a connection attempt that never connected. The failure
// is reported through WaitOpen only; no error signal is emitted.
func (p *Peer) failConnect(err error) {
	p.resolveOpen(err)
	p.destroy()
}

// destroy releases the socket and emits close with the connectedness at the
// moment of destruction. Only the first call has any effect.
func (p *Peer) destroy() {
	if p.destroyed {
		return
	}
	connected := p.connected

	p.destroyed = true
	p.connected = false
	p.state = StateDestroyed
	p.openPending = false

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.socket != nil {
		p.socket.destroy()
		p.socket = nil
	}

	p.resolveOpen(domain.ErrPeerDestroyed)
	close(p.done)

	if p.handlers.onClose != nil {
		p.handlers.onClose(connected)
	}
}

func (p *Peer) emitError(err error) {
	if p.handlers.onError != nil {
		p.handlers.onError(err)
	}
}

// ─── Socket Events ──────────────────────────────────────────────────────────

func (p *Peer) handleSocketConnect(s *socket, conn net.Conn) {
	if p.socket != s || p.destroyed {
		_ = conn.Close()
		return
	}
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}

	s.conn = conn
	setNoDelay(conn)

	p.connectTime = p.env.clock.Now()
	p.connected = true
	p.state = StateConnected
	if p.handlers.onConnect != nil {
		p.handlers.onConnect()
	}

	s.startReading(conn)

	if p.openPending && !p.destroyed {
		p.finishOpen()
	}
}

func (p *Peer) handleConnectTimeout(s *socket) {
	if p.socket != s || p.destroyed || p.connected {
		return
	}
	p.timer = nil
	p.failConnect(domain.ErrConnectTimeout)
}

func (p *Peer) handleSocketError(s *socket, err error) {
	if p.socket != s || p.destroyed {
		return
	}
	if !p.connected {
		p.failConnect(err)
		return
	}
	p.resolveOpen(err)
	p.emitError(err)
	p.destroy()
}

func (p *Peer) handleSocketClose(s *socket) {
	if p.socket != s || p.destroyed {
		return
	}
	if !p.connected {
		p.failConnect(domain.ErrHangup)
		return
	}
	p.resolveOpen(domain.ErrHangup)
	p.emitError(domain.ErrHangup)
	p.destroy()
}

func (p *Peer) handleSocketData(s *socket, chunk []byte) {
	if p.socket != s || p.destroyed {
		return
	}
	p.bytesRecv += uint64(len(chunk))
	if p.handlers.onData != nil {
		p.handlers.onData(chunk)
	}
}
