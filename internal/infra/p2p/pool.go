// Package p2p is the peer connection layer: it opens, accepts, tracks and
// tears down connections to other nodes.
//
// A Pool owns a PeerList and runs every mutation of it, and every peer state
// transition, on one loop goroutine. Dials, reads, accepts and timers run in
// their own goroutines and post their outcomes onto that loop, so the
// registry needs no locks. ClientPool dials seed addresses and refills its
// outbound slots on a timer; ServerPool accepts inbound sockets under a cap.
package p2p

import (
	"errors"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/tutu-network/peernet/internal/domain"
	"github.com/tutu-network/peernet/internal/infra/metrics"
	"github.com/tutu-network/peernet/internal/logging"
)

// Defaults for PoolConfig.
const (
	DefaultMaxInbound     = 20
	DefaultMaxOutbound    = 8
	DefaultRefillInterval = 3 * time.Second
	DefaultHost           = "localhost"
	DefaultPort           = 65378
)

// maxPeerID is the largest id handed out before the counter wraps.
const maxPeerID = math.MaxInt64

// DefaultSeeds are the built-in bootstrap addresses.
var DefaultSeeds = []string{
	"localhost:65378",
	"localhost:65379",
	"localhost:65380",
	"localhost:65381",
}

// Hooks receive pool-level events. They run on the pool loop: they must not
// block and must not call back into blocking Pool methods such as Peers.
// A Node shares one Hooks value between its two pools, so hooks must also be
// safe for concurrent use.
type Hooks struct {
	OnPeer        func(domain.PeerInfo)
	OnPeerConnect func(domain.PeerInfo)
	OnPeerOpen    func(domain.PeerInfo)
	OnPeerError   func(domain.PeerInfo, error)
	OnPeerClose   func(info domain.PeerInfo, connected bool)
	OnData        func(domain.PeerInfo, []byte)
	OnError       func(error)
	OnListening   func(net.Addr)
}

// PoolConfig is read-only once a pool is constructed.
type PoolConfig struct {
	Host           string
	Port           int
	MaxInbound     int
	MaxOutbound    int
	ConnectTimeout time.Duration
	RefillInterval time.Duration
	Seeds          []string

	Transport Transport
	Clock     clock.Clock
	Logger    *zap.SugaredLogger

	// Handshake runs between connect and open. Nil keeps the open step a
	// no-op.
	Handshake func(*Peer) error
	Hooks     Hooks
}

// DefaultPoolConfig returns the stock capacities, timers and seeds.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		Host:           DefaultHost,
		Port:           DefaultPort,
		MaxInbound:     DefaultMaxInbound,
		MaxOutbound:    DefaultMaxOutbound,
		ConnectTimeout: DefaultConnectTimeout,
		RefillInterval: DefaultRefillInterval,
		Seeds:          append([]string(nil), DefaultSeeds...),
	}
}

// ListenAddr is the "host:port" the server side binds.
func (c PoolConfig) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxInbound <= 0 {
		c.MaxInbound = DefaultMaxInbound
	}
	if c.MaxOutbound <= 0 {
		c.MaxOutbound = DefaultMaxOutbound
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = DefaultRefillInterval
	}
	if c.Transport == nil {
		c.Transport = NewTCPTransport()
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = logging.Named("p2p")
	}
	return c
}

// Pool is the id allocation and lifecycle wiring shared by ClientPool and
// ServerPool.
type Pool struct {
	cfg       PoolConfig
	log       *zap.SugaredLogger
	loop      *loop
	peers     *PeerList
	direction domain.Direction
	capacity  int

	lastID  uint64
	maxID   uint64
	wrapped bool
	closed  bool
}

func newPool(cfg PoolConfig, direction domain.Direction, capacity int) *Pool {
	return &Pool{
		cfg:       cfg,
		log:       cfg.Logger.With("pool", string(direction)),
		loop:      newLoop(),
		peers:     NewPeerList(),
		direction: direction,
		capacity:  capacity,
		maxID:     maxPeerID,
	}
}

func (p *Pool) env() peerEnv {
	return peerEnv{
		loop:           p.loop,
		clock:          p.cfg.Clock,
		transport:      p.cfg.Transport,
		connectTimeout: p.cfg.ConnectTimeout,
	}
}

// allocateID returns the next free peer id. Ids count up from 1; after the
// counter reaches maxID it wraps and from then on skips ids still resident.
func (p *Pool) allocateID() uint64 {
	for {
		if p.lastID >= p.maxID {
			p.lastID = 0
			p.wrapped = true
		}
		p.lastID++
		if !p.wrapped || p.peers.Find(p.lastID) == nil {
			return p.lastID
		}
	}
}

// bindPeer assigns the peer its id and wires its lifecycle signals to
// logging, metrics, registry removal and the pool hooks.
func (p *Pool) bindPeer(peer *Peer) {
	peer.id = p.allocateID()
	hooks := p.cfg.Hooks
	dir := string(peer.origin.Direction())
	dialStart := p.cfg.Clock.Now()

	peer.handlers = peerHandlers{
		handshake: p.cfg.Handshake,
		onConnect: func() {
			p.log.Debugw("Peer connected", "peer", peer.Hostname(), "id", peer.id)
			if peer.Outbound() {
				metrics.Dials.WithLabelValues("connected").Inc()
				metrics.ConnectLatency.Observe(p.cfg.Clock.Since(dialStart).Seconds())
			}
			if hooks.OnPeerConnect != nil {
				hooks.OnPeerConnect(peer.Info())
			}
		},
		onOpen: func() {
			p.log.Infow("Peer opened", "peer", peer.Hostname(), "id", peer.id, "direction", dir)
			if hooks.OnPeerOpen != nil {
				hooks.OnPeerOpen(peer.Info())
			}
		},
		onError: func(err error) {
			p.log.Debugw("Peer error", "peer", peer.Hostname(), "id", peer.id, "error", err)
			metrics.PeerErrors.WithLabelValues(dir).Inc()
			if hooks.OnPeerError != nil {
				hooks.OnPeerError(peer.Info(), err)
			}
		},
		onClose: func(connected bool) {
			p.removePeer(peer)
			if peer.Outbound() && peer.connectTime.IsZero() {
				result := "failed"
				if errors.Is(peer.openErr, domain.ErrConnectTimeout) {
					result = "timeout"
				}
				metrics.Dials.WithLabelValues(result).Inc()
			}
			metrics.PeerCloses.WithLabelValues(dir, strconv.FormatBool(connected)).Inc()
			p.log.Debugw("Peer closed", "peer", peer.Hostname(), "id", peer.id, "connected", connected, "reason", peer.openErr)
			if hooks.OnPeerClose != nil {
				hooks.OnPeerClose(peer.Info(), connected)
			}
		},
		onData: func(chunk []byte) {
			metrics.BytesReceived.WithLabelValues(dir).Add(float64(len(chunk)))
			if hooks.OnData != nil {
				hooks.OnData(peer.Info(), chunk)
			}
		},
	}
}

// addPeer registers a bound peer. A violation aborts the add and is
// reported; the caller must then destroy the peer.
func (p *Pool) addPeer(peer *Peer) error {
	if err := p.peers.Add(peer); err != nil {
		p.invariantViolated("add", err)
		return err
	}
	p.updateGauge()
	if p.cfg.Hooks.OnPeer != nil {
		p.cfg.Hooks.OnPeer(peer.Info())
	}
	return nil
}

// removePeer tolerates a peer that was never registered or already removed.
func (p *Pool) removePeer(peer *Peer) {
	if !p.peers.Contains(peer) {
		return
	}
	if err := p.peers.Remove(peer); err != nil {
		p.invariantViolated("remove", err)
		return
	}
	p.updateGauge()
}

func (p *Pool) invariantViolated(op string, err error) {
	metrics.InvariantViolations.WithLabelValues(op).Inc()
	p.log.Errorw("Peer list invariant violated", "op", op, "error", err)
	p.emitError(err)
}

func (p *Pool) emitError(err error) {
	if p.cfg.Hooks.OnError != nil {
		p.cfg.Hooks.OnError(err)
	}
}

func (p *Pool) updateGauge() {
	n := p.peers.Outbound()
	if p.direction == domain.Inbound {
		n = p.peers.Inbound()
	}
	metrics.Peers.WithLabelValues(string(p.direction)).Set(float64(n))
}

// ─── Queries ────────────────────────────────────────────────────────────────

// Peers snapshots the registry in insertion order. Returns nil once closed.
func (p *Pool) Peers() []domain.PeerInfo {
	var out []domain.PeerInfo
	_ = p.loop.call(func() {
		for _, peer := range p.peers.Peers() {
			out = append(out, peer.Info())
		}
	})
	return out
}

// Peer looks up one peer by id.
func (p *Pool) Peer(id uint64) (domain.PeerInfo, bool) {
	var (
		info  domain.PeerInfo
		found bool
	)
	_ = p.loop.call(func() {
		if peer := p.peers.Find(id); peer != nil {
			info, found = peer.Info(), true
		}
	})
	return info, found
}

// PeerByHostname looks up one peer by its "host:port" key.
func (p *Pool) PeerByHostname(hostname string) (domain.PeerInfo, bool) {
	var (
		info  domain.PeerInfo
		found bool
	)
	_ = p.loop.call(func() {
		if peer := p.peers.Get(hostname); peer != nil {
			info, found = peer.Info(), true
		}
	})
	return info, found
}

// Stats returns registry counts.
func (p *Pool) Stats() domain.PoolStats {
	var s domain.PoolStats
	_ = p.loop.call(func() {
		s = domain.PoolStats{
			Size:     p.peers.Len(),
			Inbound:  p.peers.Inbound(),
			Outbound: p.peers.Outbound(),
			Capacity: p.capacity,
		}
	})
	return s
}

// Disconnect destroys the peer with the given id. It reports whether such a
// peer was resident.
func (p *Pool) Disconnect(id uint64) bool {
	found := false
	_ = p.loop.call(func() {
		if peer := p.peers.Find(id); peer != nil {
			found = true
			peer.destroy()
		}
	})
	return found
}

// SetLoader designates the peer with the given id as the loader peer.
func (p *Pool) SetLoader(id uint64) error {
	var err error
	if callErr := p.loop.call(func() {
		peer := p.peers.Find(id)
		if peer == nil {
			err = domain.ErrPeerNotFound
			return
		}
		err = p.peers.SetLoader(peer)
	}); callErr != nil {
		return callErr
	}
	return err
}

// close destroys every peer and stops the loop. Idempotent.
func (p *Pool) close(before func()) {
	_ = p.loop.call(func() {
		if p.closed {
			return
		}
		p.closed = true
		if before != nil {
			before()
		}
		p.peers.DestroyAll()
	})
	p.loop.stop()
}
