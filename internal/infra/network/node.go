// Package network provides the node-side composition of the peer pools.
//
// A Node owns one ServerPool (inbound) and one ClientPool (outbound).
// Connect binds the listener first and only then starts dialing seeds, so a
// listen failure stops startup before any outbound work begins.
package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tutu-network/peernet/internal/domain"
	"github.com/tutu-network/peernet/internal/infra/p2p"
	"github.com/tutu-network/peernet/internal/logging"
)

// NodeStatus represents the node's current operational state.
type NodeStatus struct {
	NodeID     string           `json:"node_id"`
	Online     bool             `json:"online"`
	ListenAddr string           `json:"listen_addr,omitempty"`
	Uptime     time.Duration    `json:"uptime"`
	Inbound    domain.PoolStats `json:"inbound"`
	Outbound   domain.PoolStats `json:"outbound"`
	Seeds      []string         `json:"seeds"`
}

// Node is a full peer-to-peer node: a listening server pool plus a
// self-refilling client pool.
type Node struct {
	Server *p2p.ServerPool
	Client *p2p.ClientPool

	mu        sync.RWMutex
	nodeID    string
	online    bool
	stopped   bool
	startedAt time.Time
	log       *zap.SugaredLogger
}

// NewNode builds both pools from one pool configuration.
func NewNode(nodeID string, cfg p2p.PoolConfig) (*Node, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.Named("p2p")
	}

	client, err := p2p.NewClientPool(cfg)
	if err != nil {
		return nil, fmt.Errorf("create client pool: %w", err)
	}

	return &Node{
		Server:    p2p.NewServerPool(cfg),
		Client:    client,
		nodeID:    nodeID,
		startedAt: time.Now(),
		log:       logging.Named("network").With("node", nodeID),
	}, nil
}

// NodeID returns this node's identifier.
func (n *Node) NodeID() string {
	return n.nodeID
}

// Connect starts listening and then begins dialing seeds.
func (n *Node) Connect(ctx context.Context) error {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return domain.ErrPoolClosed
	}
	n.mu.Unlock()

	addr, err := n.Server.Listen(ctx)
	if err != nil {
		return err
	}
	n.log.Infow("Listening", "addr", addr.String())

	if err := n.Client.Connect(); err != nil {
		return fmt.Errorf("connect client pool: %w", err)
	}

	n.mu.Lock()
	n.online = true
	n.mu.Unlock()

	n.log.Infow("Node connected", "seeds", n.Client.Seeds())
	return nil
}

// ListenAddr returns the bound server address, or nil before Connect.
func (n *Node) ListenAddr() net.Addr {
	return n.Server.Addr()
}

// Status returns a snapshot of both pools.
func (n *Node) Status() NodeStatus {
	n.mu.RLock()
	online, startedAt := n.online, n.startedAt
	n.mu.RUnlock()

	s := NodeStatus{
		NodeID:   n.nodeID,
		Online:   online,
		Uptime:   time.Since(startedAt),
		Inbound:  n.Server.Stats(),
		Outbound: n.Client.Stats(),
		Seeds:    n.Client.Seeds(),
	}
	if addr := n.Server.Addr(); addr != nil {
		s.ListenAddr = addr.String()
	}
	return s
}

// Peers returns every live peer, inbound first.
func (n *Node) Peers() []domain.PeerInfo {
	return append(n.Server.Peers(), n.Client.Peers()...)
}

// Disconnect destroys a peer by direction and id.
func (n *Node) Disconnect(dir domain.Direction, id uint64) bool {
	if dir == domain.Inbound {
		return n.Server.Disconnect(id)
	}
	return n.Client.Disconnect(id)
}

// OutboundCount returns the number of resident outbound peers.
func (n *Node) OutboundCount() int {
	return n.Client.Stats().Outbound
}

// SeedCount returns the number of usable seed addresses.
func (n *Node) SeedCount() int {
	return len(n.Client.Seeds())
}

// Refill asks the client pool for an immediate refill pass.
func (n *Node) Refill() error {
	return n.Client.Refill()
}

// IsOnline reports whether Connect has completed.
func (n *Node) IsOnline() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.online
}

// Close stops the refill timer, closes the listener and destroys every
// peer. Safe to call more than once.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return nil
	}
	n.stopped = true
	n.online = false
	n.mu.Unlock()

	n.log.Infow("Node going offline")
	return multierr.Combine(n.Client.Close(), n.Server.Close())
}
