package p2p

import (
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/tutu-network/peernet/internal/domain"
	"github.com/tutu-network/peernet/internal/infra/metrics"
)

// ClientPool keeps up to MaxOutbound outbound peers connected to the seed
// addresses. A refill pass runs once on Connect and then every
// RefillInterval; the refill timer is the only retry mechanism.
type ClientPool struct {
	*Pool

	hosts     []*NetAddress
	connected bool

	ticker   *clock.Ticker
	stopTick chan struct{}
}

// NewClientPool parses the seed list, drops seeds that point back at this
// node, and returns an idle pool. Call Connect to start dialing.
func NewClientPool(cfg PoolConfig) (*ClientPool, error) {
	cfg = cfg.withDefaults()

	self, err := FromHost(cfg.Host, cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("client pool: %w", err)
	}

	var hosts []*NetAddress
	seen := make(map[string]bool)
	for _, seed := range cfg.Seeds {
		addr, err := ParseNetAddress(seed)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", seed, err)
		}
		if isSelf(addr, self) || seen[addr.Hostname()] {
			continue
		}
		seen[addr.Hostname()] = true
		hosts = append(hosts, addr)
	}

	return &ClientPool{
		Pool:  newPool(cfg, domain.Outbound, cfg.MaxOutbound),
		hosts: hosts,
	}, nil
}

// isSelf matches a seed against this node's own listen address by port,
// when the seed host is this node's host or a local address.
func isSelf(seed, self *NetAddress) bool {
	if seed.Port != self.Port {
		return false
	}
	return seed.Host == self.Host || seed.IsLocal()
}

// Seeds returns the filtered seed hostnames.
func (c *ClientPool) Seeds() []string {
	out := make([]string, 0, len(c.hosts))
	for _, h := range c.hosts {
		out = append(out, h.Hostname())
	}
	return out
}

// Connect runs one refill pass and starts the refill timer. Calling it on a
// connected pool is a no-op.
func (c *ClientPool) Connect() error {
	var err error
	if callErr := c.loop.call(func() {
		if c.closed {
			err = domain.ErrPoolClosed
			return
		}
		if c.connected {
			return
		}
		c.refill()
		if err = c.startTimer(); err != nil {
			return
		}
		c.connected = true
	}); callErr != nil {
		return callErr
	}
	return err
}

// Refill runs one refill pass immediately.
func (c *ClientPool) Refill() error {
	return c.loop.call(c.refill)
}

// Close stops the refill timer and destroys every peer.
func (c *ClientPool) Close() error {
	c.close(c.stopTimer)
	return nil
}

// fillOutbound dials seeds until the outbound slots are full or the seeds
// run out. Dials are fire-and-forget: failures come back through each
// peer's own close path.
func (c *ClientPool) fillOutbound() {
	need := c.cfg.MaxOutbound - c.peers.Outbound()
	if need <= 0 {
		return
	}

	c.log.Debugf("Refilling %d peers (%d/%d).", need, c.peers.Outbound(), c.cfg.MaxOutbound)
	metrics.RefillPasses.Inc()

	for _, addr := range c.hosts {
		if c.peers.Outbound() >= c.cfg.MaxOutbound {
			break
		}
		if c.peers.Has(addr.Hostname()) {
			continue
		}
		if err := c.addOutbound(addr); err != nil {
			c.log.Warnw("Could not add outbound peer", "peer", addr.Hostname(), "error", err)
		}
	}
}

// addOutbound creates, binds and registers an outbound peer, then starts
// its connection attempt.
func (c *ClientPool) addOutbound(addr *NetAddress) error {
	peer := newOutboundPeer(c.env(), addr)
	c.bindPeer(peer)

	if err := c.addPeer(peer); err != nil {
		return err
	}

	c.log.Debugw("Connecting", "peer", peer.Hostname(), "id", peer.id)
	if err := peer.connect(); err != nil {
		peer.destroy()
		return err
	}
	peer.open()
	return nil
}

// startTimer arms the periodic refill. Only one timer may run.
func (c *ClientPool) startTimer() error {
	if c.ticker != nil {
		return &InvariantError{Op: "start refill", Err: domain.ErrRefillRunning}
	}

	ticker := c.cfg.Clock.Ticker(c.cfg.RefillInterval)
	stop := make(chan struct{})
	c.ticker, c.stopTick = ticker, stop

	go func() {
		for {
			select {
			case <-ticker.C:
				if !c.loop.post(c.refill) {
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return nil
}

// stopTimer cancels the refill timer. Idempotent.
func (c *ClientPool) stopTimer() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.stopTick)
	c.ticker, c.stopTick = nil, nil
}

// refill is one timer tick. Per-peer failures never escape it.
func (c *ClientPool) refill() {
	if c.closed {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("refill: %v", r)
			c.log.Errorw("Refill failed", "error", err)
			c.emitError(err)
		}
	}()
	c.fillOutbound()
}
