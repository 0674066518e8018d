package p2p

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/tutu-network/peernet/internal/domain"
	"github.com/tutu-network/peernet/internal/infra/metrics"
)

// acceptBackoff is the pause after a non-fatal Accept error.
const acceptBackoff = 100 * time.Millisecond

// ServerPool accepts inbound connections on the configured host and port
// and registers each as an inbound peer. The connection cap is enforced by
// the listener before the pool ever sees an over-cap socket.
type ServerPool struct {
	*Pool

	listener *capListener
	addr     net.Addr
}

// NewServerPool returns a pool that is not yet listening.
func NewServerPool(cfg PoolConfig) *ServerPool {
	cfg = cfg.withDefaults()
	return &ServerPool{
		Pool: newPool(cfg, domain.Inbound, cfg.MaxInbound),
	}
}

// Listen binds the listening endpoint and starts accepting. A bind failure
// is returned as a *ListenError and is not retried.
func (s *ServerPool) Listen(ctx context.Context) (net.Addr, error) {
	var (
		addr net.Addr
		err  error
	)
	if callErr := s.loop.call(func() {
		addr, err = s.listen(ctx)
	}); callErr != nil {
		return nil, callErr
	}
	if err == nil && s.cfg.Hooks.OnListening != nil {
		s.cfg.Hooks.OnListening(addr)
	}
	return addr, err
}

func (s *ServerPool) listen(ctx context.Context) (net.Addr, error) {
	if s.closed {
		return nil, domain.ErrPoolClosed
	}
	if s.listener != nil {
		return nil, domain.ErrAlreadyListening
	}

	hostport := s.cfg.ListenAddr()
	ln, err := s.cfg.Transport.Listen(ctx, hostport)
	if err != nil {
		return nil, &ListenError{Addr: hostport, Err: err}
	}

	s.listener = newCapListener(ln, s.cfg.MaxInbound, func(remote net.Addr) {
		metrics.InboundRejected.Inc()
		s.log.Debugw("Rejected inbound connection at cap", "remote", remote, "max", s.cfg.MaxInbound)
	})
	s.addr = ln.Addr()
	s.log.Infof("Pool server listening on %s (max inbound=%d).", s.addr, s.cfg.MaxInbound)

	go s.acceptLoop(s.listener)
	return s.addr, nil
}

// Addr returns the bound address, or nil before Listen.
func (s *ServerPool) Addr() net.Addr {
	var addr net.Addr
	_ = s.loop.call(func() { addr = s.addr })
	return addr
}

// SetMaxInbound changes the listener cap.
func (s *ServerPool) SetMaxInbound(n int) {
	_ = s.loop.call(func() {
		s.capacity = n
		if s.listener != nil {
			s.listener.SetMaxConnections(n)
		}
	})
}

// Close stops accepting and destroys every peer.
func (s *ServerPool) Close() error {
	var err error
	s.close(func() {
		if s.listener != nil {
			err = s.listener.Close()
		}
	})
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *ServerPool) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if !s.loop.post(func() {
				s.log.Warnw("Accept failed", "error", err)
				s.emitError(&TransportError{Op: "accept", Hostname: ln.Addr().String(), Err: err})
			}) {
				return
			}
			time.Sleep(acceptBackoff)
			continue
		}

		if !s.loop.post(func() { s.handleConn(conn) }) {
			_ = conn.Close()
			return
		}
	}
}

// handleConn runs on the loop for every accepted connection.
func (s *ServerPool) handleConn(conn net.Conn) {
	if s.closed {
		_ = conn.Close()
		return
	}
	s.addInbound(conn)
}

// addInbound wraps conn as an inbound peer and registers it. A socket whose
// remote end is already gone is discarded without registration.
func (s *ServerPool) addInbound(conn net.Conn) {
	peer, err := newInboundPeer(s.env(), conn)
	if err != nil {
		metrics.InboundDiscarded.Inc()
		s.log.Debugw("Ignoring disconnected peer", "error", err)
		_ = conn.Close()
		return
	}

	s.bindPeer(peer)
	if err := s.addPeer(peer); err != nil {
		peer.destroy()
		return
	}

	s.log.Infow("Added inbound peer", "peer", peer.Hostname(), "id", peer.id)
	peer.open()
}
