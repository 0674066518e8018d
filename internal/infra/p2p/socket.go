package p2p

import (
	"context"
	"errors"
	"io"
	"net"
)

const readBufferSize = 32 * 1024

// socket is the transport handle a Peer owns exclusively. Its goroutines
// (dial, read) report back by posting onto the pool loop; every handler
// checks that the socket is still the peer's current one, so events from a
// socket that was already torn down are dropped.
type socket struct {
	loop   *loop
	peer   *Peer
	conn   net.Conn // set on the loop once connected
	cancel context.CancelFunc
}

// newSocket creates an unconnected socket for an outbound peer.
func newSocket(l *loop, p *Peer) *socket {
	return &socket{loop: l, peer: p, cancel: func() {}}
}

// dial starts the outbound connection attempt in the background.
func (s *socket) dial(tr Transport, addr string) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	l, p := s.loop, s.peer
	go func() {
		conn, err := tr.Dial(ctx, addr)
		if err != nil {
			l.post(func() { p.handleSocketError(s, &TransportError{Op: "dial", Hostname: addr, Err: err}) })
			return
		}
		if !l.post(func() { p.handleSocketConnect(s, conn) }) {
			_ = conn.Close()
		}
	}()
}

// acceptedSocket adopts an already-connected inbound connection.
func acceptedSocket(l *loop, p *Peer, conn net.Conn) *socket {
	return &socket{loop: l, peer: p, conn: conn, cancel: func() {}}
}

// startReading launches the read goroutine. Each chunk is copied and posted
// as a data event; the first read error ends the stream.
func (s *socket) startReading(conn net.Conn) {
	go func() {
		buf := make([]byte, readBufferSize)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				s.loop.post(func() { s.peer.handleSocketData(s, chunk) })
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
					readErr := &TransportError{Op: "read", Hostname: s.peer.Hostname(), Err: err}
					s.loop.post(func() { s.peer.handleSocketError(s, readErr) })
				}
				s.loop.post(func() { s.peer.handleSocketClose(s) })
				return
			}
		}
	}()
}

// destroy cancels any in-flight dial and closes the connection.
func (s *socket) destroy() {
	s.cancel()
	if s.conn != nil {
		_ = s.conn.Close()
	}
}
