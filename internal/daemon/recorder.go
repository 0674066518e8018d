package daemon

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tutu-network/peernet/internal/domain"
	"github.com/tutu-network/peernet/internal/infra/p2p"
)

const recorderQueue = 256

type addressEvent struct {
	addr   domain.KnownAddress
	failed bool
}

// addressRecorder moves peer events from the pool loops to the address
// book. Pool hooks must not block, so events are queued and written by
// run; when the queue is full the event is dropped and counted.
type addressRecorder struct {
	book    domain.AddressBook
	events  chan addressEvent
	dropped atomic.Int64
	log     *zap.SugaredLogger
}

func newAddressRecorder(book domain.AddressBook, log *zap.SugaredLogger) *addressRecorder {
	return &addressRecorder{
		book:   book,
		events: make(chan addressEvent, recorderQueue),
		log:    log,
	}
}

// hooks returns the pool hooks that feed the recorder.
func (r *addressRecorder) hooks() p2p.Hooks {
	return p2p.Hooks{
		OnPeerOpen: r.opened,
		OnPeerClose: func(info domain.PeerInfo, connected bool) {
			if !connected && info.IsOutbound() {
				r.send(addressEvent{addr: domain.KnownAddress{Hostname: info.Hostname}, failed: true})
			}
		},
		OnError: func(err error) {
			r.log.Warnw("Pool error", "error", err)
		},
	}
}

func (r *addressRecorder) opened(info domain.PeerInfo) {
	seen := info.LastSeen
	if seen.IsZero() {
		seen = time.Now()
	}
	r.send(addressEvent{addr: domain.KnownAddress{
		Hostname:  info.Hostname,
		Host:      info.Host,
		Port:      info.Port,
		Services:  info.Services,
		Direction: info.Direction,
		LastSeen:  seen,
	}})
}

func (r *addressRecorder) send(ev addressEvent) {
	select {
	case r.events <- ev:
	default:
		r.dropped.Add(1)
	}
}

// run writes queued events until ctx is done, then drains the queue.
func (r *addressRecorder) run(ctx context.Context) {
	for {
		select {
		case ev := <-r.events:
			r.apply(ev)
		case <-ctx.Done():
			r.flush()
			return
		}
	}
}

// flush writes whatever is queued without waiting for more.
func (r *addressRecorder) flush() {
	for {
		select {
		case ev := <-r.events:
			r.apply(ev)
		default:
			if n := r.dropped.Swap(0); n > 0 {
				r.log.Warnw("Address book events dropped", "count", n)
			}
			return
		}
	}
}

func (r *addressRecorder) apply(ev addressEvent) {
	var err error
	if ev.failed {
		err = r.book.RecordFailure(ev.addr.Hostname)
	} else {
		err = r.book.RecordAddress(ev.addr)
	}
	if err != nil {
		r.log.Warnw("Address book write failed", "peer", ev.addr.Hostname, "error", err)
	}
}
