package p2p

import (
	"sync"

	"github.com/tutu-network/peernet/internal/domain"
)

// loop is the single execution context a Pool runs on. Transport goroutines
// and timers never touch pool or peer state directly: they post closures
// here and the loop runs them one at a time, in order.
type loop struct {
	tasks chan func()
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func newLoop() *loop {
	l := &loop{
		tasks: make(chan func(), 256),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *loop) run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			// Drain what was already queued so teardown work posted
			// before stop still runs.
			for {
				select {
				case fn := <-l.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// post queues fn. It returns false once the loop has stopped.
func (l *loop) post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// call runs fn on the loop and waits for it. Must not be called from the
// loop itself.
func (l *loop) call(fn func()) error {
	ran := make(chan struct{})
	if !l.post(func() {
		defer close(ran)
		fn()
	}) {
		return domain.ErrPoolClosed
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		// Either fn ran during the final drain or it never will.
		select {
		case <-ran:
			return nil
		default:
			return domain.ErrPoolClosed
		}
	}
}

// stop ends the loop after draining queued tasks. Idempotent.
func (l *loop) stop() {
	l.once.Do(func() { close(l.quit) })
	<-l.done
}
