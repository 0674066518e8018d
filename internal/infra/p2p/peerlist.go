package p2p

import (
	"github.com/tutu-network/peernet/internal/domain"
)

// PeerList is the canonical set of live peers: an insertion-ordered list
// indexed by hostname and by id, with running inbound/outbound counters.
//
// Invariants, checked on every mutation:
//   - one peer per hostname and one peer per id
//   - inbound + outbound == Len()
//   - at most one loader peer; removing it clears the designation
//
// PeerList is owned by a single Pool and only touched from its loop.
type PeerList struct {
	list     *List[*Peer]
	byHost   map[string]Handle
	byID     map[uint64]Handle
	load     *Peer
	inbound  int
	outbound int
}

// NewPeerList creates an empty peer list.
func NewPeerList() *PeerList {
	return &PeerList{
		list:   NewList[*Peer](),
		byHost: make(map[string]Handle),
		byID:   make(map[uint64]Handle),
	}
}

// Add registers p. A duplicate hostname or id is an invariant violation.
func (l *PeerList) Add(p *Peer) error {
	if l.contains(p) {
		return l.violation("add", p, domain.ErrDuplicatePeer)
	}
	if _, ok := l.byHost[p.Hostname()]; ok {
		return l.violation("add", p, domain.ErrDuplicatePeer)
	}
	if _, ok := l.byID[p.id]; ok {
		return l.violation("add", p, domain.ErrDuplicateID)
	}

	h := l.list.PushBack(p)
	p.handle = h
	l.byHost[p.Hostname()] = h
	l.byID[p.id] = h

	if p.Outbound() {
		l.outbound++
	} else {
		l.inbound++
	}
	return nil
}

// Remove unregisters p. Removing a peer that is not resident is an
// invariant violation.
func (l *PeerList) Remove(p *Peer) error {
	if !l.contains(p) {
		return l.violation("remove", p, domain.ErrPeerNotFound)
	}
	if h, ok := l.byID[p.id]; !ok || h != p.handle {
		return l.violation("remove", p, domain.ErrPeerNotFound)
	}
	if h, ok := l.byHost[p.Hostname()]; !ok || h != p.handle {
		return l.violation("remove", p, domain.ErrPeerNotFound)
	}

	l.list.Remove(p.handle)
	delete(l.byID, p.id)
	delete(l.byHost, p.Hostname())
	p.handle = Handle{}

	if p == l.load {
		p.loader = false
		l.load = nil
	}

	if p.Outbound() {
		l.outbound--
	} else {
		l.inbound--
	}
	return nil
}

// Contains reports whether p itself (not merely its hostname) is resident.
func (l *PeerList) Contains(p *Peer) bool { return l.contains(p) }

func (l *PeerList) contains(p *Peer) bool {
	got, ok := l.list.Get(p.handle)
	return ok && got == p
}

// Get looks a peer up by hostname; nil when absent.
func (l *PeerList) Get(hostname string) *Peer {
	h, ok := l.byHost[hostname]
	if !ok {
		return nil
	}
	p, _ := l.list.Get(h)
	return p
}

// Has reports whether a peer with hostname is resident.
func (l *PeerList) Has(hostname string) bool {
	_, ok := l.byHost[hostname]
	return ok
}

// Find looks a peer up by id; nil when absent.
func (l *PeerList) Find(id uint64) *Peer {
	h, ok := l.byID[id]
	if !ok {
		return nil
	}
	p, _ := l.list.Get(h)
	return p
}

// Len returns the number of resident peers.
func (l *PeerList) Len() int { return l.list.Len() }

// Inbound returns the number of resident inbound peers.
func (l *PeerList) Inbound() int { return l.inbound }

// Outbound returns the number of resident outbound peers.
func (l *PeerList) Outbound() int { return l.outbound }

// Head returns the oldest peer, or nil.
func (l *PeerList) Head() *Peer {
	h, ok := l.list.Front()
	if !ok {
		return nil
	}
	p, _ := l.list.Get(h)
	return p
}

// Tail returns the newest peer, or nil.
func (l *PeerList) Tail() *Peer {
	h, ok := l.list.Back()
	if !ok {
		return nil
	}
	p, _ := l.list.Get(h)
	return p
}

// Next returns the peer registered after p, or nil.
func (l *PeerList) Next(p *Peer) *Peer {
	h, ok := l.list.Next(p.handle)
	if !ok {
		return nil
	}
	next, _ := l.list.Get(h)
	return next
}

// Peers returns the resident peers in insertion order.
func (l *PeerList) Peers() []*Peer { return l.list.Values() }

// Loader returns the designated loader peer, or nil.
func (l *PeerList) Loader() *Peer { return l.load }

// SetLoader designates p as the loader peer.
func (l *PeerList) SetLoader(p *Peer) error {
	if !l.contains(p) {
		return l.violation("set loader", p, domain.ErrPeerNotFound)
	}
	if l.load != nil && l.load != p {
		return l.violation("set loader", p, domain.ErrLoaderTaken)
	}
	p.loader = true
	l.load = p
	return nil
}

// ClearLoader drops the loader designation, if any.
func (l *PeerList) ClearLoader() {
	if l.load != nil {
		l.load.loader = false
		l.load = nil
	}
}

// DestroyAll destroys every resident peer. Destroying a peer removes it from
// this list as a side effect, so the successor is captured first.
func (l *PeerList) DestroyAll() {
	h, ok := l.list.Front()
	for ok {
		next, hasNext := l.list.Next(h)
		if p, live := l.list.Get(h); live {
			p.destroy()
		}
		h, ok = next, hasNext
	}
}

func (l *PeerList) violation(op string, p *Peer, err error) error {
	return &InvariantError{Op: op, Hostname: p.Hostname(), ID: p.id, Err: err}
}
