package domain

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the daemon and API depend on them.

// AddressBook persists addresses of peers that reached the open state.
// Implemented by infra/sqlite.DB.
type AddressBook interface {
	// RecordAddress inserts the address or refreshes it, counting a success.
	RecordAddress(addr KnownAddress) error

	// RecordFailure counts a failed outbound attempt against a known address.
	RecordFailure(hostname string) error

	// ListAddresses returns addresses newest first. An empty direction
	// matches both; limit <= 0 means no limit.
	ListAddresses(dir Direction, limit int) ([]KnownAddress, error)

	// DeleteAddress forgets one address.
	DeleteAddress(hostname string) error
}

// PeerDirectory is the read and control surface of a running node.
// Implemented by infra/network.Node.
type PeerDirectory interface {
	Peers() []PeerInfo
	Disconnect(dir Direction, id uint64) bool
}
