// Package domain holds the pure data types shared by the peer pools, the
// address book, and the status API. Nothing here touches the network.
package domain

import "time"

// Direction tells which side initiated a connection.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// PeerInfo is a point-in-time snapshot of one live peer.
type PeerInfo struct {
	ID          uint64    `json:"id"`
	Hostname    string    `json:"hostname"`
	Host        string    `json:"host"`
	Port        uint16    `json:"port"`
	Services    uint64    `json:"services"`
	Direction   Direction `json:"direction"`
	State       string    `json:"state"`
	Connected   bool      `json:"connected"`
	Loader      bool      `json:"loader,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
	LastSeen    time.Time `json:"last_seen,omitempty"`
	BytesRecv   uint64    `json:"bytes_recv"`
}

// IsOutbound reports whether this node dialed the peer.
func (p *PeerInfo) IsOutbound() bool {
	return p.Direction == Outbound
}

// PoolStats summarises one pool's registry.
type PoolStats struct {
	Size     int `json:"size"`
	Inbound  int `json:"inbound"`
	Outbound int `json:"outbound"`
	Capacity int `json:"capacity"`
}

// KnownAddress is an address book entry for a peer that reached the open state
// at least once.
type KnownAddress struct {
	Hostname  string    `json:"hostname"`
	Host      string    `json:"host"`
	Port      uint16    `json:"port"`
	Services  uint64    `json:"services"`
	Direction Direction `json:"direction"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Successes int64     `json:"successes"`
	Failures  int64     `json:"failures"`
}
