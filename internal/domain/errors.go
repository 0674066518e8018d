package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Address validation errors
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidAddress = errors.New("invalid network address")

	// Peer lifecycle errors
	ErrAlreadyBound   = errors.New("peer already has a socket attached")
	ErrConnectTimeout = errors.New("connection timed out")
	ErrHangup         = errors.New("socket hangup")
	ErrPeerDestroyed  = errors.New("peer destroyed")

	// Registry invariant violations. These indicate a programming error
	// and are never retried.
	ErrDuplicatePeer = errors.New("peer with this hostname already registered")
	ErrDuplicateID   = errors.New("peer with this id already registered")
	ErrPeerNotFound  = errors.New("peer not found")
	ErrLoaderTaken   = errors.New("loader peer already designated")
	ErrRefillRunning = errors.New("refill timer already started")

	// Pool errors
	ErrListen           = errors.New("listen failed")
	ErrAlreadyListening = errors.New("server pool already listening")
	ErrPoolClosed       = errors.New("pool closed")

	// Address book errors
	ErrAddressNotFound = errors.New("address not found in address book")
)
