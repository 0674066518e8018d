package p2p

import (
	"errors"
	"fmt"

	"github.com/tutu-network/peernet/internal/domain"
)

// ValidationError reports a rejected NetAddress construction.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s=%q", e.Err, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TransportError wraps a socket-level failure (refused, reset, ...).
type TransportError struct {
	Op       string // "dial", "read", "accept"
	Hostname string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Hostname, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvariantError signals a broken registry invariant. It is a programming
// error: the operation that hit it is aborted and never retried.
type InvariantError struct {
	Op       string
	Hostname string
	ID       uint64
	Err      error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("peer list %s (id=%d hostname=%s): %v", e.Op, e.ID, e.Hostname, e.Err)
}

func (e *InvariantError) Unwrap() error { return e.Err }

// ListenError is fatal to a ServerPool; it is not retried.
type ListenError struct {
	Addr string
	Err  error
}

func (e *ListenError) Error() string {
	return fmt.Sprintf("%v on %s: %v", domain.ErrListen, e.Addr, e.Err)
}

func (e *ListenError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, domain.ErrListen) hold for every ListenError.
func (e *ListenError) Is(target error) bool {
	return target == domain.ErrListen
}

// IsInvariant reports whether err is a registry invariant violation.
func IsInvariant(err error) bool {
	var ie *InvariantError
	return errors.As(err, &ie)
}
