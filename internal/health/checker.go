// Package health provides periodic health checks with auto-recovery.
package health

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tutu-network/peernet/internal/infra/metrics"
	"github.com/tutu-network/peernet/internal/logging"
)

// DefaultInterval is how often the checks run.
const DefaultInterval = 60 * time.Second

var (
	errNotListening = errors.New("server pool is not listening")
	errNoOutbound   = errors.New("no outbound peers")
)

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Pinger is satisfied by *sqlite.DB.
type Pinger interface {
	Ping() error
}

// NodeProbe is the view of a running node the checks need. Satisfied by
// *network.Node.
type NodeProbe interface {
	IsOnline() bool
	ListenAddr() net.Addr
	OutboundCount() int
	SeedCount() int
	Refill() error
}

// Checker runs periodic health checks with auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	log      *zap.SugaredLogger
}

// NewChecker creates a health checker with the sqlite, listener and
// outbound checks.
func NewChecker(db Pinger, node NodeProbe) *Checker {
	return &Checker{
		interval: DefaultInterval,
		log:      logging.Named("health"),
		checks: []Check{
			{
				Name: "sqlite",
				CheckFn: func(ctx context.Context) error {
					return db.Ping()
				},
				RecoverFn: func(ctx context.Context) error {
					return nil // SQLite auto-recovers via WAL
				},
			},
			{
				Name: "listener",
				CheckFn: func(ctx context.Context) error {
					if node.IsOnline() && node.ListenAddr() == nil {
						return errNotListening
					}
					return nil
				},
			},
			{
				Name: "outbound",
				CheckFn: func(ctx context.Context) error {
					if node.IsOnline() && node.SeedCount() > 0 && node.OutboundCount() == 0 {
						return errNoOutbound
					}
					return nil
				},
				RecoverFn: func(ctx context.Context) error {
					return node.Refill()
				},
			},
		},
	}
}

// SetInterval overrides the check period. Call before Run.
func (c *Checker) SetInterval(d time.Duration) {
	if d > 0 {
		c.interval = d
	}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	// Run immediately on start
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
			if c.log != nil {
				c.log.Warnw("Health check failed", "check", check.Name, "error", err)
			}
			// Attempt recovery
			if check.RecoverFn != nil {
				metrics.HealthRecoveries.WithLabelValues(check.Name).Inc()
				if rerr := check.RecoverFn(ctx); rerr != nil && c.log != nil {
					c.log.Warnw("Recovery failed", "check", check.Name, "error", rerr)
				}
			}
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
