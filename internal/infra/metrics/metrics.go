// Package metrics provides Prometheus metrics for peernet: peer counts,
// dial outcomes, refill activity, inbound rejections, and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Peers ──────────────────────────────────────────────────────────────────

// Peers tracks resident peers per direction.
var Peers = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "peernet",
	Name:      "peers",
	Help:      "Number of peers in the registry by direction.",
}, []string{"direction"})

// PeerCloses counts peers removed from the registry.
var PeerCloses = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peernet",
	Name:      "peer_closes_total",
	Help:      "Total peers closed by direction and whether they were connected.",
}, []string{"direction", "connected"})

// PeerErrors counts error signals from connected peers.
var PeerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peernet",
	Name:      "peer_errors_total",
	Help:      "Total peer error signals by direction.",
}, []string{"direction"})

// BytesReceived counts raw bytes read from peers.
var BytesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peernet",
	Name:      "bytes_received_total",
	Help:      "Total raw bytes received from peers.",
}, []string{"direction"})

// ─── Outbound ───────────────────────────────────────────────────────────────

// Dials counts outbound connection attempts by result (connected, failed, timeout).
var Dials = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peernet",
	Name:      "dials_total",
	Help:      "Total outbound dial attempts by result.",
}, []string{"result"})

// ConnectLatency tracks time from dial to transport connect.
var ConnectLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "peernet",
	Name:      "connect_latency_seconds",
	Help:      "Outbound connect latency in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
})

// RefillPasses counts refill passes that found free outbound slots.
var RefillPasses = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "peernet",
	Name:      "refill_passes_total",
	Help:      "Total outbound refill passes that dialed.",
})

// ─── Inbound ────────────────────────────────────────────────────────────────

// InboundRejected counts connections closed at the listener cap.
var InboundRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "peernet",
	Name:      "inbound_rejected_total",
	Help:      "Total inbound connections rejected at the connection cap.",
})

// InboundDiscarded counts accepted sockets dropped before registration.
var InboundDiscarded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "peernet",
	Name:      "inbound_discarded_total",
	Help:      "Total inbound sockets discarded because the remote had already gone.",
})

// ─── Registry ───────────────────────────────────────────────────────────────

// InvariantViolations counts aborted registry operations.
var InvariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peernet",
	Name:      "invariant_violations_total",
	Help:      "Total peer list invariant violations by operation.",
}, []string{"op"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "peernet",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "peernet",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
