// Package api provides the HTTP status API for a running peernet node.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tutu-network/peernet/internal/domain"
	"github.com/tutu-network/peernet/internal/health"
	"github.com/tutu-network/peernet/internal/infra/network"
	"github.com/tutu-network/peernet/internal/logging"
)

// Version is reported by /api/version. The CLI overrides it at startup.
var Version = "dev"

// NodeView is the part of a node the API reads and controls. Satisfied by
// *network.Node.
type NodeView interface {
	domain.PeerDirectory
	Status() network.NodeStatus
}

// HealthView is satisfied by *health.Checker.
type HealthView interface {
	Statuses() []health.Status
	IsHealthy() bool
}

// Server is the peernet HTTP API server.
type Server struct {
	node           NodeView
	book           domain.AddressBook
	health         HealthView
	metricsEnabled bool
	log            *zap.SugaredLogger
}

// NewServer creates a new API server.
func NewServer(node NodeView, book domain.AddressBook) *Server {
	return &Server{node: node, book: book, log: logging.Named("api")}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches the health checker reported by /health.
func (s *Server) SetHealth(h HealthView) { s.health = h }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{
				"version": Version,
			})
		})

		r.Get("/peers", s.handleListPeers)
		r.Get("/peers/{direction}/{id}", s.handleGetPeer)
		r.Delete("/peers/{direction}/{id}", s.handleDisconnectPeer)

		if s.book != nil {
			r.Get("/addresses", s.handleListAddresses)
			r.Delete("/addresses/{hostname}", s.handleDeleteAddress)
		}
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
		return
	}

	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for local dashboards.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
