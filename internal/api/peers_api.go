package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tutu-network/peernet/internal/domain"
)

// ─── Node & Peers (/api/status, /api/peers) ─────────────────────────────────

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Status())
}

// --- GET /api/peers[?direction=inbound|outbound] ---

func (s *Server) handleListPeers(w http.ResponseWriter, r *http.Request) {
	dir, err := parseDirection(r.URL.Query().Get("direction"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	peers := make([]domain.PeerInfo, 0)
	for _, p := range s.node.Peers() {
		if dir == "" || p.Direction == dir {
			peers = append(peers, p)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"peers": peers,
		"count": len(peers),
	})
}

// --- GET /api/peers/{direction}/{id} ---

func (s *Server) handleGetPeer(w http.ResponseWriter, r *http.Request) {
	dir, id, ok := peerKey(w, r)
	if !ok {
		return
	}
	for _, p := range s.node.Peers() {
		if p.Direction == dir && p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeError(w, http.StatusNotFound, domain.ErrPeerNotFound.Error())
}

// --- DELETE /api/peers/{direction}/{id} ---

func (s *Server) handleDisconnectPeer(w http.ResponseWriter, r *http.Request) {
	dir, id, ok := peerKey(w, r)
	if !ok {
		return
	}
	if !s.node.Disconnect(dir, id) {
		writeError(w, http.StatusNotFound, domain.ErrPeerNotFound.Error())
		return
	}
	s.log.Infow("Peer disconnected via API", "direction", dir, "id", id)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"disconnected": id,
		"direction":    dir,
	})
}

// peerKey parses the {direction}/{id} route parameters, writing a 400 on
// failure.
func peerKey(w http.ResponseWriter, r *http.Request) (domain.Direction, uint64, bool) {
	dir, err := parseDirection(chi.URLParam(r, "direction"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", 0, false
	}
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return "", 0, false
	}
	return dir, id, true
}

func parseDirection(s string, allowEmpty bool) (domain.Direction, error) {
	switch domain.Direction(s) {
	case domain.Inbound, domain.Outbound:
		return domain.Direction(s), nil
	case "":
		if allowEmpty {
			return "", nil
		}
	}
	return "", fmt.Errorf("invalid direction %q (want inbound or outbound)", s)
}

// ─── Address Book (/api/addresses) ──────────────────────────────────────────

// --- GET /api/addresses[?direction=...&limit=N] ---

func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := parseDirection(q.Get("direction"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	addrs, err := s.book.ListAddresses(dir, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if addrs == nil {
		addrs = []domain.KnownAddress{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"addresses": addrs,
		"count":     len(addrs),
	})
}

// --- DELETE /api/addresses/{hostname} ---

func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	hostname, err := url.PathUnescape(chi.URLParam(r, "hostname"))
	if err != nil || hostname == "" {
		writeError(w, http.StatusBadRequest, "invalid hostname")
		return
	}

	if err := s.book.DeleteAddress(hostname); err != nil {
		if errors.Is(err, domain.ErrAddressNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"deleted": hostname,
	})
}
