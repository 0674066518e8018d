package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tutu-network/peernet/internal/domain"
	"github.com/tutu-network/peernet/internal/health"
	"github.com/tutu-network/peernet/internal/infra/network"
	"github.com/tutu-network/peernet/internal/infra/sqlite"
)

// fakeNode serves a fixed peer set.
type fakeNode struct {
	peers        []domain.PeerInfo
	disconnected []uint64
}

func (f *fakeNode) Status() network.NodeStatus {
	st := network.NodeStatus{NodeID: "node-test", Online: true, ListenAddr: "127.0.0.1:65378"}
	for _, p := range f.peers {
		if p.Direction == domain.Inbound {
			st.Inbound.Size++
			st.Inbound.Inbound++
		} else {
			st.Outbound.Size++
			st.Outbound.Outbound++
		}
	}
	return st
}

func (f *fakeNode) Peers() []domain.PeerInfo { return f.peers }

func (f *fakeNode) Disconnect(dir domain.Direction, id uint64) bool {
	for i, p := range f.peers {
		if p.Direction == dir && p.ID == id {
			f.peers = append(f.peers[:i], f.peers[i+1:]...)
			f.disconnected = append(f.disconnected, id)
			return true
		}
	}
	return false
}

type fakeHealth struct {
	healthy bool
}

func (f fakeHealth) IsHealthy() bool { return f.healthy }
func (f fakeHealth) Statuses() []health.Status {
	return []health.Status{{Name: "sqlite", Healthy: f.healthy, CheckedAt: time.Now()}}
}

func newTestNode() *fakeNode {
	return &fakeNode{peers: []domain.PeerInfo{
		{ID: 1, Hostname: "10.0.0.1:65378", Host: "10.0.0.1", Port: 65378, Direction: domain.Outbound, State: "open", Connected: true},
		{ID: 2, Hostname: "10.0.0.2:65378", Host: "10.0.0.2", Port: 65378, Direction: domain.Outbound, State: "connecting"},
		{ID: 1, Hostname: "10.0.0.9:40112", Host: "10.0.0.9", Port: 40112, Direction: domain.Inbound, State: "open", Connected: true},
	}}
}

func newTestServer(t *testing.T) (*Server, *fakeNode, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	node := newTestNode()
	return NewServer(node, db), node, db
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// ─── Health Check ───────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "GET", "/health")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]interface{}
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestAPI_Health_Degraded(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.SetHealth(fakeHealth{healthy: false})

	w := do(t, srv, "GET", "/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}

	var body struct {
		Status string          `json:"status"`
		Checks []health.Status `json:"checks"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.Status != "degraded" || len(body.Checks) != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestAPI_Version(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/version")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["version"] != Version {
		t.Errorf("version = %q, want %q", body["version"], Version)
	}
}

// ─── Status & Peers ─────────────────────────────────────────────────────────

func TestAPI_Status(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var st network.NodeStatus
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.NodeID != "node-test" || st.Inbound.Size != 1 || st.Outbound.Size != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestAPI_ListPeers(t *testing.T) {
	srv, _, _ := newTestServer(t)

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 3},
		{"?direction=outbound", http.StatusOK, 2},
		{"?direction=inbound", http.StatusOK, 1},
		{"?direction=sideways", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(t, srv, "GET", "/api/peers"+tt.query)
			if w.Code != tt.code {
				t.Fatalf("status = %d, want %d", w.Code, tt.code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var body struct {
				Peers []domain.PeerInfo `json:"peers"`
				Count int               `json:"count"`
			}
			json.NewDecoder(w.Body).Decode(&body)
			if body.Count != tt.count || len(body.Peers) != tt.count {
				t.Errorf("count = %d (%d peers), want %d", body.Count, len(body.Peers), tt.count)
			}
		})
	}
}

func TestAPI_GetPeer(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/peers/inbound/1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var p domain.PeerInfo
	json.NewDecoder(w.Body).Decode(&p)
	if p.Hostname != "10.0.0.9:40112" {
		t.Errorf("Hostname = %q, want the inbound peer", p.Hostname)
	}

	if w := do(t, srv, "GET", "/api/peers/outbound/42"); w.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", w.Code)
	}
	if w := do(t, srv, "GET", "/api/peers/outbound/abc"); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
	if w := do(t, srv, "GET", "/api/peers/any/1"); w.Code != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", w.Code)
	}
}

func TestAPI_DisconnectPeer(t *testing.T) {
	srv, node, _ := newTestServer(t)

	w := do(t, srv, "DELETE", "/api/peers/outbound/2")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(node.disconnected) != 1 || node.disconnected[0] != 2 {
		t.Errorf("disconnected = %v, want [2]", node.disconnected)
	}

	if w := do(t, srv, "DELETE", "/api/peers/outbound/2"); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

// ─── Address Book ───────────────────────────────────────────────────────────

func TestAPI_ListAddresses(t *testing.T) {
	srv, _, db := newTestServer(t)
	now := time.Now()
	_ = db.RecordAddress(domain.KnownAddress{Host: "10.0.0.1", Port: 65378, Direction: domain.Outbound, LastSeen: now})
	_ = db.RecordAddress(domain.KnownAddress{Host: "10.0.0.9", Port: 40112, Direction: domain.Inbound, LastSeen: now.Add(-time.Minute)})

	w := do(t, srv, "GET", "/api/addresses?direction=outbound")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Addresses []domain.KnownAddress `json:"addresses"`
		Count     int                   `json:"count"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.Count != 1 || body.Addresses[0].Hostname != "10.0.0.1:65378" {
		t.Errorf("body = %+v", body)
	}

	if w := do(t, srv, "GET", "/api/addresses?limit=-1"); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}
}

func TestAPI_ListAddresses_Empty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/addresses")
	if !strings.Contains(w.Body.String(), `"addresses":[]`) {
		t.Errorf("empty list should encode as [], got %s", w.Body.String())
	}
}

func TestAPI_DeleteAddress(t *testing.T) {
	srv, _, db := newTestServer(t)
	_ = db.RecordAddress(domain.KnownAddress{Host: "10.0.0.1", Port: 65378, Direction: domain.Outbound})

	if w := do(t, srv, "DELETE", "/api/addresses/10.0.0.1:65378"); w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if n, _ := db.CountAddresses(); n != 0 {
		t.Errorf("CountAddresses() = %d, want 0", n)
	}
	if w := do(t, srv, "DELETE", "/api/addresses/10.0.0.1:65378"); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestAPI_NoAddressBook(t *testing.T) {
	srv := NewServer(newTestNode(), nil)
	if w := do(t, srv, "GET", "/api/addresses"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without an address book", w.Code)
	}
}

// ─── Metrics & CORS ─────────────────────────────────────────────────────────

func TestAPI_Metrics(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if w := do(t, srv, "GET", "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("metrics disabled: status = %d, want 404", w.Code)
	}

	srv.EnableMetrics()
	w := do(t, srv, "GET", "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics enabled: status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output should include the default Go collectors")
	}
}

func TestAPI_CORS(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := do(t, srv, "OPTIONS", "/api/peers")
	if w.Code != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header should be set")
	}
}
