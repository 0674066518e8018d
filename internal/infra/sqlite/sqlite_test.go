package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tutu-network/peernet/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func knownAddr(hostname, host string, port uint16, dir domain.Direction, seen time.Time) domain.KnownAddress {
	return domain.KnownAddress{
		Hostname:  hostname,
		Host:      host,
		Port:      port,
		Direction: dir,
		LastSeen:  seen,
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	// Check file exists
	if _, err := os.Stat(filepath.Join(dir, "state.db")); os.IsNotExist(err) {
		t.Error("state.db should exist")
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	_ = db.RecordAddress(knownAddr("10.0.0.1:65378", "10.0.0.1", 65378, domain.Outbound, time.Now()))
	db.Close()

	// Migrations are idempotent and data survives.
	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db.Close()
	n, err := db.CountAddresses()
	if err != nil || n != 1 {
		t.Errorf("CountAddresses() = %d, %v; want 1", n, err)
	}
}

// ─── Address Book ───────────────────────────────────────────────────────────

func TestRecordAddress_Insert(t *testing.T) {
	db := newTestDB(t)
	seen := time.Unix(1_700_000_000, 0)

	a := knownAddr("10.0.0.1:65378", "10.0.0.1", 65378, domain.Outbound, seen)
	a.Services = 1
	if err := db.RecordAddress(a); err != nil {
		t.Fatalf("RecordAddress() error: %v", err)
	}

	got, err := db.GetAddress("10.0.0.1:65378")
	if err != nil {
		t.Fatalf("GetAddress() error: %v", err)
	}
	if got == nil {
		t.Fatal("GetAddress() returned nil")
	}
	if got.Host != "10.0.0.1" || got.Port != 65378 || got.Services != 1 {
		t.Errorf("address = %+v", got)
	}
	if got.Direction != domain.Outbound {
		t.Errorf("Direction = %q, want outbound", got.Direction)
	}
	if got.Successes != 1 || got.Failures != 0 {
		t.Errorf("Successes=%d Failures=%d, want 1/0", got.Successes, got.Failures)
	}
	if !got.FirstSeen.Equal(seen) || !got.LastSeen.Equal(seen) {
		t.Errorf("FirstSeen=%v LastSeen=%v, want %v", got.FirstSeen, got.LastSeen, seen)
	}
}

func TestRecordAddress_Update(t *testing.T) {
	db := newTestDB(t)
	first := time.Unix(1_700_000_000, 0)
	later := first.Add(time.Hour)

	_ = db.RecordAddress(knownAddr("10.0.0.1:65378", "10.0.0.1", 65378, domain.Outbound, first))
	if err := db.RecordAddress(knownAddr("10.0.0.1:65378", "10.0.0.1", 65378, domain.Inbound, later)); err != nil {
		t.Fatalf("second RecordAddress() error: %v", err)
	}

	got, _ := db.GetAddress("10.0.0.1:65378")
	if got.Successes != 2 {
		t.Errorf("Successes = %d, want 2", got.Successes)
	}
	if !got.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen = %v, want %v (kept from insert)", got.FirstSeen, first)
	}
	if !got.LastSeen.Equal(later) || got.Direction != domain.Inbound {
		t.Errorf("LastSeen=%v Direction=%s, want refreshed", got.LastSeen, got.Direction)
	}
}

func TestRecordAddress_DerivesHostname(t *testing.T) {
	db := newTestDB(t)
	if err := db.RecordAddress(knownAddr("", "::1", 9000, domain.Inbound, time.Now())); err != nil {
		t.Fatalf("RecordAddress() error: %v", err)
	}
	got, _ := db.GetAddress("[::1]:9000")
	if got == nil {
		t.Fatal("hostname should be derived from host and port")
	}
}

func TestRecordFailure(t *testing.T) {
	db := newTestDB(t)
	_ = db.RecordAddress(knownAddr("10.0.0.1:65378", "10.0.0.1", 65378, domain.Outbound, time.Now()))

	for i := 0; i < 3; i++ {
		if err := db.RecordFailure("10.0.0.1:65378"); err != nil {
			t.Fatalf("RecordFailure() error: %v", err)
		}
	}
	// Unknown hostnames are ignored.
	if err := db.RecordFailure("10.9.9.9:1"); err != nil {
		t.Fatalf("RecordFailure(unknown) error: %v", err)
	}

	got, _ := db.GetAddress("10.0.0.1:65378")
	if got.Failures != 3 {
		t.Errorf("Failures = %d, want 3", got.Failures)
	}
	if n, _ := db.CountAddresses(); n != 1 {
		t.Errorf("CountAddresses() = %d, want 1", n)
	}
}

func TestGetAddress_NotFound(t *testing.T) {
	db := newTestDB(t)
	got, err := db.GetAddress("missing:1")
	if err != nil {
		t.Fatalf("GetAddress() error: %v", err)
	}
	if got != nil {
		t.Errorf("GetAddress(missing) = %+v, want nil", got)
	}
}

func TestListAddresses(t *testing.T) {
	db := newTestDB(t)
	base := time.Unix(1_700_000_000, 0)

	_ = db.RecordAddress(knownAddr("10.0.0.1:1", "10.0.0.1", 1, domain.Outbound, base))
	_ = db.RecordAddress(knownAddr("10.0.0.2:1", "10.0.0.2", 1, domain.Inbound, base.Add(time.Minute)))
	_ = db.RecordAddress(knownAddr("10.0.0.3:1", "10.0.0.3", 1, domain.Outbound, base.Add(2*time.Minute)))

	tests := []struct {
		name  string
		dir   domain.Direction
		limit int
		want  []string
	}{
		{"all newest first", "", 0, []string{"10.0.0.3:1", "10.0.0.2:1", "10.0.0.1:1"}},
		{"outbound only", domain.Outbound, 0, []string{"10.0.0.3:1", "10.0.0.1:1"}},
		{"inbound only", domain.Inbound, 0, []string{"10.0.0.2:1"}},
		{"limited", "", 2, []string{"10.0.0.3:1", "10.0.0.2:1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListAddresses(tt.dir, tt.limit)
			if err != nil {
				t.Fatalf("ListAddresses() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d addresses, want %d", len(got), len(tt.want))
			}
			for i, a := range got {
				if a.Hostname != tt.want[i] {
					t.Errorf("[%d] = %s, want %s", i, a.Hostname, tt.want[i])
				}
			}
		})
	}
}

func TestListAddresses_Empty(t *testing.T) {
	db := newTestDB(t)
	got, err := db.ListAddresses("", 0)
	if err != nil {
		t.Fatalf("ListAddresses() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty list, got %d", len(got))
	}
}

func TestDeleteAddress(t *testing.T) {
	db := newTestDB(t)
	_ = db.RecordAddress(knownAddr("10.0.0.1:1", "10.0.0.1", 1, domain.Outbound, time.Now()))

	if err := db.DeleteAddress("10.0.0.1:1"); err != nil {
		t.Fatalf("DeleteAddress() error: %v", err)
	}
	if got, _ := db.GetAddress("10.0.0.1:1"); got != nil {
		t.Error("address should be gone")
	}
}

func TestDeleteAddress_NotFound(t *testing.T) {
	db := newTestDB(t)
	if err := db.DeleteAddress("missing:1"); !errors.Is(err, domain.ErrAddressNotFound) {
		t.Errorf("DeleteAddress(missing) = %v, want ErrAddressNotFound", err)
	}
}

func TestPruneAddresses(t *testing.T) {
	db := newTestDB(t)
	now := time.Unix(1_700_000_000, 0)

	_ = db.RecordAddress(knownAddr("10.0.0.1:1", "10.0.0.1", 1, domain.Outbound, now.Add(-48*time.Hour)))
	_ = db.RecordAddress(knownAddr("10.0.0.2:1", "10.0.0.2", 1, domain.Outbound, now))

	n, err := db.PruneAddresses(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("PruneAddresses() error: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}
	if got, _ := db.GetAddress("10.0.0.2:1"); got == nil {
		t.Error("recent address should survive")
	}
}

// ─── Node Info ──────────────────────────────────────────────────────────────

func TestNodeInfo_SetAndGet(t *testing.T) {
	db := newTestDB(t)

	if err := db.SetNodeInfo("node_id", "abc123"); err != nil {
		t.Fatalf("SetNodeInfo() error: %v", err)
	}

	got, err := db.GetNodeInfo("node_id")
	if err != nil {
		t.Fatalf("GetNodeInfo() error: %v", err)
	}
	if got != "abc123" {
		t.Errorf("GetNodeInfo() = %q, want %q", got, "abc123")
	}
}

func TestNodeInfo_Upsert(t *testing.T) {
	db := newTestDB(t)

	if err := db.SetNodeInfo("key", "v1"); err != nil {
		t.Fatalf("first SetNodeInfo() error: %v", err)
	}
	if err := db.SetNodeInfo("key", "v2"); err != nil {
		t.Fatalf("second SetNodeInfo() error: %v", err)
	}

	got, err := db.GetNodeInfo("key")
	if err != nil {
		t.Fatalf("GetNodeInfo() error: %v", err)
	}
	if got != "v2" {
		t.Errorf("GetNodeInfo() = %q, want %q", got, "v2")
	}
}

func TestNodeInfo_NotFound(t *testing.T) {
	db := newTestDB(t)

	got, err := db.GetNodeInfo("missing")
	if err != nil {
		t.Fatalf("GetNodeInfo() error: %v", err)
	}
	if got != "" {
		t.Errorf("GetNodeInfo(missing) = %q, want empty", got)
	}
}

var _ domain.AddressBook = (*DB)(nil)
