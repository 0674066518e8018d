package sqlite

import (
	"database/sql"
	"net"
	"strconv"
	"time"

	"github.com/tutu-network/peernet/internal/domain"
)

// ─── Address Book ───────────────────────────────────────────────────────────

const addressColumns = `hostname, host, port, services, direction, first_seen, last_seen, successes, failures`

// RecordAddress inserts an address or refreshes an existing one. Each call
// counts as one success; first_seen is kept from the original insert.
func (d *DB) RecordAddress(a domain.KnownAddress) error {
	hostname := a.Hostname
	if hostname == "" {
		hostname = net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
	}
	seen := a.LastSeen
	if seen.IsZero() {
		seen = time.Now()
	}

	_, err := d.db.Exec(
		`INSERT INTO addresses (`+addressColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0)
		 ON CONFLICT(hostname) DO UPDATE SET
			services=excluded.services,
			direction=excluded.direction,
			last_seen=excluded.last_seen,
			successes=addresses.successes + 1`,
		hostname, a.Host, int(a.Port), int64(a.Services), string(a.Direction),
		seen.Unix(), seen.Unix(),
	)
	return err
}

// RecordFailure counts a failed outbound attempt. Unknown hostnames are
// ignored: only addresses that were reached once are tracked.
func (d *DB) RecordFailure(hostname string) error {
	_, err := d.db.Exec(
		`UPDATE addresses SET failures = failures + 1 WHERE hostname = ?`,
		hostname,
	)
	return err
}

// GetAddress returns one address, or nil when absent.
func (d *DB) GetAddress(hostname string) (*domain.KnownAddress, error) {
	row := d.db.QueryRow(
		`SELECT `+addressColumns+` FROM addresses WHERE hostname = ?`, hostname,
	)
	return scanAddress(row)
}

// ListAddresses returns addresses ordered by last_seen descending.
func (d *DB) ListAddresses(dir domain.Direction, limit int) ([]domain.KnownAddress, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses`
	var args []any
	if dir != "" {
		query += ` WHERE direction = ?`
		args = append(args, string(dir))
	}
	query += ` ORDER BY last_seen DESC, hostname`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.KnownAddress
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// DeleteAddress removes an address record.
func (d *DB) DeleteAddress(hostname string) error {
	result, err := d.db.Exec(`DELETE FROM addresses WHERE hostname = ?`, hostname)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrAddressNotFound
	}
	return nil
}

// PruneAddresses drops addresses not seen since cutoff and returns how many
// were removed.
func (d *DB) PruneAddresses(cutoff time.Time) (int64, error) {
	result, err := d.db.Exec(`DELETE FROM addresses WHERE last_seen < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountAddresses returns the number of stored addresses.
func (d *DB) CountAddresses() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM addresses`).Scan(&n)
	return n, err
}

func scanAddress(s scanner) (*domain.KnownAddress, error) {
	var (
		a                   domain.KnownAddress
		port                int
		services            int64
		direction           string
		firstSeen, lastSeen int64
	)
	err := s.Scan(&a.Hostname, &a.Host, &port, &services, &direction,
		&firstSeen, &lastSeen, &a.Successes, &a.Failures)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	a.Port = uint16(port)
	a.Services = uint64(services)
	a.Direction = domain.Direction(direction)
	a.FirstSeen = unixOrZero(firstSeen)
	a.LastSeen = unixOrZero(lastSeen)
	return &a, nil
}
