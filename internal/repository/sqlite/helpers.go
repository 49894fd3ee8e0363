package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// Timestamps are stored as RFC3339 strings so they survive round-trips
// through the TEXT affinity sqlite gives TIMESTAMP columns.
const timeLayout = time.RFC3339Nano

func timeToDB(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func timeFromDB(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// Older rows may carry second precision only
		t, err = time.Parse(time.RFC3339, s)
	}
	return t, err
}

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice reads one devices row into a domain.Device
func scanDevice(row rowScanner) (*domain.Device, error) {
	var (
		mac                 string
		name, vendor, group sql.NullString
		ip                  sql.NullString
		firstSeen, lastSeen sql.NullString
		isOnline            int
	)

	if err := row.Scan(&mac, &name, &vendor, &ip, &firstSeen, &lastSeen, &isOnline, &group); err != nil {
		return nil, err
	}

	device := &domain.Device{
		MAC:      mac,
		Name:     nullToString(name),
		Vendor:   nullToString(vendor),
		IP:       nullToString(ip),
		IsOnline: isOnline != 0,
		Group:    nullToString(group),
	}

	if firstSeen.Valid && firstSeen.String != "" {
		t, err := timeFromDB(firstSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parse first_seen: %w", err)
		}
		device.FirstSeen = &t
	}
	if lastSeen.Valid && lastSeen.String != "" {
		t, err := timeFromDB(lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_seen: %w", err)
		}
		device.LastSeen = &t
	}

	return device, nil
}
