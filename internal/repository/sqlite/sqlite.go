package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// Repository implements repository.Registry using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time keeps the upsert+event transaction simple.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	PRAGMA journal_mode = WAL;
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS devices (
		mac TEXT PRIMARY KEY,
		name TEXT,
		vendor TEXT,
		ip TEXT,
		first_seen TIMESTAMP,
		last_seen TIMESTAMP,
		is_online INTEGER NOT NULL DEFAULT 0,
		grp TEXT
	);

	CREATE TABLE IF NOT EXISTS presence_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		mac TEXT NOT NULL,
		kind TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (mac) REFERENCES devices(mac)
	);

	CREATE INDEX IF NOT EXISTS idx_events_mac ON presence_events(mac);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON presence_events(timestamp);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Get retrieves a single device by MAC address, nil if unknown
func (r *Repository) Get(ctx context.Context, mac string) (*domain.Device, error) {
	norm, err := domain.NormalizeMAC(mac)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT mac, name, vendor, ip, first_seen, last_seen, is_online, grp
		FROM devices WHERE mac = ?
	`, norm)

	device, err := scanDevice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return device, nil
}

// ListAll returns every known device, most recently seen first
func (r *Repository) ListAll(ctx context.Context) ([]domain.Device, error) {
	return r.queryDevices(ctx, `
		SELECT mac, name, vendor, ip, first_seen, last_seen, is_online, grp
		FROM devices ORDER BY last_seen DESC
	`)
}

// ListOnline returns all currently online devices
func (r *Repository) ListOnline(ctx context.Context) ([]domain.Device, error) {
	return r.queryDevices(ctx, `
		SELECT mac, name, vendor, ip, first_seen, last_seen, is_online, grp
		FROM devices WHERE is_online = 1 ORDER BY name, mac
	`)
}

func (r *Repository) queryDevices(ctx context.Context, query string, args ...any) ([]domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []domain.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}
	return devices, nil
}

// Upsert inserts or updates a device. Sticky fields (name, vendor, group,
// first_seen) are only written when the incoming value is non-empty; the
// scan-owned fields (ip, last_seen, is_online) are always overwritten.
func (r *Repository) Upsert(ctx context.Context, device *domain.Device) error {
	return r.upsertTx(ctx, r.db, device)
}

// execer covers *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) upsertTx(ctx context.Context, ex execer, device *domain.Device) error {
	norm, err := domain.NormalizeMAC(device.MAC)
	if err != nil {
		return err
	}

	now := time.Now()
	firstSeen := device.FirstSeen
	if firstSeen == nil {
		firstSeen = &now
	}
	lastSeen := device.LastSeen
	if lastSeen == nil {
		lastSeen = &now
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO devices (mac, name, vendor, ip, first_seen, last_seen, is_online, grp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mac) DO UPDATE SET
			name = COALESCE(excluded.name, devices.name),
			vendor = COALESCE(excluded.vendor, devices.vendor),
			ip = excluded.ip,
			last_seen = excluded.last_seen,
			is_online = excluded.is_online,
			grp = COALESCE(excluded.grp, devices.grp)
	`, norm, stringToNull(device.Name), stringToNull(device.Vendor), device.IP,
		timeToDB(*firstSeen), timeToDB(*lastSeen), boolToInt(device.IsOnline),
		stringToNull(device.Group))

	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// SetName assigns a friendly name. User edits own this field; reconciliation
// never clears it.
func (r *Repository) SetName(ctx context.Context, mac, name string) error {
	return r.setField(ctx, mac, "name", name)
}

// SetGroup assigns a group label
func (r *Repository) SetGroup(ctx context.Context, mac, group string) error {
	return r.setField(ctx, mac, "grp", group)
}

func (r *Repository) setField(ctx context.Context, mac, column, value string) error {
	norm, err := domain.NormalizeMAC(mac)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE devices SET %s = ? WHERE mac = ?`, column),
		stringToNull(value), norm)
	if err != nil {
		return fmt.Errorf("failed to update device %s: %w", column, err)
	}
	return nil
}

// SetAllOffline marks every device offline
func (r *Repository) SetAllOffline(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `UPDATE devices SET is_online = 0`)
	if err != nil {
		return fmt.Errorf("failed to mark devices offline: %w", err)
	}
	return nil
}

// AppendEvent records a presence event
func (r *Repository) AppendEvent(ctx context.Context, mac string, kind domain.EventKind, ts time.Time) error {
	return r.appendEventTx(ctx, r.db, mac, kind, ts)
}

func (r *Repository) appendEventTx(ctx context.Context, ex execer, mac string, kind domain.EventKind, ts time.Time) error {
	norm, err := domain.NormalizeMAC(mac)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO presence_events (mac, kind, timestamp) VALUES (?, ?, ?)
	`, norm, string(kind), timeToDB(ts))
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// UpsertWithEvent applies a device update and its presence event in one
// transaction. Either both commit or neither does.
func (r *Repository) UpsertWithEvent(ctx context.Context, device *domain.Device, kind domain.EventKind, ts time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.upsertTx(ctx, tx, device); err != nil {
		return err
	}
	if err := r.appendEventTx(ctx, tx, device.MAC, kind, ts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListEvents returns presence history newest-first, optionally filtered by
// MAC and a lower timestamp bound.
func (r *Repository) ListEvents(ctx context.Context, mac string, since *time.Time, limit int) ([]domain.PresenceEvent, error) {
	query := `
		SELECT e.id, e.mac, e.kind, e.timestamp, d.name
		FROM presence_events e
		LEFT JOIN devices d ON e.mac = d.mac
		WHERE 1=1
	`
	var params []any

	if mac != "" {
		norm, err := domain.NormalizeMAC(mac)
		if err != nil {
			return nil, err
		}
		query += " AND e.mac = ?"
		params = append(params, norm)
	}
	if since != nil {
		query += " AND e.timestamp >= ?"
		params = append(params, timeToDB(*since))
	}

	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY e.timestamp DESC, e.id DESC LIMIT ?"
	params = append(params, limit)

	rows, err := r.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.PresenceEvent
	for rows.Next() {
		var (
			ev   domain.PresenceEvent
			kind string
			ts   string
			name sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.MAC, &kind, &ts, &name); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		ev.Timestamp, err = timeFromDB(ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse event timestamp: %w", err)
		}
		ev.DeviceName = nullToString(name)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// CountEventsSince counts events of one kind at or after the given time
func (r *Repository) CountEventsSince(ctx context.Context, kind domain.EventKind, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM presence_events WHERE kind = ? AND timestamp >= ?
	`, string(kind), timeToDB(since)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
