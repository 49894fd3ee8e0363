// Package repository defines the persistence interface for the device
// registry and the append-only presence event log.
package repository

import (
	"context"
	"time"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// Registry is the single shared mutable resource of the system. All
// reconcile-time mutation goes through Upsert/UpsertWithEvent; user edits go
// through SetName/SetGroup and never touch scan-owned fields.
type Registry interface {
	// Read operations
	Get(ctx context.Context, mac string) (*domain.Device, error)
	ListAll(ctx context.Context) ([]domain.Device, error)
	ListOnline(ctx context.Context) ([]domain.Device, error)

	// Write operations. Upsert has partial-update semantics: sticky fields
	// (name, vendor, group, first_seen) are preserved when absent.
	Upsert(ctx context.Context, device *domain.Device) error
	SetName(ctx context.Context, mac, name string) error
	SetGroup(ctx context.Context, mac, group string) error
	SetAllOffline(ctx context.Context) error

	// Event log
	AppendEvent(ctx context.Context, mac string, kind domain.EventKind, ts time.Time) error
	// UpsertWithEvent applies a device update and its log entry as a single
	// atomic unit so a presence transition is never half-applied.
	UpsertWithEvent(ctx context.Context, device *domain.Device, kind domain.EventKind, ts time.Time) error
	ListEvents(ctx context.Context, mac string, since *time.Time, limit int) ([]domain.PresenceEvent, error)
	CountEventsSince(ctx context.Context, kind domain.EventKind, since time.Time) (int, error)

	// Close releases resources
	Close() error
}
