package domain

import "time"

// EventKind is the persisted presence event type.
type EventKind string

const (
	EventArrived EventKind = "arrived"
	EventLeft    EventKind = "left"
)

// PresenceEvent is an immutable, append-only log entry recording a
// device-level presence transition.
type PresenceEvent struct {
	ID         int64     `json:"id"`
	MAC        string    `json:"mac"`
	Kind       EventKind `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	DeviceName string    `json:"device_name,omitempty"`
}
