package domain

import "time"

// ChangeKind classifies a per-cycle presence change.
type ChangeKind string

const (
	ChangeNew     ChangeKind = "new"
	ChangeArrived ChangeKind = "arrived"
	ChangeLeft    ChangeKind = "left"
)

// rank orders change kinds for deterministic reconcile output:
// new devices first, then re-arrivals, then departures.
func (k ChangeKind) rank() int {
	switch k {
	case ChangeNew:
		return 0
	case ChangeArrived:
		return 1
	default:
		return 2
	}
}

// Less reports whether k sorts before other.
func (k ChangeKind) Less(other ChangeKind) bool {
	return k.rank() < other.rank()
}

// PresenceChange is the engine's transient per-cycle output. It is consumed
// immediately by the notification policy and UI observers and is never
// persisted.
type PresenceChange struct {
	Device Device     `json:"device"`
	Kind   ChangeKind `json:"kind"`
}

// EngineState holds derived counters about the watcher. It is rebuilt from
// the registry and is never a source of truth.
type EngineState struct {
	ScanCount   int        `json:"scan_count"`
	OnlineCount int        `json:"online_count"`
	KnownCount  int        `json:"known_count"`
	LastScan    *time.Time `json:"last_scan,omitempty"`
}
