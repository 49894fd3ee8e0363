// Package engine reconciles scan snapshots against the device registry and
// turns them into presence transitions.
//
// A device's persisted is_online flag is the authoritative truth between
// scans. Absence from a single snapshot does not mean offline: the device
// stays online until it has been unseen for the configured TTL, so
// is_online=true does not imply "seen in the most recent scan".
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/domain"
	"github.com/mpescimoro/wi-finder/internal/metrics"
	"github.com/mpescimoro/wi-finder/internal/repository"
	"github.com/mpescimoro/wi-finder/internal/scanner"
)

// Engine converts successive snapshots into device-level transitions.
// Cycles are serialized: a reconciliation holds the engine for its full
// duration so two cycles can never interleave on the same MAC.
type Engine struct {
	mu       sync.Mutex
	registry repository.Registry
	metrics  *metrics.Metrics
	log      zerolog.Logger
	now      func() time.Time

	ttlMu sync.RWMutex
	ttl   time.Duration

	stateMu sync.RWMutex
	state   domain.EngineState
}

// New creates a presence engine backed by the given registry
func New(registry repository.Registry, ttl time.Duration, log zerolog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		registry: registry,
		ttl:      ttl,
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
}

// SetTTL updates the offline grace duration (config hot reload)
func (e *Engine) SetTTL(ttl time.Duration) {
	e.ttlMu.Lock()
	e.ttl = ttl
	e.ttlMu.Unlock()
}

// TTL returns the current offline grace duration
func (e *Engine) TTL() time.Duration {
	e.ttlMu.RLock()
	defer e.ttlMu.RUnlock()
	return e.ttl
}

// Reconcile applies one snapshot to the registry and returns the resulting
// presence changes, ordered new devices first, then re-arrivals, then
// departures, ascending MAC within each kind.
//
// Every transition is persisted (device flag and event log in one
// transaction) before it is reported. A device whose persistence fails is
// skipped this cycle; the next snapshot will retry it.
func (e *Engine) Reconcile(ctx context.Context, snap *scanner.Snapshot) ([]domain.PresenceChange, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	previouslyOnline, err := e.registry.ListOnline(ctx)
	if err != nil {
		return nil, fmt.Errorf("list online devices: %w", err)
	}
	onlineByMAC := make(map[string]domain.Device, len(previouslyOnline))
	for _, d := range previouslyOnline {
		onlineByMAC[d.MAC] = d
	}

	seen := make(map[string]bool)
	var changes []domain.PresenceChange

	for _, d := range scanner.Dedupe(snap.Devices) {
		seen[d.MAC] = true

		change, err := e.reconcileSighting(ctx, d, snap.ScanTime, onlineByMAC)
		if err != nil {
			e.log.Error().Str("mac", d.MAC).Err(err).Msg("failed to persist sighting, will retry next cycle")
			continue
		}
		if change != nil {
			changes = append(changes, *change)
		}
	}

	// Departures: previously-online devices absent from this snapshot go
	// offline only once the TTL has elapsed since they were last seen.
	now := e.now()
	ttl := e.TTL()
	for mac, device := range onlineByMAC {
		if seen[mac] {
			continue
		}
		if device.LastSeen == nil || now.Sub(*device.LastSeen) < ttl {
			continue
		}

		device.IsOnline = false
		if err := e.registry.UpsertWithEvent(ctx, &device, domain.EventLeft, now); err != nil {
			e.log.Error().Str("mac", mac).Err(err).Msg("failed to persist departure, will retry next cycle")
			continue
		}
		changes = append(changes, domain.PresenceChange{Device: device, Kind: domain.ChangeLeft})
	}

	sortChanges(changes)

	e.updateState(ctx, snap)
	for _, c := range changes {
		e.metrics.ObserveChange(string(c.Kind))
	}

	return changes, nil
}

// reconcileSighting handles one device present in the snapshot
func (e *Engine) reconcileSighting(ctx context.Context, d domain.Device, scanTime time.Time, onlineByMAC map[string]domain.Device) (*domain.PresenceChange, error) {
	existing, err := e.registry.Get(ctx, d.MAC)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	if existing == nil {
		// First sighting ever
		ts := scanTime
		d.FirstSeen = &ts
		d.LastSeen = &ts
		d.IsOnline = true
		if err := e.registry.UpsertWithEvent(ctx, &d, domain.EventArrived, scanTime); err != nil {
			return nil, err
		}
		return &domain.PresenceChange{Device: d, Kind: domain.ChangeNew}, nil
	}

	// Start from the stored device so the emitted change carries the sticky
	// fields; the upsert's COALESCE semantics protect them regardless.
	dev := *existing
	if d.Vendor != "" {
		dev.Vendor = d.Vendor
	}
	dev.Touch(d.IP, scanTime)

	if _, wasOnline := onlineByMAC[dev.MAC]; !wasOnline {
		if err := e.registry.UpsertWithEvent(ctx, &dev, domain.EventArrived, scanTime); err != nil {
			return nil, err
		}
		return &domain.PresenceChange{Device: dev, Kind: domain.ChangeArrived}, nil
	}

	// Still online: refresh last_seen/ip only, no event
	if err := e.registry.Upsert(ctx, &dev); err != nil {
		return nil, err
	}
	return nil, nil
}

// sortChanges orders output deterministically: kind, then ascending MAC
func sortChanges(changes []domain.PresenceChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].Kind != changes[j].Kind {
			return changes[i].Kind.Less(changes[j].Kind)
		}
		return changes[i].Device.MAC < changes[j].Device.MAC
	})
}

// updateState refreshes the derived counters after a cycle
func (e *Engine) updateState(ctx context.Context, snap *scanner.Snapshot) {
	online, err := e.registry.ListOnline(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to count online devices")
		return
	}
	all, err := e.registry.ListAll(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("failed to count known devices")
		return
	}

	ts := snap.ScanTime
	e.stateMu.Lock()
	e.state.ScanCount++
	e.state.OnlineCount = len(online)
	e.state.KnownCount = len(all)
	e.state.LastScan = &ts
	e.stateMu.Unlock()

	e.metrics.ObserveScan(snap.Duration, len(online), len(all))
}

// State returns a copy of the derived counters
func (e *Engine) State() domain.EngineState {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// WhoIsHome returns currently online devices, named devices first
func (e *Engine) WhoIsHome(ctx context.Context) ([]domain.Device, error) {
	online, err := e.registry.ListOnline(ctx)
	if err != nil {
		return nil, err
	}

	var named, unnamed []domain.Device
	for _, d := range online {
		if d.Name != "" {
			named = append(named, d)
		} else {
			unnamed = append(unnamed, d)
		}
	}
	return append(named, unnamed...), nil
}

// Summary renders a human-readable "who is home" line
func (e *Engine) Summary(ctx context.Context) (string, error) {
	online, err := e.WhoIsHome(ctx)
	if err != nil {
		return "", err
	}

	if len(online) == 0 {
		return "Nobody's home", nil
	}

	var names []string
	for _, d := range online {
		if d.Name != "" {
			names = append(names, d.Name)
		}
	}
	unnamedCount := len(online) - len(names)

	var parts []string
	if len(names) > 0 {
		parts = append(parts, fmt.Sprintf("Home: %s", strings.Join(names, ", ")))
	}
	if unnamedCount > 0 {
		parts = append(parts, fmt.Sprintf("+ %d other device(s)", unnamedCount))
	}

	return strings.Join(parts, "\n"), nil
}
