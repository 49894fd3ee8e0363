// Package watcher runs the scan loop: scan, reconcile, dispatch, repeat.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/domain"
	"github.com/mpescimoro/wi-finder/internal/engine"
	"github.com/mpescimoro/wi-finder/internal/hub"
	"github.com/mpescimoro/wi-finder/internal/metrics"
	"github.com/mpescimoro/wi-finder/internal/notify"
	"github.com/mpescimoro/wi-finder/internal/scanner"
)

// Watcher drives periodic scans and fans the resulting presence changes out
// to the notification policy and the SSE hub.
type Watcher struct {
	log     zerolog.Logger
	source  scanner.Source
	engine  *engine.Engine
	policy  *notify.Policy
	hub     *hub.Hub
	metrics *metrics.Metrics

	intervalMu sync.RWMutex
	interval   time.Duration

	// observer, when set, sees every change after it is persisted.
	observer func(domain.PresenceChange)

	// dispatchWG tracks in-flight notification dispatch so shutdown can
	// wait for it.
	dispatchWG sync.WaitGroup
}

// New creates a watcher. hub may be nil when the web dashboard is disabled.
func New(source scanner.Source, eng *engine.Engine, policy *notify.Policy, h *hub.Hub, interval time.Duration, log zerolog.Logger, m *metrics.Metrics) *Watcher {
	return &Watcher{
		log:      log,
		source:   source,
		engine:   eng,
		policy:   policy,
		hub:      h,
		metrics:  m,
		interval: interval,
	}
}

// WithObserver registers a callback invoked for every presence change,
// on the loop goroutine, before notification dispatch.
func (w *Watcher) WithObserver(fn func(domain.PresenceChange)) *Watcher {
	w.observer = fn
	return w
}

// SetInterval updates the scan interval (config hot reload). The new value
// takes effect after the current tick fires.
func (w *Watcher) SetInterval(interval time.Duration) {
	w.intervalMu.Lock()
	w.interval = interval
	w.intervalMu.Unlock()
}

// Interval returns the current scan interval
func (w *Watcher) Interval() time.Duration {
	w.intervalMu.RLock()
	defer w.intervalMu.RUnlock()
	return w.interval
}

// Run blocks, scanning until ctx is cancelled. The first cycle seeds the
// registry silently: everything found is persisted but nothing is
// announced, so a restart does not re-notify the whole household.
func (w *Watcher) Run(ctx context.Context) {
	w.log.Info().Dur("interval", w.Interval()).Msg("starting watch loop")

	w.cycle(ctx, false)

	timer := time.NewTimer(w.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("watch loop stopping")
			w.dispatchWG.Wait()
			return

		case <-timer.C:
			w.cycle(ctx, true)
			timer.Reset(w.Interval())
		}
	}
}

// cycle runs one scan and reconciliation. A scanner failure skips the
// cycle entirely; the registry is not touched and no departures are
// inferred from a failed scan.
func (w *Watcher) cycle(ctx context.Context, dispatch bool) {
	snap, err := w.source.Scan(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.metrics.ObserveScanFailure()
		w.log.Warn().Err(err).Msg("scan failed, skipping cycle")
		return
	}

	changes, err := w.engine.Reconcile(ctx, snap)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciliation failed")
		return
	}

	w.log.Debug().
		Int("hosts", len(snap.Devices)).
		Int("changes", len(changes)).
		Dur("duration", snap.Duration).
		Msg("cycle complete")

	if len(changes) == 0 {
		return
	}

	for _, c := range changes {
		if w.hub != nil {
			w.hub.Broadcast(c)
		}
		if w.observer != nil {
			w.observer(c)
		}
	}

	if !dispatch {
		w.log.Info().Int("devices", len(changes)).Msg("initial scan seeded registry")
		return
	}

	// Dispatch off the loop goroutine so a slow channel never delays the
	// next scan.
	w.dispatchWG.Add(1)
	go func(changes []domain.PresenceChange) {
		defer w.dispatchWG.Done()
		for _, c := range changes {
			w.policy.Handle(ctx, c)
		}
	}(changes)
}
