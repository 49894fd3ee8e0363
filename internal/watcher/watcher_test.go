package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/config"
	"github.com/mpescimoro/wi-finder/internal/domain"
	"github.com/mpescimoro/wi-finder/internal/engine"
	"github.com/mpescimoro/wi-finder/internal/notify"
	"github.com/mpescimoro/wi-finder/internal/repository/sqlite"
	"github.com/mpescimoro/wi-finder/internal/scanner"
)

type fakeSource struct {
	mu    sync.Mutex
	snaps []*scanner.Snapshot
	err   error
	calls int
}

func (s *fakeSource) Scan(ctx context.Context) (*scanner.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	snap := s.snaps[0]
	if len(s.snaps) > 1 {
		s.snaps = s.snaps[1:]
	}
	return snap, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []domain.PresenceChange
}

func (r *changeRecorder) record(c domain.PresenceChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) all() []domain.PresenceChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PresenceChange(nil), r.changes...)
}

func snapshotOf(macs ...string) *scanner.Snapshot {
	ts := time.Now()
	var devices []domain.Device
	for _, mac := range macs {
		lastSeen := ts
		devices = append(devices, domain.Device{MAC: mac, LastSeen: &lastSeen, IsOnline: true})
	}
	return &scanner.Snapshot{Devices: devices, ScanTime: ts, Duration: time.Second}
}

func newTestWatcher(t *testing.T, source scanner.Source) (*Watcher, *sqlite.Repository, *changeRecorder) {
	t.Helper()

	repo, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})

	log := zerolog.Nop()
	eng := engine.New(repo, 3*time.Minute, log, nil)
	policy := notify.NewPolicy(config.DefaultConfig(), nil, log, nil)

	rec := &changeRecorder{}
	w := New(source, eng, policy, nil, 10*time.Millisecond, log, nil).WithObserver(rec.record)
	return w, repo, rec
}

func TestCyclePersistsAndObserves(t *testing.T) {
	source := &fakeSource{snaps: []*scanner.Snapshot{snapshotOf("AA:BB:CC:DD:EE:01")}}
	w, repo, rec := newTestWatcher(t, source)

	w.cycle(context.Background(), true)
	w.dispatchWG.Wait()

	device, err := repo.Get(context.Background(), "AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatal(err)
	}
	if device == nil || !device.IsOnline {
		t.Fatal("expected device persisted online")
	}

	changes := rec.all()
	if len(changes) != 1 || changes[0].Kind != domain.ChangeNew {
		t.Errorf("observed changes = %v, want one new", changes)
	}
}

func TestCycleScanFailureLeavesRegistryUntouched(t *testing.T) {
	source := &fakeSource{snaps: []*scanner.Snapshot{snapshotOf("AA:BB:CC:DD:EE:01")}}
	w, repo, _ := newTestWatcher(t, source)

	w.cycle(context.Background(), true)
	w.dispatchWG.Wait()

	// Later scans fail; the device must stay online no matter how long
	source.mu.Lock()
	source.err = errors.New("nmap exploded")
	source.mu.Unlock()

	for i := 0; i < 3; i++ {
		w.cycle(context.Background(), true)
	}
	w.dispatchWG.Wait()

	device, err := repo.Get(context.Background(), "AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatal(err)
	}
	if !device.IsOnline {
		t.Error("failed scans must not mark devices offline")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	source := &fakeSource{snaps: []*scanner.Snapshot{snapshotOf()}}
	w, _, _ := newTestWatcher(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Let a few ticks pass, then cancel
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	if source.callCount() < 2 {
		t.Errorf("got %d scans, want at least the initial pass plus one tick", source.callCount())
	}
}

func TestSetInterval(t *testing.T) {
	source := &fakeSource{snaps: []*scanner.Snapshot{snapshotOf()}}
	w, _, _ := newTestWatcher(t, source)

	if w.Interval() != 10*time.Millisecond {
		t.Errorf("interval = %s", w.Interval())
	}
	w.SetInterval(time.Minute)
	if w.Interval() != time.Minute {
		t.Errorf("interval = %s after update", w.Interval())
	}
}
