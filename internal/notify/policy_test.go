package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/config"
	"github.com/mpescimoro/wi-finder/internal/domain"
)

type fakeChannel struct {
	mu         sync.Mutex
	name       string
	ok         bool
	deliveries []string
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Deliver(ctx context.Context, title, body string, device *domain.Device) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries = append(c.deliveries, title)
	return c.ok
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deliveries)
}

func atHour(hour int) time.Time {
	return time.Date(2026, 8, 23, hour, 30, 0, 0, time.UTC)
}

func arrivedChange(mac, name string) domain.PresenceChange {
	return domain.PresenceChange{
		Device: domain.Device{MAC: mac, Name: name},
		Kind:   domain.ChangeArrived,
	}
}

func newTestPolicy(t *testing.T, cfg *config.Config, channels ...Channel) *Policy {
	t.Helper()
	return NewPolicy(cfg, channels, zerolog.Nop(), nil)
}

func TestDecideQuietHours(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		hour       int
		suppressed bool
	}{
		{"inside plain window", 1, 6, 3, true},
		{"before plain window", 1, 6, 0, false},
		{"end is exclusive", 1, 6, 6, false},
		{"start is inclusive", 1, 6, 1, true},
		{"wraparound suppresses early morning", 23, 7, 2, true},
		{"wraparound suppresses late night", 22, 6, 23, true},
		{"wraparound passes midday", 22, 6, 10, false},
		{"wraparound end exclusive", 23, 7, 7, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			start, end := tt.start, tt.end
			cfg.Notify.QuietHoursStart = &start
			cfg.Notify.QuietHoursEnd = &end

			p := newTestPolicy(t, cfg)
			d := p.Decide(arrivedChange("AA:BB:CC:DD:EE:FF", "alice-phone"), atHour(tt.hour))

			got := d.Kind == Suppressed
			if got != tt.suppressed {
				t.Errorf("hour %d with window %d-%d: suppressed = %v, want %v",
					tt.hour, tt.start, tt.end, got, tt.suppressed)
			}
		})
	}
}

func TestDecideQuietHoursBeatPanic(t *testing.T) {
	cfg := config.DefaultConfig()
	start, end := 0, 23
	cfg.Notify.QuietHoursStart = &start
	cfg.Notify.QuietHoursEnd = &end
	cfg.Panic.Enabled = true
	cfg.Panic.OnlyUnknown = false

	p := newTestPolicy(t, cfg)
	d := p.Decide(arrivedChange("AA:BB:CC:DD:EE:FF", ""), atHour(12))
	if d.Kind != Suppressed {
		t.Errorf("decision = %v, want quiet hours to suppress panic too", d.Kind)
	}
}

func TestDecidePanic(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		change domain.PresenceChange
		want   DecisionKind
	}{
		{
			"panic on unknown arrival",
			func(c *config.Config) { c.Panic.Enabled = true; c.Panic.OnlyUnknown = true },
			arrivedChange("AA:BB:CC:DD:EE:FF", ""),
			Panic,
		},
		{
			"only_unknown spares named devices",
			func(c *config.Config) { c.Panic.Enabled = true; c.Panic.OnlyUnknown = true },
			arrivedChange("AA:BB:CC:DD:EE:FF", "alice-phone"),
			Notify,
		},
		{
			"panic on named arrival when only_unknown off",
			func(c *config.Config) { c.Panic.Enabled = true; c.Panic.OnlyUnknown = false },
			arrivedChange("AA:BB:CC:DD:EE:FF", "alice-phone"),
			Panic,
		},
		{
			"departures never panic",
			func(c *config.Config) { c.Panic.Enabled = true; c.Panic.OnlyUnknown = false },
			domain.PresenceChange{Device: domain.Device{MAC: "AA:BB:CC:DD:EE:FF"}, Kind: domain.ChangeLeft},
			Notify,
		},
		{
			"disabled panic notifies",
			func(c *config.Config) { c.Panic.Enabled = false },
			arrivedChange("AA:BB:CC:DD:EE:FF", ""),
			Notify,
		},
		{
			"new device panics",
			func(c *config.Config) { c.Panic.Enabled = true; c.Panic.OnlyUnknown = true },
			domain.PresenceChange{Device: domain.Device{MAC: "AA:BB:CC:DD:EE:FF"}, Kind: domain.ChangeNew},
			Panic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			p := newTestPolicy(t, cfg)
			d := p.Decide(tt.change, atHour(12))
			if d.Kind != tt.want {
				t.Errorf("decision = %v, want %v", d.Kind, tt.want)
			}
		})
	}
}

func TestDecidePanicMessageOverride(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Panic.Enabled = true
	cfg.Panic.OnlyUnknown = false
	cfg.Panic.SoundLoops = 3
	cfg.Panic.CustomMessages = map[string]string{"aa:bb:cc:dd:ee:ff": "boss incoming"}

	p := newTestPolicy(t, cfg)

	d := p.Decide(arrivedChange("AA:BB:CC:DD:EE:FF", "boss"), atHour(12))
	if d.Kind != Panic || d.Message != "boss incoming" {
		t.Errorf("decision = %+v, want per-MAC override", d)
	}
	if d.Repeats != 3 {
		t.Errorf("repeats = %d, want 3", d.Repeats)
	}

	d = p.Decide(arrivedChange("AA:BB:CC:DD:EE:01", "other"), atHour(12))
	if d.Kind != Panic || d.Message != cfg.Panic.Message {
		t.Errorf("decision = %+v, want default message for other MAC", d)
	}
}

func TestDecideIsPureAndDeterministic(t *testing.T) {
	cfg := config.DefaultConfig()
	p := newTestPolicy(t, cfg)
	change := arrivedChange("AA:BB:CC:DD:EE:FF", "alice-phone")
	now := atHour(12)

	first := p.Decide(change, now)
	for i := 0; i < 5; i++ {
		if got := p.Decide(change, now); got != first {
			t.Fatalf("decision varied across calls: %+v vs %+v", got, first)
		}
	}
	if first.Kind != Notify || first.Title != "Arrival" || !strings.Contains(first.Body, "alice-phone") {
		t.Errorf("unexpected decision: %+v", first)
	}
}

func TestComposeMessage(t *testing.T) {
	tests := []struct {
		name      string
		change    domain.PresenceChange
		wantTitle string
		wantIn    string
	}{
		{
			"new with vendor",
			domain.PresenceChange{Device: domain.Device{MAC: "AA:BB:CC:DD:EE:FF", Vendor: "Apple"}, Kind: domain.ChangeNew},
			"New Device", "Unknown device (Apple)",
		},
		{
			"new without vendor",
			domain.PresenceChange{Device: domain.Device{MAC: "AA:BB:CC:DD:EE:FF"}, Kind: domain.ChangeNew},
			"New Device", "MAC: AA:BB:CC:DD:EE:FF",
		},
		{
			"arrival",
			arrivedChange("AA:BB:CC:DD:EE:FF", "alice-phone"),
			"Arrival", "alice-phone is now home",
		},
		{
			"departure",
			domain.PresenceChange{Device: domain.Device{MAC: "AA:BB:CC:DD:EE:FF", Name: "bob-laptop"}, Kind: domain.ChangeLeft},
			"Departure", "bob-laptop has left",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := composeMessage(tt.change)
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if !strings.Contains(body, tt.wantIn) {
				t.Errorf("body = %q, want it to contain %q", body, tt.wantIn)
			}
		})
	}
}

func TestHandleFansOutToAllChannels(t *testing.T) {
	cfg := config.DefaultConfig()
	a := &fakeChannel{name: "a", ok: true}
	b := &fakeChannel{name: "b", ok: false}

	p := newTestPolicy(t, cfg, a, b)
	p.Handle(context.Background(), arrivedChange("AA:BB:CC:DD:EE:FF", "alice-phone"))

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("deliveries a=%d b=%d, want 1 each (failures don't stop fan-out)", a.count(), b.count())
	}
}

func TestHandleSuppressedSkipsChannels(t *testing.T) {
	cfg := config.DefaultConfig()
	// Window around the current hour so Handle's wall clock lands inside it
	start, end := time.Now().Hour(), (time.Now().Hour()+1)%24
	cfg.Notify.QuietHoursStart = &start
	cfg.Notify.QuietHoursEnd = &end

	a := &fakeChannel{name: "a", ok: true}
	p := newTestPolicy(t, cfg, a)
	p.Handle(context.Background(), arrivedChange("AA:BB:CC:DD:EE:FF", "alice-phone"))

	if a.count() != 0 {
		t.Errorf("deliveries = %d, want none during quiet hours", a.count())
	}
}

func TestSetConfigSwapsChannels(t *testing.T) {
	cfg := config.DefaultConfig()
	old := &fakeChannel{name: "old", ok: true}
	p := newTestPolicy(t, cfg, old)

	replacement := &fakeChannel{name: "new", ok: true}
	p.SetConfig(cfg, []Channel{replacement})

	p.Handle(context.Background(), arrivedChange("AA:BB:CC:DD:EE:FF", "alice-phone"))

	if old.count() != 0 {
		t.Errorf("old channel received %d deliveries after swap", old.count())
	}
	if replacement.count() != 1 {
		t.Errorf("new channel received %d deliveries, want 1", replacement.count())
	}
}
