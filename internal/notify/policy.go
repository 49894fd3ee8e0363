package notify

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/config"
	"github.com/mpescimoro/wi-finder/internal/domain"
	"github.com/mpescimoro/wi-finder/internal/metrics"
)

// DecisionKind tags a policy outcome
type DecisionKind int

const (
	// Suppressed: quiet hours; nothing fires, panic included.
	Suppressed DecisionKind = iota
	// Panic: highest-precedence alert; ordinary channels do not fire.
	Panic
	// Notify: ordinary delivery to every enabled channel.
	Notify
)

// Decision is the single tagged outcome of the precedence rules, so the
// quiet-hours > panic > normal ordering is auditable in one place.
type Decision struct {
	Kind    DecisionKind
	Title   string // Notify
	Body    string // Notify
	Message string // Panic
	Repeats int    // Panic
}

// Policy routes presence changes to channels. It never mutates the
// registry; it is a pure consumer of changes the engine already committed.
type Policy struct {
	log     zerolog.Logger
	metrics *metrics.Metrics
	panicFn *PanicNotifier

	// deliverTimeout bounds each channel so a slow or unreachable one
	// cannot stall the caller.
	deliverTimeout time.Duration

	mu        sync.RWMutex
	notify    config.NotifyConfig
	panic     config.PanicConfig
	panicMsgs map[string]string
	channels  []Channel
}

// NewPolicy creates a notification policy from config
func NewPolicy(cfg *config.Config, channels []Channel, log zerolog.Logger, m *metrics.Metrics) *Policy {
	p := &Policy{
		log:            log,
		metrics:        m,
		panicFn:        NewPanicNotifier(os.Stdout),
		deliverTimeout: 10 * time.Second,
	}
	p.SetConfig(cfg, channels)
	return p
}

// SetConfig atomically swaps the policy configuration and active channels
// (config hot reload).
func (p *Policy) SetConfig(cfg *config.Config, channels []Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify = cfg.Notify
	p.panic = cfg.Panic
	p.panicMsgs = cfg.NormalizedPanicMessages()
	p.channels = channels
}

// Decide applies the precedence rules to one change at the given wall-clock
// time. It has no side effects.
func (p *Policy) Decide(change domain.PresenceChange, now time.Time) Decision {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.inQuietHours(now.Hour()) {
		return Decision{Kind: Suppressed}
	}

	if p.shouldPanic(change) {
		message := p.panic.Message
		if custom, ok := p.panicMsgs[change.Device.MAC]; ok {
			message = custom
		}
		return Decision{Kind: Panic, Message: message, Repeats: p.panic.SoundLoops}
	}

	title, body := composeMessage(change)
	return Decision{Kind: Notify, Title: title, Body: body}
}

// inQuietHours checks the [start, end) hour window; start > end wraps past
// midnight. Callers hold p.mu.
func (p *Policy) inQuietHours(hour int) bool {
	start, end := p.notify.QuietHoursStart, p.notify.QuietHoursEnd
	if start == nil || end == nil {
		return false
	}
	if *start <= *end {
		return *start <= hour && hour < *end
	}
	return hour >= *start || hour < *end
}

// shouldPanic checks the panic preconditions. Callers hold p.mu.
func (p *Policy) shouldPanic(change domain.PresenceChange) bool {
	if !p.panic.Enabled {
		return false
	}
	// Departures never panic
	if change.Kind != domain.ChangeNew && change.Kind != domain.ChangeArrived {
		return false
	}
	if p.panic.OnlyUnknown && change.Device.Name != "" {
		return false
	}
	return true
}

// composeMessage builds the ordinary notification text for a change
func composeMessage(change domain.PresenceChange) (title, body string) {
	d := change.Device
	switch change.Kind {
	case domain.ChangeNew:
		vendorInfo := ""
		if d.Vendor != "" {
			vendorInfo = fmt.Sprintf(" (%s)", d.Vendor)
		}
		return "New Device", fmt.Sprintf("Unknown device%s\nMAC: %s", vendorInfo, d.MAC)
	case domain.ChangeArrived:
		return "Arrival", fmt.Sprintf("%s is now home", d.DisplayName())
	default:
		return "Departure", fmt.Sprintf("%s has left", d.DisplayName())
	}
}

// Handle applies the decision for one change: nothing during quiet hours,
// the panic banner for panic, otherwise concurrent fan-out to every active
// channel. Each delivery is bounded by the per-channel timeout; failures
// are logged and counted, never returned.
func (p *Policy) Handle(ctx context.Context, change domain.PresenceChange) {
	decision := p.Decide(change, time.Now())

	switch decision.Kind {
	case Suppressed:
		p.metrics.ObserveSuppressed()
		p.log.Debug().Str("mac", change.Device.MAC).Str("kind", string(change.Kind)).
			Msg("change suppressed by quiet hours")

	case Panic:
		p.log.Info().Str("mac", change.Device.MAC).Msg("panic alert")
		p.panicFn.Panic(decision.Message, decision.Repeats, &change.Device)

	case Notify:
		p.deliverAll(ctx, decision, change)
	}
}

// deliverAll fans out to all channels concurrently and waits for them; the
// per-channel timeout bounds the total wait.
func (p *Policy) deliverAll(ctx context.Context, decision Decision, change domain.PresenceChange) {
	p.mu.RLock()
	channels := p.channels
	p.mu.RUnlock()

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()

			deliverCtx, cancel := context.WithTimeout(ctx, p.deliverTimeout)
			defer cancel()

			device := change.Device
			ok := ch.Deliver(deliverCtx, decision.Title, decision.Body, &device)
			p.metrics.ObserveDelivery(ch.Name(), ok)
			if !ok {
				p.log.Warn().Str("channel", ch.Name()).Str("mac", change.Device.MAC).
					Msg("notification delivery failed")
			}
		}(ch)
	}
	wg.Wait()
}

// BuildChannels constructs the active channel list from config. Channels
// with missing settings are skipped; an MQTT connection failure disables
// only that channel.
func BuildChannels(cfg *config.Config, log zerolog.Logger) []Channel {
	var channels []Channel

	if cfg.Notify.Desktop {
		channels = append(channels, NewDesktopChannel(log))
	}
	if cfg.Notify.Sound {
		channels = append(channels, NewSoundChannel(log))
	}
	if cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID != "" {
		channels = append(channels, NewTelegramChannel(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.ChatID, log))
	}
	if cfg.Notify.WebhookURL != "" {
		channels = append(channels, NewWebhookChannel(cfg.Notify.WebhookURL, log))
	}
	if cfg.Notify.MQTT.Broker != "" {
		mqttCh, err := NewMQTTChannel(cfg.Notify.MQTT, log)
		if err != nil {
			log.Warn().Err(err).Msg("mqtt channel disabled")
		} else {
			channels = append(channels, mqttCh)
		}
	}

	return channels
}

// CloseChannels releases channels that hold connections
func CloseChannels(channels []Channel) {
	for _, ch := range channels {
		if closer, ok := ch.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
