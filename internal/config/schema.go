package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int            `yaml:"version"`
	Network   string         `yaml:"network"` // CIDR to scan; empty = autodetect
	Interval  Duration       `yaml:"interval"`
	DeviceTTL Duration       `yaml:"device_ttl"`
	Database  DatabaseConfig `yaml:"database"`
	Web       WebConfig      `yaml:"web"`
	Notify    NotifyConfig   `yaml:"notify"`
	Panic     PanicConfig    `yaml:"panic"`
	LogLevel  string         `yaml:"log_level"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WebConfig holds dashboard API settings
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// NotifyConfig holds per-channel enablement and suppression settings.
//
// QuietHoursStart/End describe an hour-of-day window [start, end) on a
// 24-hour clock during which all notification is suppressed, panic
// included. start > end denotes a window wrapping past midnight. A nil
// start or end disables the window.
type NotifyConfig struct {
	Desktop         bool           `yaml:"desktop"`
	Sound           bool           `yaml:"sound"`
	Telegram        TelegramConfig `yaml:"telegram"`
	WebhookURL      string         `yaml:"webhook_url"`
	MQTT            MQTTConfig     `yaml:"mqtt"`
	QuietHoursStart *int           `yaml:"quiet_hours_start"` // 0-23
	QuietHoursEnd   *int           `yaml:"quiet_hours_end"`   // 0-23
}

// TelegramConfig holds bot credentials for the chat channel
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

// MQTTConfig holds broker settings for the MQTT channel.
// The channel is disabled when Broker is empty.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// PanicConfig holds the highest-precedence alert behavior for arrivals.
type PanicConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Message    string `yaml:"message"`
	SoundLoops int    `yaml:"sound_loops"`
	// OnlyUnknown restricts panic to devices with no assigned name.
	OnlyUnknown bool `yaml:"only_unknown"`
	// CustomMessages overrides the message per MAC address.
	CustomMessages map[string]string `yaml:"custom_messages,omitempty"`
}

// Duration wraps time.Duration for YAML round-tripping
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
