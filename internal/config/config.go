// Package config provides configuration management for WiFinder.
//
// The config file carries identity and policy (what to scan, who to tell);
// the database carries knowledge (devices seen, event history) and can be
// reset independently.
//
// Config file locations (priority order):
//  1. $WIFINDER_CONFIG
//  2. ./wifinder.yaml
//  3. ~/.config/wifinder/config.yaml
//  4. /etc/wifinder/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Interval == 0 {
		c.Interval = Duration(30 * time.Second)
	}
	if c.DeviceTTL == 0 {
		c.DeviceTTL = Duration(180 * time.Second)
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDBPath()
	}
	if c.Web.Listen == "" {
		c.Web.Listen = ":8080"
	}
	if c.Panic.Message == "" {
		c.Panic.Message = "OHSHITOHSHITOHSHITOHSHITOHSHIT!"
	}
	if c.Panic.SoundLoops == 0 {
		c.Panic.SoundLoops = 1
	}
	if c.Notify.MQTT.ClientID == "" {
		c.Notify.MQTT.ClientID = "wifinder"
	}
	if c.Notify.MQTT.TopicPrefix == "" {
		c.Notify.MQTT.TopicPrefix = "wifinder"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects malformed configuration at load time so a bad value can
// never surface mid-cycle.
func (c *Config) Validate() error {
	if c.Interval.Duration() <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval.Duration())
	}
	if c.DeviceTTL.Duration() <= 0 {
		return fmt.Errorf("device_ttl must be positive, got %s", c.DeviceTTL.Duration())
	}

	if err := validateHour("notify.quiet_hours_start", c.Notify.QuietHoursStart); err != nil {
		return err
	}
	if err := validateHour("notify.quiet_hours_end", c.Notify.QuietHoursEnd); err != nil {
		return err
	}
	if (c.Notify.QuietHoursStart == nil) != (c.Notify.QuietHoursEnd == nil) {
		return fmt.Errorf("quiet hours require both start and end")
	}

	if c.Panic.SoundLoops < 1 {
		return fmt.Errorf("panic.sound_loops must be at least 1, got %d", c.Panic.SoundLoops)
	}
	for mac := range c.Panic.CustomMessages {
		if _, err := domain.NormalizeMAC(mac); err != nil {
			return fmt.Errorf("panic.custom_messages: %w", err)
		}
	}

	return nil
}

func validateHour(field string, hour *int) error {
	if hour == nil {
		return nil
	}
	if *hour < 0 || *hour > 23 {
		return fmt.Errorf("%s must be within 0-23, got %d", field, *hour)
	}
	return nil
}

// NormalizedPanicMessages returns the per-MAC panic overrides keyed by
// canonical MAC form. Validate has already checked the keys parse.
func (c *Config) NormalizedPanicMessages() map[string]string {
	if len(c.Panic.CustomMessages) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.Panic.CustomMessages))
	for mac, msg := range c.Panic.CustomMessages {
		norm, err := domain.NormalizeMAC(mac)
		if err != nil {
			continue
		}
		out[norm] = msg
	}
	return out
}
