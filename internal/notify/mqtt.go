package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/config"
	"github.com/mpescimoro/wi-finder/internal/domain"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttKeepAlive      = 60 * time.Second
)

// MQTTChannel publishes presence notifications to an MQTT broker so
// home-automation systems can react to arrivals and departures.
type MQTTChannel struct {
	client pahomqtt.Client
	topic  string
	log    zerolog.Logger
}

// NewMQTTChannel connects to the broker and returns the channel. The
// connection auto-reconnects; publishes while disconnected fail and are
// only logged, like any other channel failure.
func NewMQTTChannel(cfg config.MQTTConfig, log zerolog.Logger) (*MQTTChannel, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(mqttKeepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(mqttConnectTimeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect timeout after %s", mqttConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	return &MQTTChannel{
		client: client,
		topic:  cfg.TopicPrefix + "/events",
		log:    log,
	}, nil
}

// Name returns the channel identifier
func (c *MQTTChannel) Name() string { return "mqtt" }

// mqttPayload is the JSON published per notification
type mqttPayload struct {
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Device  *domain.Device `json:"device,omitempty"`
}

// Deliver publishes the notification at QoS 1
func (c *MQTTChannel) Deliver(ctx context.Context, title, body string, device *domain.Device) bool {
	if !c.client.IsConnected() {
		c.log.Warn().Msg("mqtt notification skipped: not connected")
		return false
	}

	data, err := json.Marshal(mqttPayload{Title: title, Message: body, Device: device})
	if err != nil {
		c.log.Warn().Err(err).Msg("mqtt payload marshal failed")
		return false
	}

	token := c.client.Publish(c.topic, 1, false, data)
	if !token.WaitTimeout(mqttPublishTimeout) {
		c.log.Warn().Str("topic", c.topic).Msg("mqtt publish timeout")
		return false
	}
	if err := token.Error(); err != nil {
		c.log.Warn().Err(err).Str("topic", c.topic).Msg("mqtt publish failed")
		return false
	}
	return true
}

// Close disconnects from the broker
func (c *MQTTChannel) Close() {
	c.client.Disconnect(1000)
}
