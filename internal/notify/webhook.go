package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// WebhookChannel POSTs a JSON payload to a configured URL. Any 2xx response
// counts as delivered.
type WebhookChannel struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewWebhookChannel creates a webhook channel
func NewWebhookChannel(url string, log zerolog.Logger) *WebhookChannel {
	return &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Name returns the channel identifier
func (c *WebhookChannel) Name() string { return "webhook" }

// webhookPayload is the wire format posted to the configured URL
type webhookPayload struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Device    *webhookDevice `json:"device,omitempty"`
}

type webhookDevice struct {
	MAC    string `json:"mac"`
	Name   string `json:"name,omitempty"`
	Vendor string `json:"vendor,omitempty"`
	IP     string `json:"ip,omitempty"`
}

// Deliver posts the payload
func (c *WebhookChannel) Deliver(ctx context.Context, title, body string, device *domain.Device) bool {
	payload := webhookPayload{
		Title:     title,
		Message:   body,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if device != nil {
		payload.Device = &webhookDevice{
			MAC:    device.MAC,
			Name:   device.Name,
			Vendor: device.Vendor,
			IP:     device.IP,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Warn().Err(err).Msg("webhook payload marshal failed")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		c.log.Warn().Err(err).Msg("webhook request build failed")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("webhook notification failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().Int("status", resp.StatusCode).Msg("webhook notification rejected")
		return false
	}
	return true
}
