package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// TelegramChannel sends messages through a Telegram bot.
type TelegramChannel struct {
	apiURL string
	chatID string
	client *http.Client
	log    zerolog.Logger
}

// NewTelegramChannel creates a Telegram bot channel
func NewTelegramChannel(token, chatID string, log zerolog.Logger) *TelegramChannel {
	return &TelegramChannel{
		apiURL: fmt.Sprintf("https://api.telegram.org/bot%s", token),
		chatID: chatID,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Name returns the channel identifier
func (c *TelegramChannel) Name() string { return "telegram" }

// Deliver posts a sendMessage request
func (c *TelegramChannel) Deliver(ctx context.Context, title, body string, device *domain.Device) bool {
	text := fmt.Sprintf("*%s*\n%s", title, body)
	if device != nil && device.Vendor != "" {
		text += fmt.Sprintf("\nDevice: %s", device.Vendor)
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("telegram payload marshal failed")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/sendMessage", bytes.NewReader(payload))
	if err != nil {
		c.log.Warn().Err(err).Msg("telegram request build failed")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("telegram notification failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("telegram notification rejected")
		return false
	}
	return true
}
