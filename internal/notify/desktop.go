package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// DesktopChannel shows a desktop toast via the platform's notification tool
// (notify-send on Linux, osascript on macOS).
type DesktopChannel struct {
	log zerolog.Logger
}

// NewDesktopChannel creates a desktop notification channel
func NewDesktopChannel(log zerolog.Logger) *DesktopChannel {
	return &DesktopChannel{log: log}
}

// Name returns the channel identifier
func (c *DesktopChannel) Name() string { return "desktop" }

// Deliver shows the notification
func (c *DesktopChannel) Deliver(ctx context.Context, title, body string, device *domain.Device) bool {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)
	default:
		cmd = exec.CommandContext(ctx, "notify-send", title, body, "-a", "WiFinder")
	}

	if err := cmd.Run(); err != nil {
		c.log.Warn().Err(err).Msg("desktop notification failed")
		return false
	}
	return true
}
