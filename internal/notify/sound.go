package notify

import (
	"context"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// SoundChannel plays a short system sound.
type SoundChannel struct {
	log zerolog.Logger
}

// NewSoundChannel creates a sound channel
func NewSoundChannel(log zerolog.Logger) *SoundChannel {
	return &SoundChannel{log: log}
}

// Name returns the channel identifier
func (c *SoundChannel) Name() string { return "sound" }

// Deliver plays the sound; title/body/device are unused
func (c *SoundChannel) Deliver(ctx context.Context, title, body string, device *domain.Device) bool {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "afplay", "/System/Library/Sounds/Glass.aiff")
	default:
		cmd = exec.CommandContext(ctx, "paplay", "/usr/share/sounds/freedesktop/stereo/bell.oga")
	}

	if err := cmd.Run(); err != nil {
		c.log.Debug().Err(err).Msg("sound notification failed")
		return false
	}
	return true
}
