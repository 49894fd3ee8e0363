// Package notify decides whether a presence change is worth telling anyone
// about, and through which channels.
package notify

import (
	"context"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// Channel is a one-way, best-effort delivery sink. Deliver reports success
// or failure but never blocks beyond its context and never panics; a
// failing channel is logged and must not affect the others.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, title, body string, device *domain.Device) bool
}
