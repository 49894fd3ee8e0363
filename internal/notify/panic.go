package notify

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// PanicNotifier renders the highest-precedence alert: a red box banner on
// the terminal plus repeated bells. It bypasses the ordinary channels
// entirely.
type PanicNotifier struct {
	out       io.Writer
	beepDelay time.Duration
}

// NewPanicNotifier creates a panic notifier writing to out
func NewPanicNotifier(out io.Writer) *PanicNotifier {
	return &PanicNotifier{out: out, beepDelay: 200 * time.Millisecond}
}

// Panic renders the banner with the given message, the device line, and
// the bell repeated `repeats` times.
func (p *PanicNotifier) Panic(message string, repeats int, device *domain.Device) {
	const padding = 4
	width := len(message) + padding*2

	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "\033[91m┌%s┐\033[0m\n", strings.Repeat("─", width))
	fmt.Fprintf(p.out, "\033[91m│\033[93m%s\033[91m│\033[0m\n", center(message, width))
	fmt.Fprintf(p.out, "\033[91m└%s┘\033[0m\n", strings.Repeat("─", width))
	fmt.Fprintln(p.out)

	if device != nil {
		fmt.Fprintf(p.out, "\033[96m>>> %s\033[0m\n", device.DisplayName())
		var details []string
		if device.Vendor != "" {
			details = append(details, device.Vendor)
		}
		if device.IP != "" {
			details = append(details, device.IP)
		}
		if len(details) > 0 {
			fmt.Fprintf(p.out, "    %s\n", strings.Join(details, " · "))
		}
		fmt.Fprintln(p.out)
	}

	for i := 0; i < repeats; i++ {
		fmt.Fprint(p.out, "\a")
		if p.beepDelay > 0 {
			time.Sleep(p.beepDelay)
		}
	}
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}
