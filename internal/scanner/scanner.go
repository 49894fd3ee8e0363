// Package scanner produces presence snapshots: the set of devices detected
// as up on the local network right now.
package scanner

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// Snapshot is one scan's result. Devices carry at least a MAC and may carry
// IP and vendor; no ordering is guaranteed.
type Snapshot struct {
	Devices  []domain.Device
	ScanTime time.Time
	Duration time.Duration
}

// Source produces snapshots on demand. A failed scan returns an error and
// never a fabricated empty snapshot, so the engine can skip the cycle
// instead of marking devices offline.
type Source interface {
	Scan(ctx context.Context) (*Snapshot, error)
}

// Dedupe collapses duplicate MACs in a device list, keeping any non-empty
// IP and vendor seen for the same address. Order of first appearance is
// preserved.
func Dedupe(devices []domain.Device) []domain.Device {
	seen := make(map[string]int, len(devices))
	out := make([]domain.Device, 0, len(devices))

	for _, d := range devices {
		idx, ok := seen[d.MAC]
		if !ok {
			seen[d.MAC] = len(out)
			out = append(out, d)
			continue
		}
		if out[idx].IP == "" && d.IP != "" {
			out[idx].IP = d.IP
		}
		if out[idx].Vendor == "" && d.Vendor != "" {
			out[idx].Vendor = d.Vendor
		}
	}

	return out
}

// DetectNetwork guesses the local /24 by checking which source address the
// kernel would use for an outbound connection. Falls back to 192.168.1.0/24.
func DetectNetwork() string {
	const fallback = "192.168.1.0/24"

	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return fallback
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return fallback
	}
	ip := local.IP.To4()
	if ip == nil {
		return fallback
	}

	return fmt.Sprintf("%d.%d.%d.0/24", ip[0], ip[1], ip[2])
}
