package scanner

import (
	"context"
	"fmt"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

// NmapSource scans a network range with an nmap ping sweep (-sn). ARP-based
// MAC discovery needs the binary to run with raw socket privileges; hosts
// that come back without a MAC (typically the scanning machine itself) are
// skipped.
type NmapSource struct {
	network string
	timeout time.Duration
	log     zerolog.Logger
}

// NewNmapSource creates a ping-sweep snapshot source for the given CIDR
func NewNmapSource(network string, log zerolog.Logger) *NmapSource {
	return &NmapSource{
		network: network,
		timeout: 2 * time.Minute,
		log:     log,
	}
}

// WithTimeout sets the per-scan timeout
func (s *NmapSource) WithTimeout(d time.Duration) *NmapSource {
	s.timeout = d
	return s
}

// Available reports whether the nmap binary can be executed
func (s *NmapSource) Available(ctx context.Context) bool {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets("localhost"),
		nmap.WithListScan(),
	)
	if err != nil {
		return false
	}
	_, _, err = scanner.Run()
	return err == nil
}

// Scan performs one ping sweep and returns the snapshot
func (s *NmapSource) Scan(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	scanner, err := nmap.NewScanner(
		scanCtx,
		nmap.WithTargets(s.network),
		nmap.WithPingScan(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		s.log.Debug().Strs("warnings", *warnings).Msg("nmap warnings")
	}

	scanTime := time.Now()
	devices := s.processResults(result, scanTime)

	snapshot := &Snapshot{
		Devices:  Dedupe(devices),
		ScanTime: scanTime,
		Duration: time.Since(start),
	}

	s.log.Debug().
		Str("network", s.network).
		Int("devices", len(snapshot.Devices)).
		Dur("duration", snapshot.Duration).
		Msg("scan complete")

	return snapshot, nil
}

// processResults converts nmap hosts to devices
func (s *NmapSource) processResults(result *nmap.Run, scanTime time.Time) []domain.Device {
	if result == nil {
		return nil
	}

	var devices []domain.Device

	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}

		var ip, mac, vendor string
		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				ip = addr.Addr
			case "mac":
				mac = addr.Addr
				vendor = addr.Vendor
			}
		}

		if mac == "" {
			continue
		}

		norm, err := domain.NormalizeMAC(mac)
		if err != nil {
			s.log.Warn().Str("mac", mac).Err(err).Msg("skipping host with unparseable MAC")
			continue
		}

		ts := scanTime
		devices = append(devices, domain.Device{
			MAC:      norm,
			IP:       ip,
			Vendor:   vendor,
			LastSeen: &ts,
			IsOnline: true,
		})
	}

	return devices
}
