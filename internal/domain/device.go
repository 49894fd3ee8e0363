package domain

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Device is a network device keyed by MAC address.
//
// Name, Group and FirstSeen are sticky: they are only changed by explicit
// user edits and survive reconciliation cycles. IP, LastSeen and IsOnline
// are scan-owned and refreshed on every sighting.
type Device struct {
	MAC       string     `json:"mac"`
	Name      string     `json:"name,omitempty"`
	Vendor    string     `json:"vendor,omitempty"`
	IP        string     `json:"ip,omitempty"`
	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	IsOnline  bool       `json:"is_online"`
	Group     string     `json:"group,omitempty"`
}

// NormalizeMAC converts a MAC address to canonical form: upper-case,
// colon-separated octets. Accepts any format net.ParseMAC understands.
func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(mac))
	if err != nil {
		return "", fmt.Errorf("invalid MAC %q: %w", mac, err)
	}
	return strings.ToUpper(hw.String()), nil
}

// DisplayName returns a human-readable name for the device:
// the assigned name, else vendor plus a MAC suffix, else the bare MAC.
func (d *Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Vendor != "" {
		suffix := d.MAC
		if len(suffix) > 8 {
			suffix = suffix[len(suffix)-8:]
		}
		return fmt.Sprintf("%s (%s)", d.Vendor, suffix)
	}
	return d.MAC
}

// Touch refreshes the scan-owned fields from a sighting.
func (d *Device) Touch(ip string, seenAt time.Time) {
	if ip != "" {
		d.IP = ip
	}
	t := seenAt
	d.LastSeen = &t
	d.IsOnline = true
}
