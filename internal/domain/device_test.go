package domain

import (
	"testing"
	"time"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"lowercase colons", "aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF", false},
		{"uppercase colons", "AA:BB:CC:DD:EE:FF", "AA:BB:CC:DD:EE:FF", false},
		{"hyphens", "aa-bb-cc-dd-ee-ff", "AA:BB:CC:DD:EE:FF", false},
		{"dotted", "aabb.ccdd.eeff", "AA:BB:CC:DD:EE:FF", false},
		{"surrounding whitespace", "  aa:bb:cc:dd:ee:ff ", "AA:BB:CC:DD:EE:FF", false},
		{"empty", "", "", true},
		{"garbage", "not-a-mac", "", true},
		{"too short", "aa:bb:cc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMAC(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeMAC(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		device Device
		want   string
	}{
		{
			name:   "assigned name wins",
			device: Device{MAC: "AA:BB:CC:DD:EE:FF", Name: "alice-phone", Vendor: "Apple"},
			want:   "alice-phone",
		},
		{
			name:   "vendor with mac suffix",
			device: Device{MAC: "AA:BB:CC:DD:EE:FF", Vendor: "Apple"},
			want:   "Apple (DD:EE:FF)",
		},
		{
			name:   "bare mac fallback",
			device: Device{MAC: "AA:BB:CC:DD:EE:FF"},
			want:   "AA:BB:CC:DD:EE:FF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTouch(t *testing.T) {
	seen := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	d := Device{MAC: "AA:BB:CC:DD:EE:FF", IP: "192.168.1.10"}

	d.Touch("192.168.1.20", seen)

	if d.IP != "192.168.1.20" {
		t.Errorf("IP = %q, want refreshed value", d.IP)
	}
	if d.LastSeen == nil || !d.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", d.LastSeen, seen)
	}
	if !d.IsOnline {
		t.Error("expected device to be online after touch")
	}

	// Empty IP keeps the previous one
	d.Touch("", seen.Add(time.Minute))
	if d.IP != "192.168.1.20" {
		t.Errorf("IP = %q, want previous value kept on empty sighting", d.IP)
	}
}

func TestChangeKindOrdering(t *testing.T) {
	if !ChangeNew.Less(ChangeArrived) {
		t.Error("new should sort before arrived")
	}
	if !ChangeArrived.Less(ChangeLeft) {
		t.Error("arrived should sort before left")
	}
	if ChangeLeft.Less(ChangeNew) {
		t.Error("left should not sort before new")
	}
}
