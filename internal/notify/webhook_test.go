package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/domain"
)

func TestWebhookDeliver(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewWebhookChannel(server.URL, zerolog.Nop())
	device := &domain.Device{MAC: "AA:BB:CC:DD:EE:FF", Name: "alice-phone", IP: "192.168.1.10"}

	if !ch.Deliver(context.Background(), "Arrival", "alice-phone is now home", device) {
		t.Fatal("expected delivery to succeed")
	}

	if received.Title != "Arrival" || received.Message != "alice-phone is now home" {
		t.Errorf("payload = %+v", received)
	}
	if received.Device == nil || received.Device.MAC != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("device payload = %+v", received.Device)
	}
	if received.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}

func TestWebhookDeliverRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ch := NewWebhookChannel(server.URL, zerolog.Nop())
	if ch.Deliver(context.Background(), "Arrival", "body", nil) {
		t.Error("expected delivery to fail on 500")
	}
}

func TestWebhookDeliverUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	ch := NewWebhookChannel(server.URL, zerolog.Nop())
	if ch.Deliver(context.Background(), "Arrival", "body", nil) {
		t.Error("expected delivery to fail when server is gone")
	}
}

func TestPanicNotifierOutput(t *testing.T) {
	var buf strings.Builder
	p := NewPanicNotifier(&buf)
	p.beepDelay = 0

	device := &domain.Device{MAC: "AA:BB:CC:DD:EE:FF", Vendor: "Apple", IP: "192.168.1.10"}
	p.Panic("INTRUDER", 3, device)

	out := buf.String()
	if !strings.Contains(out, "INTRUDER") {
		t.Error("banner missing message")
	}
	if !strings.Contains(out, "Apple") || !strings.Contains(out, "192.168.1.10") {
		t.Error("banner missing device details")
	}
	if n := strings.Count(out, "\a"); n != 3 {
		t.Errorf("got %d bells, want 3", n)
	}
}
