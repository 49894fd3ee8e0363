// Package handler serves the dashboard HTTP API. Handlers read through the
// registry directly so status queries never block on an in-progress scan.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/domain"
	"github.com/mpescimoro/wi-finder/internal/engine"
	"github.com/mpescimoro/wi-finder/internal/hub"
	"github.com/mpescimoro/wi-finder/internal/metrics"
	"github.com/mpescimoro/wi-finder/internal/repository"
)

// Handler exposes the dashboard API
type Handler struct {
	log       zerolog.Logger
	registry  repository.Registry
	engine    *engine.Engine
	hub       *hub.Hub
	metrics   *metrics.Metrics
	startedAt time.Time
}

// New creates the API handler
func New(log zerolog.Logger, registry repository.Registry, eng *engine.Engine, h *hub.Hub, m *metrics.Metrics) *Handler {
	return &Handler{
		log:       log,
		registry:  registry,
		engine:    eng,
		hub:       h,
		metrics:   m,
		startedAt: time.Now(),
	}
}

// Router builds the chi router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.accessLog)

	r.Get("/healthz", h.handleHealthz)
	r.Get("/metrics", h.metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/who", h.handleWho)
		r.Get("/devices", h.handleListDevices)
		r.Post("/device/{mac}", h.handleUpdateDevice)
		r.Get("/history", h.handleHistory)
		r.Get("/events", h.hub.ServeHTTP)
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// statusResponse is the dashboard's main payload
type statusResponse struct {
	OnlineCount   int                    `json:"online_count"`
	KnownCount    int                    `json:"known_count"`
	ArrivalsToday int                    `json:"arrivals_today"`
	ScanCount     int                    `json:"scan_count"`
	LastScan      *time.Time             `json:"last_scan,omitempty"`
	StartedAt     time.Time              `json:"started_at"`
	Devices       []domain.Device        `json:"devices"`
	History       []domain.PresenceEvent `json:"history"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	online, err := h.registry.ListOnline(ctx)
	if err != nil {
		h.writeError(w, "failed to list online devices", err.Error(), http.StatusInternalServerError)
		return
	}

	history, err := h.registry.ListEvents(ctx, "", nil, 10)
	if err != nil {
		h.writeError(w, "failed to list history", err.Error(), http.StatusInternalServerError)
		return
	}

	todayStart := startOfDay(time.Now())
	arrivalsToday, err := h.registry.CountEventsSince(ctx, domain.EventArrived, todayStart)
	if err != nil {
		h.writeError(w, "failed to count arrivals", err.Error(), http.StatusInternalServerError)
		return
	}

	state := h.engine.State()
	if online == nil {
		online = []domain.Device{}
	}
	if history == nil {
		history = []domain.PresenceEvent{}
	}

	h.writeJSON(w, statusResponse{
		OnlineCount:   len(online),
		KnownCount:    state.KnownCount,
		ArrivalsToday: arrivalsToday,
		ScanCount:     state.ScanCount,
		LastScan:      state.LastScan,
		StartedAt:     h.startedAt,
		Devices:       online,
		History:       history,
	}, http.StatusOK)
}

func (h *Handler) handleWho(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Summary(r.Context())
	if err != nil {
		h.writeError(w, "failed to build summary", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]string{"summary": summary}, http.StatusOK)
}

func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.registry.ListAll(r.Context())
	if err != nil {
		h.writeError(w, "failed to list devices", err.Error(), http.StatusInternalServerError)
		return
	}
	if devices == nil {
		devices = []domain.Device{}
	}
	h.writeJSON(w, devices, http.StatusOK)
}

// updateDeviceRequest carries user edits to the sticky fields
type updateDeviceRequest struct {
	Name  *string `json:"name"`
	Group *string `json:"group"`
}

func (h *Handler) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	mac := chi.URLParam(r, "mac")
	norm, err := domain.NormalizeMAC(mac)
	if err != nil {
		h.writeError(w, "invalid MAC address", err.Error(), http.StatusBadRequest)
		return
	}

	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if req.Name != nil {
		if err := h.registry.SetName(ctx, norm, *req.Name); err != nil {
			h.writeError(w, "failed to set name", err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if req.Group != nil {
		if err := h.registry.SetGroup(ctx, norm, *req.Group); err != nil {
			h.writeError(w, "failed to set group", err.Error(), http.StatusInternalServerError)
			return
		}
	}

	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	mac := r.URL.Query().Get("mac")

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.writeError(w, "invalid limit", raw, http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, "invalid since timestamp", err.Error(), http.StatusBadRequest)
			return
		}
		since = &parsed
	}

	events, err := h.registry.ListEvents(r.Context(), mac, since, limit)
	if err != nil {
		h.writeError(w, "failed to list events", err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []domain.PresenceEvent{}
	}
	h.writeJSON(w, events, http.StatusOK)
}

// ErrorResponse is the JSON error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, msg, details string, status int) {
	if status >= http.StatusInternalServerError {
		h.log.Error().Str("error", msg).Str("details", details).Msg("request failed")
	}
	h.writeJSON(w, ErrorResponse{Error: msg, Details: details}, status)
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
