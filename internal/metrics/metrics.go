package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry          *prometheus.Registry
	scansTotal        prometheus.Counter
	scanFailures      prometheus.Counter
	scanDuration      prometheus.Histogram
	changesTotal      *prometheus.CounterVec
	devicesOnline     prometheus.Gauge
	devicesKnown      prometheus.Gauge
	deliveriesTotal   *prometheus.CounterVec
	deliveryFailures  *prometheus.CounterVec
	suppressedChanges prometheus.Counter
}

// New creates a fresh Metrics registry with scan, presence and notification
// metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	scansTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wifinder",
		Name:      "scans_total",
		Help:      "Total number of completed reconciliation cycles",
	})

	scanFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wifinder",
		Name:      "scan_failures_total",
		Help:      "Total number of skipped cycles due to scanner failure",
	})

	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wifinder",
		Name:      "scan_duration_seconds",
		Help:      "Duration of network scans",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	changesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wifinder",
		Name:      "presence_changes_total",
		Help:      "Presence changes emitted by the engine",
	}, []string{"kind"})

	devicesOnline := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wifinder",
		Name:      "devices_online",
		Help:      "Devices currently considered online",
	})

	devicesKnown := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "wifinder",
		Name:      "devices_known",
		Help:      "Devices known to the registry",
	})

	deliveriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wifinder",
		Name:      "deliveries_total",
		Help:      "Notification deliveries attempted per channel",
	}, []string{"channel"})

	deliveryFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wifinder",
		Name:      "delivery_failures_total",
		Help:      "Notification deliveries that reported failure per channel",
	}, []string{"channel"})

	suppressedChanges := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "wifinder",
		Name:      "suppressed_changes_total",
		Help:      "Changes suppressed by quiet hours",
	})

	registry.MustRegister(
		scansTotal,
		scanFailures,
		scanDuration,
		changesTotal,
		devicesOnline,
		devicesKnown,
		deliveriesTotal,
		deliveryFailures,
		suppressedChanges,
	)

	return &Metrics{
		registry:          registry,
		scansTotal:        scansTotal,
		scanFailures:      scanFailures,
		scanDuration:      scanDuration,
		changesTotal:      changesTotal,
		devicesOnline:     devicesOnline,
		devicesKnown:      devicesKnown,
		deliveriesTotal:   deliveriesTotal,
		deliveryFailures:  deliveryFailures,
		suppressedChanges: suppressedChanges,
	}
}

// ObserveScan records one completed reconciliation cycle.
func (m *Metrics) ObserveScan(duration time.Duration, online, known int) {
	if m == nil {
		return
	}
	m.scansTotal.Inc()
	m.scanDuration.Observe(duration.Seconds())
	m.devicesOnline.Set(float64(online))
	m.devicesKnown.Set(float64(known))
}

// ObserveScanFailure records a skipped cycle.
func (m *Metrics) ObserveScanFailure() {
	if m == nil {
		return
	}
	m.scanFailures.Inc()
}

// ObserveChange records one emitted presence change.
func (m *Metrics) ObserveChange(kind string) {
	if m == nil {
		return
	}
	m.changesTotal.WithLabelValues(kind).Inc()
}

// ObserveDelivery records one channel delivery attempt.
func (m *Metrics) ObserveDelivery(channel string, ok bool) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(channel).Inc()
	if !ok {
		m.deliveryFailures.WithLabelValues(channel).Inc()
	}
}

// ObserveSuppressed records a change silenced by quiet hours.
func (m *Metrics) ObserveSuppressed() {
	if m == nil {
		return
	}
	m.suppressedChanges.Inc()
}

// Handler returns an http.Handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
