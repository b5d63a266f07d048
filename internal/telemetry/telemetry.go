// Package telemetry exposes Prometheus metrics for the monitor loop.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics holds the collectors updated by scan cycles and alert
// dispatch. A nil *Metrics is valid and records nothing, so callers
// never need to branch on whether telemetry is enabled.
type Metrics struct {
	cyclesTotal       *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
	observationsTotal prometheus.Counter
	eventsTotal       *prometheus.CounterVec
	alertsTotal       *prometheus.CounterVec
	scanErrorsTotal   prometheus.Counter
	inventorySize     prometheus.Gauge
}

// New registers the monitor's collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "netsentry_cycles_total",
			Help: "Completed scan cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "netsentry_cycle_duration_seconds",
			Help:    "Wall-clock duration of scan cycles.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		observationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "netsentry_observations_total",
			Help: "Devices observed across all scan cycles.",
		}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "netsentry_events_total",
			Help: "Alertable events emitted by classification.",
		}, []string{"classification"}),
		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "netsentry_alerts_total",
			Help: "Alert dispatch attempts by outcome.",
		}, []string{"outcome"}),
		scanErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "netsentry_scan_errors_total",
			Help: "Per-subnet scan failures.",
		}),
		inventorySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "netsentry_inventory_devices",
			Help: "Devices currently tracked in the inventory.",
		}),
	}
}

// ObserveCycle records one completed cycle.
func (m *Metrics) ObserveCycle(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(duration.Seconds())
}

// AddObservations records the device count from one cycle.
func (m *Metrics) AddObservations(n int) {
	if m == nil {
		return
	}
	m.observationsTotal.Add(float64(n))
}

// AddEvent records an emitted event.
func (m *Metrics) AddEvent(classification string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(classification).Inc()
}

// AddAlert records a dispatch outcome.
func (m *Metrics) AddAlert(outcome string) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(outcome).Inc()
}

// AddScanErrors records per-subnet scan failures.
func (m *Metrics) AddScanErrors(n int) {
	if m == nil {
		return
	}
	m.scanErrorsTotal.Add(float64(n))
}

// SetInventorySize records the current inventory size.
func (m *Metrics) SetInventorySize(n int) {
	if m == nil {
		return
	}
	m.inventorySize.Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
