package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"netsentry/internal/config"
	"netsentry/internal/telemetry"
)

// Cycle outcomes recorded in telemetry.
const (
	CycleOK       = "ok"
	CycleDegraded = "degraded"
	CycleError    = "error"
)

// Monitor drives the scan loop: an immediate first cycle, then one
// cycle per interval until the context is cancelled. Cycles never
// overlap; a cycle that outlasts its interval simply delays the next
// tick.
type Monitor struct {
	reconciler *Reconciler
	dispatcher *Dispatcher
	cfg        config.ScanConfig
	metrics    *telemetry.Metrics
	log        zerolog.Logger
}

// NewMonitor wires the monitor loop. metrics may be nil.
func NewMonitor(reconciler *Reconciler, dispatcher *Dispatcher, cfg config.ScanConfig, metrics *telemetry.Metrics, log zerolog.Logger) *Monitor {
	return &Monitor{
		reconciler: reconciler,
		dispatcher: dispatcher,
		cfg:        cfg,
		metrics:    metrics,
		log:        log.With().Str("component", "monitor").Logger(),
	}
}

// Run blocks until ctx is cancelled. Cycle failures are logged and
// counted but never stop the loop; the monitor's job is to keep
// watching.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info().
		Strs("subnets", m.cfg.Subnets).
		Dur("interval", m.cfg.Interval.Duration()).
		Msg("monitor started")

	m.runCycle(ctx)

	ticker := time.NewTicker(m.cfg.Interval.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("monitor stopping")
			return ctx.Err()
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

func (m *Monitor) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	cycleCtx, cancel := context.WithTimeout(ctx, m.cfg.CycleTimeout.Duration())
	defer cancel()

	report, err := m.reconciler.RunCycle(cycleCtx)

	outcome := CycleOK
	switch {
	case err != nil:
		outcome = CycleError
		m.log.Error().Err(err).Msg("cycle failed")
	case report.Degraded():
		outcome = CycleDegraded
	}
	m.metrics.ObserveCycle(outcome, report.Duration)

	if err != nil {
		return
	}

	m.log.Info().
		Int("subnets_scanned", report.SubnetsScanned).
		Int("observations", report.Observations).
		Int("new_devices", report.NewDevices).
		Int("events", len(report.Events)).
		Int("errors", len(report.Errors)).
		Dur("duration", report.Duration).
		Msg("cycle complete")

	// Dispatch under the loop context: a cycle that used up its own
	// deadline scanning still gets its events delivered
	if len(report.Events) > 0 {
		m.dispatcher.Dispatch(ctx, report.Events)
	}
}
