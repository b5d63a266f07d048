package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"netsentry/internal/adapter"
	"netsentry/internal/config"
	"netsentry/internal/domain"
	"netsentry/internal/policy"
	"netsentry/internal/repository"
	"netsentry/internal/telemetry"
)

// reconcileBudget bounds the classify-and-persist pass that follows
// scanning. It is deliberately independent of the cycle deadline: a
// cycle abandoned mid-scan must still persist the subnets that
// completed before the deadline hit.
const reconcileBudget = 30 * time.Second

// Reconciler runs one scan-classify-persist pass over the configured
// subnets and emits alert-eligible events for the dispatcher.
type Reconciler struct {
	scanner adapter.Scanner
	store   repository.Store
	policy  *policy.Store
	cfg     config.ScanConfig
	metrics *telemetry.Metrics
	log     zerolog.Logger
}

// NewReconciler wires a reconciler over the given scanner, inventory
// store, and policy store. metrics may be nil.
func NewReconciler(scanner adapter.Scanner, store repository.Store, pol *policy.Store, cfg config.ScanConfig, metrics *telemetry.Metrics, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		scanner: scanner,
		store:   store,
		policy:  pol,
		cfg:     cfg,
		metrics: metrics,
		log:     log.With().Str("component", "reconciler").Logger(),
	}
}

// RunCycle scans every configured subnet, reconciles the observations
// against the inventory, and returns the cycle report. Subnet scan
// failures are collected in the report; only a persistence failure
// makes RunCycle return an error, because continuing past one would
// desynchronize the inventory from what was observed.
func (r *Reconciler) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	report := domain.CycleReport{StartedAt: time.Now().UTC()}

	allowCount, denyCount := r.policy.Refresh()
	r.log.Debug().
		Int("allow_entries", allowCount).
		Int("deny_entries", denyCount).
		Msg("policy refreshed")

	observations, errs := r.scanSubnets(ctx)
	report.Errors = errs
	report.SubnetsScanned = len(r.cfg.Subnets) - len(errs)
	r.metrics.AddScanErrors(len(errs))

	merged := mergeObservations(observations)
	report.Observations = len(merged)
	r.metrics.AddObservations(len(merged))

	// The cycle deadline only bounds scanning. Observations from subnets
	// that finished before the deadline are persisted under a fresh
	// budget, so a timed-out cycle does not drop what it already saw.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reconcileBudget)
	defer cancel()

	for _, obs := range merged {
		class := r.policy.Classify(obs.MAC, obs.IP)

		dev, isNew, err := r.store.Upsert(persistCtx, obs, class)
		if err != nil {
			report.Duration = time.Since(report.StartedAt)
			return report, fmt.Errorf("persisting %s: %w", obs.Key(), err)
		}

		if isNew {
			report.NewDevices++
			r.log.Info().
				Str("device", dev.ID).
				Str("ip", dev.LastIP).
				Str("classification", string(class)).
				Msg("new device discovered")
		}

		if class.Trusted() {
			continue
		}
		if class == domain.ClassificationBlacklisted && !isNew {
			report.ReappearedBlacklisted++
		}

		report.Events = append(report.Events, domain.Event{
			Kind:           domain.EventUnauthorizedDevice,
			Device:         dev,
			Classification: class,
			IsNew:          isNew,
			ObservedAt:     obs.ObservedAt,
		})
		r.metrics.AddEvent(string(class))
	}

	if all, err := r.store.LoadAll(persistCtx); err == nil {
		r.metrics.SetInventorySize(len(all))
	}

	report.Duration = time.Since(report.StartedAt)

	if report.Degraded() {
		r.log.Error().
			Int("subnets", len(r.cfg.Subnets)).
			Msg("cycle degraded: every subnet scan failed")
	}
	return report, nil
}

// scanSubnets runs the per-subnet scans concurrently, bounded by
// MaxConcurrent, each under its own timeout.
func (r *Reconciler) scanSubnets(ctx context.Context) ([]domain.Observation, []domain.SubnetError) {
	var (
		mu           sync.Mutex
		observations []domain.Observation
		errs         []domain.SubnetError
	)

	g, gctx := errgroup.WithContext(ctx)
	limit := r.cfg.MaxConcurrent
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, subnet := range r.cfg.Subnets {
		g.Go(func() error {
			scanCtx, cancel := context.WithTimeout(gctx, r.cfg.SubnetTimeout.Duration())
			defer cancel()

			obs, err := r.scanner.Scan(scanCtx, subnet)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.log.Warn().Err(err).Str("subnet", subnet).Msg("subnet scan failed")
				errs = append(errs, domain.SubnetError{Subnet: subnet, Err: err})
				return nil
			}
			observations = append(observations, obs...)
			return nil
		})
	}
	_ = g.Wait()

	return observations, errs
}

// mergeObservations collapses duplicate sightings of the same device
// within one cycle. The first observation wins; later ones only fill
// in hostname and vendor fields the first lacked. Output order is
// stable so cycles are reproducible.
func mergeObservations(observations []domain.Observation) []domain.Observation {
	byKey := make(map[string]domain.Observation, len(observations))
	for _, obs := range observations {
		key := obs.Key()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = obs
			continue
		}
		if existing.Hostname == "" {
			existing.Hostname = obs.Hostname
		}
		if existing.Vendor == "" {
			existing.Vendor = obs.Vendor
		}
		byKey[key] = existing
	}

	merged := make([]domain.Observation, 0, len(byKey))
	for _, obs := range byKey {
		merged = append(merged, obs)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Key() < merged[j].Key()
	})
	return merged
}
