package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"netsentry/internal/config"
	"netsentry/internal/domain"
	"netsentry/internal/notify"
	"netsentry/internal/telemetry"
)

// Delivery outcomes recorded per event.
const (
	OutcomeSent            = "sent"
	OutcomeSkippedCooldown = "skipped_cooldown"
	OutcomeFailed          = "failed"
)

// Dispatcher deduplicates events against a cooldown window and pushes
// the survivors through the messenger with bounded retries.
type Dispatcher struct {
	messenger notify.Messenger
	cfg       config.AlertConfig
	metrics   *telemetry.Metrics
	log       zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// DispatcherOption customizes a dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher wires a dispatcher over the given messenger. metrics
// may be nil.
func NewDispatcher(messenger notify.Messenger, cfg config.AlertConfig, metrics *telemetry.Metrics, log zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		messenger: messenger,
		cfg:       cfg,
		metrics:   metrics,
		log:       log.With().Str("component", "dispatcher").Logger(),
		now:       time.Now,
		lastSent:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles every event from one cycle in order. Events inside
// the cooldown window for their dedup key are skipped; the rest are
// delivered with retries. A failed delivery does not update the
// cooldown record, so the next sighting alerts again.
func (d *Dispatcher) Dispatch(ctx context.Context, events []domain.Event) {
	for _, event := range events {
		outcome := d.dispatchOne(ctx, event)
		d.metrics.AddAlert(outcome)

		d.log.Info().
			Str("device", event.Device.ID).
			Str("classification", string(event.Classification)).
			Str("outcome", outcome).
			Msg("event dispatched")
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, event domain.Event) string {
	key := event.DedupKey()
	now := d.now()

	if !d.claim(key, now) {
		return OutcomeSkippedCooldown
	}

	if err := d.deliver(ctx, d.render(event)); err != nil {
		d.log.Error().Err(err).Str("device", event.Device.ID).Msg("alert delivery failed")
		d.release(key)
		return OutcomeFailed
	}
	return OutcomeSent
}

// claim atomically checks the cooldown window and records a tentative
// delivery for key. Claiming before delivering keeps a slow send from
// letting a second goroutine alert on the same key.
func (d *Dispatcher) claim(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.lastSent[key]; ok && now.Sub(last) < d.cfg.Cooldown.Duration() {
		return false
	}
	d.lastSent[key] = now
	d.pruneLocked(now)
	return true
}

// release revokes a claim after a failed delivery.
func (d *Dispatcher) release(key string) {
	d.mu.Lock()
	delete(d.lastSent, key)
	d.mu.Unlock()
}

// pruneLocked drops records older than the cooldown window so the map
// does not grow with every device ever alerted on. Caller holds mu.
func (d *Dispatcher) pruneLocked(now time.Time) {
	window := d.cfg.Cooldown.Duration()
	for key, last := range d.lastSent {
		if now.Sub(last) >= window {
			delete(d.lastSent, key)
		}
	}
}

// deliver pushes one message with exponential backoff, honoring the
// per-attempt timeout and the configured attempt cap.
func (d *Dispatcher) deliver(ctx context.Context, text string) error {
	operation := func() (struct{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout.Duration())
		defer cancel()

		err := d.messenger.Send(attemptCtx, text)
		if errors.Is(err, notify.ErrNonRetryable) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(d.cfg.MaxAttempts)),
	)
	return err
}

// render fills the alert template from the event. Identity fields the
// scan could not determine render as "unknown" rather than vanishing
// from the message.
func (d *Dispatcher) render(event domain.Event) string {
	return strings.NewReplacer(
		"{mac}", orUnknown(event.Device.MAC),
		"{ip}", orUnknown(event.Device.LastIP),
		"{hostname}", orUnknown(event.Device.Hostname),
		"{vendor}", orUnknown(event.Device.Vendor),
		"{subnet}", orUnknown(event.Device.Subnet),
		"{timestamp}", event.ObservedAt.UTC().Format(time.RFC3339),
	).Replace(d.cfg.Template)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
