package alerting

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

const defaultCooldown = 300 * time.Second

func cooldownKey(hash string) string { return "alert:cooldown:" + hash }

// HighPriorityNotifier wakes an out-of-band channel for CRITICAL alerts
// (spec §4.12 step 4), separate from the regular handler fan-out.
type HighPriorityNotifier interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// Counters are the alert-side metrics this service feeds (spec §4.14:
// alerts_total). Kept as an interface so the Metrics Collector can satisfy
// it without this package importing prometheus directly.
type Counters interface {
	IncAlertsTotal(severity domain.AlertSeverity)
	IncAlertsSuppressed()
}

// Service implements the Alerting Service (spec §4.12).
type Service struct {
	rdb      *goredis.Client
	handlers []Handler
	notifier HighPriorityNotifier
	counters Counters
	log      *slog.Logger
	cooldown time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCooldown overrides the default 300s dedupe cooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) { s.cooldown = d }
}

// WithHighPriorityNotifier registers the CRITICAL-severity wake-up channel.
func WithHighPriorityNotifier(n HighPriorityNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithCounters wires the Metrics Collector's alert counters.
func WithCounters(c Counters) Option {
	return func(s *Service) { s.counters = c }
}

// New constructs a Service fanning out to handlers.
func New(rdb *goredis.Client, log *slog.Logger, handlers []Handler, opts ...Option) *Service {
	s := &Service{rdb: rdb, handlers: handlers, log: log, cooldown: defaultCooldown}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit implements pattern.AlertSink: accept a candidate alert, dedupe via
// the shared cache, and fan out to every registered handler (spec §4.12).
func (s *Service) Submit(ctx context.Context, alert domain.Alert) error {
	if alert.DedupeHash == "" {
		alert.DedupeHash = domain.ComputeDedupeHash(alert.Source, alert.Title, alert.Severity, alert.Description)
	}

	acquired, err := s.rdb.SetNX(ctx, cooldownKey(alert.DedupeHash), "1", s.cooldown).Result()
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "alert cooldown check failed", err)
	}
	if !acquired {
		if s.counters != nil {
			s.counters.IncAlertsSuppressed()
		}
		if s.log != nil {
			s.log.Debug("alert suppressed by cooldown", "dedupeHash", alert.DedupeHash)
		}
		return nil
	}

	var firstErr error
	for _, h := range s.handlers {
		if sendErr := h.Send(ctx, alert); sendErr != nil {
			if s.log != nil {
				s.log.Error("alert handler send failed", "handler", h.Name(), "err", sendErr)
			}
			if firstErr == nil {
				firstErr = sendErr
			}
		}
	}

	if alert.Severity == domain.SeverityCritical && s.notifier != nil {
		if notifyErr := s.notifier.Notify(ctx, alert); notifyErr != nil && s.log != nil {
			s.log.Error("high priority notify failed", "err", notifyErr)
		}
	}

	if s.counters != nil {
		s.counters.IncAlertsTotal(alert.Severity)
	}

	return firstErr
}

// Resolve/Acknowledge/Dismiss apply the lifecycle transition to every
// handler that persists alert state (console/database); webhook/email are
// fire-and-forget and no-op these calls.
func (s *Service) Resolve(ctx context.Context, id domain.AlertID, by string, data map[string]any) error {
	return s.broadcast(func(h Handler) error { return h.Resolve(ctx, id, by, data) })
}

func (s *Service) Acknowledge(ctx context.Context, id domain.AlertID, by string) error {
	return s.broadcast(func(h Handler) error { return h.Acknowledge(ctx, id, by) })
}

func (s *Service) Dismiss(ctx context.Context, id domain.AlertID, by string) error {
	return s.broadcast(func(h Handler) error { return h.Dismiss(ctx, id, by) })
}

func (s *Service) broadcast(fn func(Handler) error) error {
	var firstErr error
	for _, h := range s.handlers {
		if err := fn(h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
