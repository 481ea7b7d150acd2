package alerting

import (
	"context"
	"log/slog"
	"sync"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// ConsoleHandler logs alerts via slog and keeps an in-process record so it
// can also serve List/Stats for local/dev deployments that run without the
// database handler wired.
type ConsoleHandler struct {
	log *slog.Logger

	mu     sync.Mutex
	alerts map[domain.AlertID]domain.Alert
}

// NewConsoleHandler constructs a ConsoleHandler.
func NewConsoleHandler(log *slog.Logger) *ConsoleHandler {
	return &ConsoleHandler{log: log, alerts: make(map[domain.AlertID]domain.Alert)}
}

func (h *ConsoleHandler) Name() string { return "console" }

func (h *ConsoleHandler) Send(ctx context.Context, alert domain.Alert) error {
	if h.log != nil {
		h.log.Warn("alert", "id", alert.ID.String(), "severity", alert.Severity, "title", alert.Title)
	}
	h.mu.Lock()
	h.alerts[alert.ID] = alert
	h.mu.Unlock()
	return nil
}

func (h *ConsoleHandler) List(ctx context.Context, filter Filter) ([]domain.Alert, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.Alert
	for _, a := range h.alerts {
		if filter.OrganizationID != "" && a.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (h *ConsoleHandler) ListActive(ctx context.Context, org domain.OrganizationID) ([]domain.Alert, error) {
	return h.List(ctx, Filter{OrganizationID: org, Status: domain.AlertActive})
}

func (h *ConsoleHandler) CountActive(ctx context.Context, org domain.OrganizationID) (int, error) {
	alerts, _ := h.ListActive(ctx, org)
	return len(alerts), nil
}

func (h *ConsoleHandler) Stats(ctx context.Context, org domain.OrganizationID) (Stats, error) {
	alerts, _ := h.List(ctx, Filter{OrganizationID: org})
	s := Stats{BySeverity: map[domain.AlertSeverity]int{}, ByStatus: map[domain.AlertStatus]int{}}
	for _, a := range alerts {
		s.Total++
		s.BySeverity[a.Severity]++
		s.ByStatus[a.Status]++
		if a.Status == domain.AlertActive {
			s.ActiveCount++
		}
	}
	return s, nil
}

func (h *ConsoleHandler) transition(id domain.AlertID, next domain.AlertStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	a, ok := h.alerts[id]
	if !ok {
		return nil
	}
	if !a.Status.CanTransition(next) {
		return errs.New(errs.CodeValidation, "illegal alert status transition")
	}
	a.Status = next
	h.alerts[id] = a
	return nil
}

func (h *ConsoleHandler) Resolve(ctx context.Context, id domain.AlertID, by string, data map[string]any) error {
	return h.transition(id, domain.AlertResolved)
}

func (h *ConsoleHandler) Acknowledge(ctx context.Context, id domain.AlertID, by string) error {
	return h.transition(id, domain.AlertAcknowledged)
}

func (h *ConsoleHandler) Dismiss(ctx context.Context, id domain.AlertID, by string) error {
	return h.transition(id, domain.AlertDismissed)
}
