// Package alerting implements the Alerting Service (spec §4.12): dedupe via
// a shared-cache cooldown key, fan-out to a registry of AlertHandler
// variants, and the active/acknowledged/resolved/dismissed lifecycle.
package alerting

import (
	"context"

	"auditcore/pkg/domain"
)

// Filter narrows List results (spec §6 Alert Handler Contract).
type Filter struct {
	OrganizationID domain.OrganizationID
	Status         domain.AlertStatus
	Severity       domain.AlertSeverity
	Since          *timeRange
}

type timeRange struct {
	From, To string
}

// Stats summarizes alert volume for an organization (or globally).
type Stats struct {
	Total       int
	ActiveCount int
	BySeverity  map[domain.AlertSeverity]int
	ByStatus    map[domain.AlertStatus]int
}

// Handler is the Alert Handler Contract (spec §6): every registered handler
// variant (console, database, webhook, email) implements this.
type Handler interface {
	Name() string
	Send(ctx context.Context, alert domain.Alert) error
	List(ctx context.Context, filter Filter) ([]domain.Alert, error)
	ListActive(ctx context.Context, org domain.OrganizationID) ([]domain.Alert, error)
	CountActive(ctx context.Context, org domain.OrganizationID) (int, error)
	Stats(ctx context.Context, org domain.OrganizationID) (Stats, error)
	Resolve(ctx context.Context, id domain.AlertID, by string, data map[string]any) error
	Acknowledge(ctx context.Context, id domain.AlertID, by string) error
	Dismiss(ctx context.Context, id domain.AlertID, by string) error
}
