package alerting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// DatabaseHandler persists alerts to the `alerts` table (spec §4.12 step 4:
// "Persist alert record via the database handler").
type DatabaseHandler struct {
	pool *pgxpool.Pool
}

// NewDatabaseHandler wraps an open pgx pool.
func NewDatabaseHandler(pool *pgxpool.Pool) *DatabaseHandler {
	return &DatabaseHandler{pool: pool}
}

func (h *DatabaseHandler) Name() string { return "database" }

func (h *DatabaseHandler) Send(ctx context.Context, alert domain.Alert) error {
	meta, err := json.Marshal(alert.Metadata)
	if err != nil {
		return errs.Wrap(errs.CodeSerializaton, "marshal alert metadata failed", err)
	}
	_, err = h.pool.Exec(ctx, `
		INSERT INTO alerts (id, severity, title, description, source, created_at, status, organization_id, dedupe_hash, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO NOTHING`,
		alert.ID.String(), string(alert.Severity), alert.Title, alert.Description, alert.Source,
		alert.CreatedAt, string(alert.Status), string(alert.OrganizationID), alert.DedupeHash, meta,
	)
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "insert alert failed", err)
	}
	return nil
}

func (h *DatabaseHandler) List(ctx context.Context, filter Filter) ([]domain.Alert, error) {
	query := `SELECT id, severity, title, description, source, created_at, status, organization_id, dedupe_hash, metadata FROM alerts WHERE 1=1`
	args := []any{}
	n := 0
	if filter.OrganizationID != "" {
		n++
		query += paramClause("organization_id", n)
		args = append(args, string(filter.OrganizationID))
	}
	if filter.Status != "" {
		n++
		query += paramClause("status", n)
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		n++
		query += paramClause("severity", n)
		args = append(args, string(filter.Severity))
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.CodeTransient, "list alerts failed", err)
	}
	defer rows.Close()
	return scanAlerts(rows)
}

func paramClause(col string, n int) string {
	return fmt.Sprintf(" AND %s = $%d", col, n)
}

func (h *DatabaseHandler) ListActive(ctx context.Context, org domain.OrganizationID) ([]domain.Alert, error) {
	return h.List(ctx, Filter{OrganizationID: org, Status: domain.AlertActive})
}

func (h *DatabaseHandler) CountActive(ctx context.Context, org domain.OrganizationID) (int, error) {
	alerts, err := h.ListActive(ctx, org)
	if err != nil {
		return 0, err
	}
	return len(alerts), nil
}

func (h *DatabaseHandler) Stats(ctx context.Context, org domain.OrganizationID) (Stats, error) {
	alerts, err := h.List(ctx, Filter{OrganizationID: org})
	if err != nil {
		return Stats{}, err
	}
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

func (h *DatabaseHandler) transition(ctx context.Context, id domain.AlertID, next domain.AlertStatus, by string) error {
	var current string
	err := h.pool.QueryRow(ctx, `SELECT status FROM alerts WHERE id = $1`, id.String()).Scan(&current)
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "load alert status failed", err)
	}
	if !domain.AlertStatus(current).CanTransition(next) {
		return errs.New(errs.CodeValidation, "illegal alert status transition")
	}
	_, err = h.pool.Exec(ctx, `UPDATE alerts SET status = $1 WHERE id = $2`, string(next), id.String())
	if err != nil {
		return errs.Wrap(errs.CodeTransient, "update alert status failed", err)
	}
	_ = by // audited by the caller via the producer pipeline, not stored inline here
	return nil
}

func (h *DatabaseHandler) Resolve(ctx context.Context, id domain.AlertID, by string, data map[string]any) error {
	return h.transition(ctx, id, domain.AlertResolved, by)
}

func (h *DatabaseHandler) Acknowledge(ctx context.Context, id domain.AlertID, by string) error {
	return h.transition(ctx, id, domain.AlertAcknowledged, by)
}

func (h *DatabaseHandler) Dismiss(ctx context.Context, id domain.AlertID, by string) error {
	return h.transition(ctx, id, domain.AlertDismissed, by)
}

func scanAlerts(rows pgx.Rows) ([]domain.Alert, error) {
	var out []domain.Alert
	for rows.Next() {
		var (
			id, severity, status, org string
			a                         domain.Alert
			meta                      []byte
		)
		if err := rows.Scan(&id, &severity, &a.Title, &a.Description, &a.Source, &a.CreatedAt, &status, &org, &a.DedupeHash, &meta); err != nil {
			return nil, errs.Wrap(errs.CodeTransient, "scan alert row failed", err)
		}
		parsed, err := domain.ParseAlertID(id)
		if err != nil {
			return nil, errs.Wrap(errs.CodeSerializaton, "parse alert id failed", err)
		}
		a.ID = parsed
		a.Severity = domain.AlertSeverity(severity)
		a.Status = domain.AlertStatus(status)
		a.OrganizationID = domain.OrganizationID(org)
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &a.Metadata)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
