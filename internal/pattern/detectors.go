package pattern

import (
	"strings"
	"sync"
	"time"

	"auditcore/pkg/domain"
)

// Detector evaluates one incoming persisted event and optionally returns a
// candidate Alert (spec §4.11). Detectors must be safe for concurrent use.
type Detector interface {
	ID() string
	Evaluate(e domain.AuditEvent, now time.Time) *domain.Alert
}

func candidateAlert(detectorID string, e domain.AuditEvent, severity domain.AlertSeverity, title, description string, now time.Time) *domain.Alert {
	return &domain.Alert{
		ID:             domain.NewAlertID(),
		Severity:       severity,
		Title:          title,
		Description:    description,
		Source:         string(e.PrincipalID),
		CreatedAt:      now,
		Status:         domain.AlertActive,
		OrganizationID: e.OrganizationID,
		DedupeHash:     domain.ComputeDedupeHash(string(e.PrincipalID), title, severity, description),
		Metadata: map[string]any{
			"detector":    detectorID,
			"principalId": string(e.PrincipalID),
		},
	}
}

// FailedAuthDetector fires when a principal accrues >= Threshold failed
// auth.* events within Window (default 5 within 300s, spec §4.11).
type FailedAuthDetector struct {
	Store     *Store
	Threshold int
	Window    time.Duration
}

// NewFailedAuthDetector constructs the detector with spec defaults.
func NewFailedAuthDetector() *FailedAuthDetector {
	return &FailedAuthDetector{Store: NewStore(0, 0), Threshold: 5, Window: 300 * time.Second}
}

func (d *FailedAuthDetector) ID() string { return "FAILED_AUTH" }

func (d *FailedAuthDetector) Evaluate(e domain.AuditEvent, now time.Time) *domain.Alert {
	if e.Status != domain.StatusFailure || !strings.HasPrefix(e.Action, "auth.") {
		return nil
	}
	key := d.ID() + ":" + string(e.PrincipalID)
	count := d.Store.Record(key, now, d.Window)
	if count < d.Threshold {
		return nil
	}
	return candidateAlert(d.ID(), e, domain.SeverityHigh, "FAILED_AUTH",
		"repeated authentication failures for principal", now)
}

// UnauthorizedAccessDetector fires when a principal accrues >= Threshold
// failed PHI reads within Window (default 3 within 600s, spec §4.11).
type UnauthorizedAccessDetector struct {
	Store     *Store
	Threshold int
	Window    time.Duration
}

// NewUnauthorizedAccessDetector constructs the detector with spec defaults.
func NewUnauthorizedAccessDetector() *UnauthorizedAccessDetector {
	return &UnauthorizedAccessDetector{Store: NewStore(0, 0), Threshold: 3, Window: 600 * time.Second}
}

func (d *UnauthorizedAccessDetector) ID() string { return "UNAUTHORIZED_ACCESS" }

func (d *UnauthorizedAccessDetector) Evaluate(e domain.AuditEvent, now time.Time) *domain.Alert {
	if e.Status != domain.StatusFailure || e.DataClassification != domain.ClassificationPHI {
		return nil
	}
	key := d.ID() + ":" + string(e.PrincipalID)
	count := d.Store.Record(key, now, d.Window)
	if count < d.Threshold {
		return nil
	}
	return candidateAlert(d.ID(), e, domain.SeverityCritical, "UNAUTHORIZED_ACCESS",
		"repeated unauthorized PHI access attempts", now)
}

// BulkExportDetector fires when one principal's data.export events within
// Window (default 60s, spec §4.11) touch at least ResourceThreshold distinct
// target resources. Distinct-resource cardinality requires its own tracking
// since Store only counts occurrences, not distinct values.
type BulkExportDetector struct {
	ResourceThreshold int
	Window            time.Duration

	mu     sync.Mutex
	recent map[string][]exportHit
}

type exportHit struct {
	resourceID string
	at         time.Time
}

// NewBulkExportDetector constructs the detector with spec defaults.
func NewBulkExportDetector() *BulkExportDetector {
	return &BulkExportDetector{
		ResourceThreshold: 10,
		Window:            60 * time.Second,
		recent:            make(map[string][]exportHit),
	}
}

func (d *BulkExportDetector) ID() string { return "BULK_EXPORT" }

func (d *BulkExportDetector) Evaluate(e domain.AuditEvent, now time.Time) *domain.Alert {
	if e.Action != "data.export" {
		return nil
	}

	key := string(e.PrincipalID)
	cutoff := now.Add(-d.Window)

	d.mu.Lock()
	hits := append(d.recent[key], exportHit{resourceID: e.TargetResourceID, at: now})
	kept := hits[:0]
	seen := make(map[string]bool, len(hits))
	for _, h := range hits {
		if h.at.Before(cutoff) {
			continue
		}
		kept = append(kept, h)
		seen[h.resourceID] = true
	}
	d.recent[key] = kept
	distinct := len(seen)
	d.mu.Unlock()

	if distinct < d.ResourceThreshold {
		return nil
	}
	return candidateAlert(d.ID(), e, domain.SeverityHigh, "BULK_EXPORT",
		"export activity spans an unusually high number of distinct resources", now)
}

// OffHoursDetector fires on PHI access outside [BusinessStart, BusinessEnd)
// local hours (spec §4.11).
type OffHoursDetector struct {
	BusinessStart int // hour, 0-23
	BusinessEnd   int // hour, 0-23
	Location      *time.Location
}

// NewOffHoursDetector constructs the detector with a 9-to-17 business day.
func NewOffHoursDetector() *OffHoursDetector {
	return &OffHoursDetector{BusinessStart: 9, BusinessEnd: 17, Location: time.UTC}
}

func (d *OffHoursDetector) ID() string { return "OFF_HOURS" }

func (d *OffHoursDetector) Evaluate(e domain.AuditEvent, now time.Time) *domain.Alert {
	if e.DataClassification != domain.ClassificationPHI {
		return nil
	}
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	hour := e.Timestamp.In(loc).Hour()
	if hour >= d.BusinessStart && hour < d.BusinessEnd {
		return nil
	}
	return candidateAlert(d.ID(), e, domain.SeverityMedium, "OFF_HOURS",
		"PHI accessed outside configured business hours", now)
}

// DefaultDetectors returns the four detectors named in spec §4.11.
func DefaultDetectors() []Detector {
	return []Detector{
		NewFailedAuthDetector(),
		NewUnauthorizedAccessDetector(),
		NewBulkExportDetector(),
		NewOffHoursDetector(),
	}
}
