package pattern_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/pattern"
	"auditcore/pkg/domain"
)

func TestFailedAuthDetector_FiresAtThreshold(t *testing.T) {
	d := pattern.NewFailedAuthDetector()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e := domain.AuditEvent{Action: "auth.login.failure", Status: domain.StatusFailure, PrincipalID: "user-1"}

	var alert *domain.Alert
	for i := 0; i < 5; i++ {
		alert = d.Evaluate(e, base.Add(time.Duration(i)*time.Second))
	}
	require.NotNil(t, alert)
	assert.Equal(t, domain.SeverityHigh, alert.Severity)
}

func TestFailedAuthDetector_IgnoresNonAuthActions(t *testing.T) {
	d := pattern.NewFailedAuthDetector()
	e := domain.AuditEvent{Action: "data.export", Status: domain.StatusFailure, PrincipalID: "user-1"}
	now := time.Now()
	for i := 0; i < 10; i++ {
		assert.Nil(t, d.Evaluate(e, now))
	}
}

func TestFailedAuthDetector_WindowExpires(t *testing.T) {
	d := pattern.NewFailedAuthDetector()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	e := domain.AuditEvent{Action: "auth.login.failure", Status: domain.StatusFailure, PrincipalID: "user-2"}

	for i := 0; i < 4; i++ {
		assert.Nil(t, d.Evaluate(e, base.Add(time.Duration(i)*time.Second)))
	}
	// 5th failure arrives after the 300s window closed relative to the 1st.
	assert.Nil(t, d.Evaluate(e, base.Add(301*time.Second)))
}

func TestUnauthorizedAccessDetector_RequiresPHIAndFailure(t *testing.T) {
	d := pattern.NewUnauthorizedAccessDetector()
	base := time.Now()

	notPHI := domain.AuditEvent{Status: domain.StatusFailure, PrincipalID: "user-1"}
	assert.Nil(t, d.Evaluate(notPHI, base))

	phiSuccess := domain.AuditEvent{Status: domain.StatusSuccess, DataClassification: domain.ClassificationPHI, PrincipalID: "user-1"}
	assert.Nil(t, d.Evaluate(phiSuccess, base))

	phiFail := domain.AuditEvent{Status: domain.StatusFailure, DataClassification: domain.ClassificationPHI, PrincipalID: "user-3"}
	var alert *domain.Alert
	for i := 0; i < 3; i++ {
		alert = d.Evaluate(phiFail, base.Add(time.Duration(i)*time.Second))
	}
	require.NotNil(t, alert)
	assert.Equal(t, domain.SeverityCritical, alert.Severity)
}

func TestBulkExportDetector_TracksDistinctResources(t *testing.T) {
	d := pattern.NewBulkExportDetector()
	d.ResourceThreshold = 3
	base := time.Now()

	var alert *domain.Alert
	for i := 0; i < 3; i++ {
		e := domain.AuditEvent{
			Action:           "data.export",
			PrincipalID:      "user-1",
			TargetResourceID: string(rune('a' + i)),
		}
		alert = d.Evaluate(e, base.Add(time.Duration(i)*time.Millisecond))
	}
	require.NotNil(t, alert)
}

func TestBulkExportDetector_RepeatedSameResourceDoesNotFire(t *testing.T) {
	d := pattern.NewBulkExportDetector()
	d.ResourceThreshold = 3
	base := time.Now()
	e := domain.AuditEvent{Action: "data.export", PrincipalID: "user-1", TargetResourceID: "same"}
	for i := 0; i < 5; i++ {
		assert.Nil(t, d.Evaluate(e, base.Add(time.Duration(i)*time.Millisecond)))
	}
}

func TestOffHoursDetector(t *testing.T) {
	d := pattern.NewOffHoursDetector()
	business := domain.AuditEvent{
		DataClassification: domain.ClassificationPHI,
		Timestamp:          time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC),
	}
	assert.Nil(t, d.Evaluate(business, time.Now()))

	night := domain.AuditEvent{
		DataClassification: domain.ClassificationPHI,
		Timestamp:          time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC),
	}
	alert := d.Evaluate(night, time.Now())
	require.NotNil(t, alert)
	assert.Equal(t, domain.SeverityMedium, alert.Severity)
}

func TestOffHoursDetector_IgnoresNonPHI(t *testing.T) {
	d := pattern.NewOffHoursDetector()
	e := domain.AuditEvent{Timestamp: time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)}
	assert.Nil(t, d.Evaluate(e, time.Now()))
}
