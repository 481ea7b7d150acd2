package alerting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/alerting"
	"auditcore/pkg/domain"
)

func TestConsoleHandler_SendAndListActive(t *testing.T) {
	h := alerting.NewConsoleHandler(nil)
	ctx := context.Background()

	a := domain.Alert{ID: domain.NewAlertID(), Status: domain.AlertActive, Severity: domain.SeverityHigh, Title: "t"}
	require.NoError(t, h.Send(ctx, a))

	active, err := h.ListActive(ctx, "")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestConsoleHandler_TransitionRejectsReopen(t *testing.T) {
	h := alerting.NewConsoleHandler(nil)
	ctx := context.Background()

	a := domain.Alert{ID: domain.NewAlertID(), Status: domain.AlertActive}
	require.NoError(t, h.Send(ctx, a))
	require.NoError(t, h.Resolve(ctx, a.ID, "ops", nil))

	err := h.Acknowledge(ctx, a.ID, "ops")
	assert.Error(t, err)
}

func TestConsoleHandler_Stats(t *testing.T) {
	h := alerting.NewConsoleHandler(nil)
	ctx := context.Background()

	require.NoError(t, h.Send(ctx, domain.Alert{ID: domain.NewAlertID(), Status: domain.AlertActive, Severity: domain.SeverityLow}))
	require.NoError(t, h.Send(ctx, domain.Alert{ID: domain.NewAlertID(), Status: domain.AlertActive, Severity: domain.SeverityCritical}))

	stats, err := h.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ActiveCount)
}
