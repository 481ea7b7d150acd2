//go:build integration

package alerting_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"auditcore/internal/alerting"
	"auditcore/pkg/domain"
	"auditcore/pkg/testutil/containers"
)

type fakeHandler struct {
	name string
	sent []domain.Alert
}

func (f *fakeHandler) Name() string { return f.name }
func (f *fakeHandler) Send(ctx context.Context, a domain.Alert) error {
	f.sent = append(f.sent, a)
	return nil
}
func (f *fakeHandler) List(ctx context.Context, filter alerting.Filter) ([]domain.Alert, error) {
	return f.sent, nil
}
func (f *fakeHandler) ListActive(ctx context.Context, org domain.OrganizationID) ([]domain.Alert, error) {
	return f.sent, nil
}
func (f *fakeHandler) CountActive(ctx context.Context, org domain.OrganizationID) (int, error) {
	return len(f.sent), nil
}
func (f *fakeHandler) Stats(ctx context.Context, org domain.OrganizationID) (alerting.Stats, error) {
	return alerting.Stats{Total: len(f.sent)}, nil
}
func (f *fakeHandler) Resolve(ctx context.Context, id domain.AlertID, by string, data map[string]any) error {
	return nil
}
func (f *fakeHandler) Acknowledge(ctx context.Context, id domain.AlertID, by string) error {
	return nil
}
func (f *fakeHandler) Dismiss(ctx context.Context, id domain.AlertID, by string) error { return nil }

type ServiceSuite struct {
	suite.Suite
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestSubmit_DedupesWithinCooldown() {
	rc := containers.GetManager().GetRedis(s.T())
	handler := &fakeHandler{name: "fake"}
	svc := alerting.New(rc.Client, nil, []alerting.Handler{handler})

	alert := domain.Alert{
		ID:          domain.NewAlertID(),
		Severity:    domain.SeverityHigh,
		Title:       "FAILED_AUTH",
		Description: "repeated failures",
		Source:      "user-1",
	}
	s.Require().NoError(svc.Submit(context.Background(), alert))
	s.Require().NoError(svc.Submit(context.Background(), alert))

	s.Len(handler.sent, 1)
}

func (s *ServiceSuite) TestSubmit_NotifiesHighPriorityOnCritical() {
	ctrl := gomock.NewController(s.T())
	notifier := NewMockHighPriorityNotifier(ctrl)

	rc := containers.GetManager().GetRedis(s.T())
	handler := &fakeHandler{name: "fake"}
	svc := alerting.New(rc.Client, nil, []alerting.Handler{handler}, alerting.WithHighPriorityNotifier(notifier))

	alert := domain.Alert{
		ID:          domain.NewAlertID(),
		Severity:    domain.SeverityCritical,
		Title:       "UNAUTHORIZED_ACCESS",
		Description: "PHI accessed without authorization",
		Source:      "user-2",
	}
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	s.Require().NoError(svc.Submit(context.Background(), alert))
}
