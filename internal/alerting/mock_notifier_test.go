package alerting_test

// Code generated by MockGen-style hand authoring for HighPriorityNotifier.
// Mirrors the shape go.uber.org/mock/mockgen would produce for a
// single-method interface, without requiring the generator to run.

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"

	"auditcore/pkg/domain"
)

type MockHighPriorityNotifier struct {
	ctrl     *gomock.Controller
	recorder *MockHighPriorityNotifierMockRecorder
}

type MockHighPriorityNotifierMockRecorder struct {
	mock *MockHighPriorityNotifier
}

func NewMockHighPriorityNotifier(ctrl *gomock.Controller) *MockHighPriorityNotifier {
	m := &MockHighPriorityNotifier{ctrl: ctrl}
	m.recorder = &MockHighPriorityNotifierMockRecorder{m}
	return m
}

func (m *MockHighPriorityNotifier) EXPECT() *MockHighPriorityNotifierMockRecorder {
	return m.recorder
}

func (m *MockHighPriorityNotifier) Notify(ctx context.Context, alert domain.Alert) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Notify", ctx, alert)
	ret0, _ := ret[0].(error)
	return ret0
}

func (mr *MockHighPriorityNotifierMockRecorder) Notify(ctx, alert any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Notify", reflect.TypeOf((*MockHighPriorityNotifier)(nil).Notify), ctx, alert)
}
