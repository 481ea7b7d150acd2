//go:build integration

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"auditcore/internal/queue"
	"auditcore/pkg/domain"
	"auditcore/pkg/testutil/containers"
)

type QueueSuite struct {
	suite.Suite
	backend *queue.Backend
}

func TestQueueSuite(t *testing.T) {
	suite.Run(t, new(QueueSuite))
}

func (s *QueueSuite) SetupSuite() {
	rc := containers.GetManager().GetRedis(s.T())
	s.backend = queue.NewBackend(rc.Client)
}

func (s *QueueSuite) SetupTest() {
	s.Require().NoError(containers.GetManager().GetRedis(s.T()).FlushAll(context.Background()))
}

func (s *QueueSuite) TestEnqueueAndDequeue() {
	ctx := context.Background()
	producer := queue.NewProducer(s.backend)

	event := domain.AuditEvent{
		Action: "auth.login.success",
		Status: domain.StatusSuccess,
		Hash:   "deadbeef",
	}

	jobID, err := producer.Enqueue(ctx, "audit-log", event, queue.EnqueueOptions{MaxAttempts: 5})
	s.Require().NoError(err)
	s.Require().NotEmpty(jobID.String())

	job, err := s.backend.Dequeue(ctx, "audit-log", 30*time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(job)
	s.Equal(jobID, job.ID)
	s.Equal(1, job.Attempts)
}

func (s *QueueSuite) TestEnqueueDedup() {
	ctx := context.Background()
	producer := queue.NewProducer(s.backend)

	event := domain.AuditEvent{Action: "auth.login.success", Status: domain.StatusSuccess, Hash: "same-hash"}

	first, err := producer.Enqueue(ctx, "audit-log", event, queue.EnqueueOptions{})
	s.Require().NoError(err)

	second, err := producer.Enqueue(ctx, "audit-log", event, queue.EnqueueOptions{})
	s.Require().NoError(err)

	s.Equal(first, second)
}

func (s *QueueSuite) TestDelayedPromotion() {
	ctx := context.Background()
	producer := queue.NewProducer(s.backend)

	event := domain.AuditEvent{Action: "auth.login.success", Status: domain.StatusSuccess, Hash: "delayed-hash"}
	_, err := producer.Enqueue(ctx, "audit-log", event, queue.EnqueueOptions{DelayMs: 1})
	s.Require().NoError(err)

	time.Sleep(10 * time.Millisecond)
	s.Require().NoError(s.backend.PromoteDelayed(ctx, "audit-log"))

	job, err := s.backend.Dequeue(ctx, "audit-log", 30*time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(job)
}

func (s *QueueSuite) TestPriorityOrdering() {
	ctx := context.Background()
	producer := queue.NewProducer(s.backend)

	normal := domain.AuditEvent{Action: "auth.login.success", Status: domain.StatusSuccess, Hash: "normal-hash"}
	urgent := domain.AuditEvent{Action: "auth.login.failure", Status: domain.StatusFailure, Hash: "urgent-hash"}

	_, err := producer.Enqueue(ctx, "audit-log", normal, queue.EnqueueOptions{Priority: 10})
	s.Require().NoError(err)
	urgentID, err := producer.Enqueue(ctx, "audit-log", urgent, queue.EnqueueOptions{Priority: -5})
	s.Require().NoError(err)

	job, err := s.backend.Dequeue(ctx, "audit-log", 30*time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(job)
	s.Equal(urgentID, job.ID, "lower priority value must dequeue first regardless of enqueue order")
	s.Equal(-5, job.Priority)
}

func (s *QueueSuite) TestMoveToDeadLetter() {
	ctx := context.Background()
	producer := queue.NewProducer(s.backend)

	event := domain.AuditEvent{Action: "auth.login.success", Status: domain.StatusSuccess, Hash: "dlq-hash"}
	_, err := producer.Enqueue(ctx, "audit-log", event, queue.EnqueueOptions{})
	s.Require().NoError(err)

	job, err := s.backend.Dequeue(ctx, "audit-log", 30*time.Second)
	s.Require().NoError(err)
	s.Require().NotNil(job)

	s.Require().NoError(s.backend.MoveToDeadLetter(ctx, "audit-log", *job, "dlq-hash"))

	// Dedup key is freed once dead-lettered, so re-submitting the same
	// event creates a fresh job rather than returning the dead one.
	newID, err := producer.Enqueue(ctx, "audit-log", event, queue.EnqueueOptions{})
	s.Require().NoError(err)
	s.NotEqual(job.ID, newID)
}
