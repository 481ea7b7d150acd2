//go:build integration

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"auditcore/internal/deadletter"
	"auditcore/internal/storage"
	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
	"auditcore/pkg/testutil/containers"
)

const deadLetterSchemaDDL = `
CREATE TABLE IF NOT EXISTS dead_letter_entries (
	job_id VARCHAR(64) PRIMARY KEY,
	queue_name VARCHAR(255) NOT NULL,
	job JSONB NOT NULL,
	failure_chain JSONB NOT NULL,
	first_attempt_at TIMESTAMPTZ NOT NULL,
	last_attempt_at TIMESTAMPTZ NOT NULL
)`

type DeadLetterStoreSuite struct {
	suite.Suite
	store *storage.DeadLetterStore
}

func TestDeadLetterStoreSuite(t *testing.T) {
	suite.Run(t, new(DeadLetterStoreSuite))
}

func (s *DeadLetterStoreSuite) SetupSuite() {
	pg := containers.GetManager().GetPostgres(s.T())
	ctx := context.Background()

	_, err := pg.DB.ExecContext(ctx, deadLetterSchemaDDL)
	s.Require().NoError(err)

	pool, err := pgxpool.New(ctx, pg.DSN)
	s.Require().NoError(err)

	s.store = storage.NewDeadLetterStore(storage.NewDBClientForPool(pool))
}

func (s *DeadLetterStoreSuite) TestSaveListDelete() {
	ctx := context.Background()
	jobID := domain.NewJobID()
	entry := deadletter.Entry{
		Job:   domain.QueueJob{ID: jobID, State: domain.JobDeadLettered, Attempts: 5},
		Queue: "audit-log",
		FailureChain: []deadletter.FailureEvent{{
			ErrorClass: errs.CodeValidation,
			Message:    "schema violation",
			OccurredAt: time.Now(),
		}},
		FirstAttemptAt: time.Now().Add(-time.Hour),
		LastAttemptAt:  time.Now(),
	}

	s.Require().NoError(s.store.Save(ctx, entry))

	entries, err := s.store.List(ctx, "audit-log", 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(jobID, entries[0].Job.ID)
	s.Equal("schema violation", entries[0].FailureChain[0].Message)

	s.Require().NoError(s.store.Delete(ctx, jobID))
	entries, err = s.store.List(ctx, "audit-log", 10)
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *DeadLetterStoreSuite) TestDeleteOlderThan() {
	ctx := context.Background()
	stale := deadletter.Entry{
		Job:            domain.QueueJob{ID: domain.NewJobID()},
		Queue:          "audit-log",
		FirstAttemptAt: time.Now().Add(-48 * time.Hour),
		LastAttemptAt:  time.Now().Add(-48 * time.Hour),
	}
	s.Require().NoError(s.store.Save(ctx, stale))

	n, err := s.store.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	s.Require().NoError(err)
	s.GreaterOrEqual(n, 1)
}
