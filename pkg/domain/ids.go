package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// EventID identifies a sealed audit event. Always a UUIDv4 assigned at
// ingestion time, never supplied by the producer.
type EventID uuid.UUID

// NewEventID generates a fresh EventID.
func NewEventID() EventID { return EventID(uuid.New()) }

// ParseEventID validates and parses an EventID from its string form.
func ParseEventID(s string) (EventID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EventID{}, fmt.Errorf("parse event id: %w", err)
	}
	return EventID(u), nil
}

func (e EventID) String() string { return uuid.UUID(e).String() }
func (e EventID) IsNil() bool    { return e == EventID{} }

// PrincipalID identifies the actor who performed an audited action.
type PrincipalID string

// OrganizationID scopes an event, preset, or alert to a tenant.
type OrganizationID string

// IsNil reports whether the organization is unset (default/global scope).
func (o OrganizationID) IsNil() bool { return o == "" }

// JobID identifies a QueueJob envelope.
type JobID uuid.UUID

func NewJobID() JobID { return JobID(uuid.New()) }

func ParseJobID(s string) (JobID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return JobID{}, fmt.Errorf("parse job id: %w", err)
	}
	return JobID(u), nil
}

func (j JobID) String() string { return uuid.UUID(j).String() }

// AlertID identifies a produced Alert record.
type AlertID uuid.UUID

func NewAlertID() AlertID { return AlertID(uuid.New()) }

// ParseAlertID validates and parses an AlertID from its string form.
func ParseAlertID(s string) (AlertID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return AlertID{}, fmt.Errorf("parse alert id: %w", err)
	}
	return AlertID(u), nil
}

func (a AlertID) String() string { return uuid.UUID(a).String() }
