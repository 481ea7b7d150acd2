package validate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/validate"
	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

func TestValidate_ScenarioS2_HIPAAViolation(t *testing.T) {
	e := domain.AuditEvent{
		Timestamp:          time.Now(),
		Action:             "record.read",
		Status:             domain.StatusSuccess,
		DataClassification: domain.ClassificationPHI,
		PrincipalID:        "user-1",
		TargetResourceType: "record",
	}

	_, err := validate.New().Validate(e, validate.Options{Profiles: []validate.Profile{validate.ProfileHIPAA}})
	require.Error(t, err)
	assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
}

func TestValidate_HIPAASatisfied(t *testing.T) {
	e := domain.AuditEvent{
		Timestamp:          time.Now(),
		Action:             "record.read",
		Status:             domain.StatusSuccess,
		DataClassification: domain.ClassificationPHI,
		PrincipalID:        "user-1",
		TargetResourceType: "record",
		SessionContext:     &domain.SessionContext{SessionID: "sess-1"},
	}

	_, err := validate.New().Validate(e, validate.Options{Profiles: []validate.Profile{validate.ProfileHIPAA}})
	assert.NoError(t, err)
}

func TestValidate_GDPRRequiresLegalBasis(t *testing.T) {
	e := domain.AuditEvent{
		Timestamp: time.Now(),
		Action:    "data.export",
		Status:    domain.StatusSuccess,
	}

	_, err := validate.New().Validate(e, validate.Options{Profiles: []validate.Profile{validate.ProfileGDPR}})
	require.Error(t, err)
}

func TestValidate_GDPRDataSubjectRightsAction(t *testing.T) {
	e := domain.AuditEvent{
		Timestamp:  time.Now(),
		Action:     "data.export",
		Status:     domain.StatusSuccess,
		LegalBasis: "consent",
	}

	_, err := validate.New().Validate(e, validate.Options{Profiles: []validate.Profile{validate.ProfileGDPR}})
	require.Error(t, err)

	e.DataSubjectID = "subject-1"
	_, err = validate.New().Validate(e, validate.Options{Profiles: []validate.Profile{validate.ProfileGDPR}})
	assert.NoError(t, err)
}

func TestValidate_ActionPattern(t *testing.T) {
	e := domain.AuditEvent{
		Timestamp: time.Now(),
		Action:    "Invalid-Action!",
		Status:    domain.StatusSuccess,
	}

	_, err := validate.New().Validate(e, validate.Options{})
	require.Error(t, err)
}

func TestValidate_DetailsDepthExceeded(t *testing.T) {
	e := domain.AuditEvent{
		Timestamp: time.Now(),
		Action:    "auth.login.success",
		Status:    domain.StatusSuccess,
		Details: map[string]any{
			"a": map[string]any{
				"b": map[string]any{
					"c": map[string]any{
						"d": "too deep",
					},
				},
			},
		},
	}

	_, err := validate.New().Validate(e, validate.Options{})
	require.Error(t, err)
}

func TestValidate_DetailsCycleRejected(t *testing.T) {
	cyclic := map[string]any{"self": nil}
	cyclic["self"] = cyclic

	e := domain.AuditEvent{
		Timestamp: time.Now(),
		Action:    "auth.login.success",
		Status:    domain.StatusSuccess,
		Details:   map[string]any{"nested": cyclic},
	}

	_, err := validate.New().Validate(e, validate.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidate_StringLengthCap(t *testing.T) {
	long := make([]byte, validate.DefaultMaxStringLength+1)
	for i := range long {
		long[i] = 'a'
	}
	e := domain.AuditEvent{
		Timestamp:          time.Now(),
		Action:             "auth.login.success",
		Status:             domain.StatusSuccess,
		OutcomeDescription: string(long),
	}

	_, err := validate.New().Validate(e, validate.Options{})
	require.Error(t, err)
}

func TestValidate_UnknownFieldsPassThroughDetails(t *testing.T) {
	e := domain.AuditEvent{
		Timestamp: time.Now(),
		Action:    "auth.login.success",
		Status:    domain.StatusSuccess,
		Details:   map[string]any{"futureField": "value"},
	}

	got, err := validate.New().Validate(e, validate.Options{})
	require.NoError(t, err)
	assert.Equal(t, "value", got.Details["futureField"])
}
