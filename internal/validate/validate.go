// Package validate implements the Validator (spec §4.3): schema, field, and
// compliance-profile checks applied before an event is sealed.
package validate

import (
	"fmt"
	"reflect"
	"regexp"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// Profile names a compliance rule set that may be layered onto the base
// validation rules (spec glossary: "Compliance profile").
type Profile string

const (
	ProfileHIPAA Profile = "HIPAA"
	ProfileGDPR  Profile = "GDPR"
)

const (
	// DefaultMaxStringLength is the cap applied to every string field
	// absent an override (spec §4.3).
	DefaultMaxStringLength = 10_000
	maxDetailsDepth        = 3
)

var actionPattern = regexp.MustCompile(`^[a-z][a-z0-9._-]*$`)

// Options configures a single Validate call. MaxStringLength of zero uses
// DefaultMaxStringLength.
type Options struct {
	Profiles        []Profile
	MaxStringLength int
}

// Validator applies spec §4.3's checks to a partially constructed event.
type Validator struct{}

// New constructs a Validator. It is stateless; one instance can be shared.
func New() *Validator { return &Validator{} }

// Validate sanitizes e in place (unknown top-level fields are assumed to
// already live in e.Details by the caller) and returns either the sanitized
// event or the first violation found, wrapped as a *errs.Error with
// errs.CodeValidation.
func (v *Validator) Validate(e domain.AuditEvent, opts Options) (domain.AuditEvent, error) {
	maxLen := opts.MaxStringLength
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLength
	}

	if e.Timestamp.IsZero() {
		return e, validationError("timestamp is required")
	}
	if err := checkLen("action", e.Action, maxLen); err != nil {
		return e, err
	}
	if e.Action == "" || !actionPattern.MatchString(e.Action) {
		return e, validationError(fmt.Sprintf("action %q does not match ^[a-z][a-z0-9._-]*$", e.Action))
	}
	if !e.Status.Valid() {
		return e, validationError(fmt.Sprintf("status %q is not a recognized status", e.Status))
	}
	if !e.DataClassification.Valid() {
		return e, validationError(fmt.Sprintf("dataClassification %q is not recognized", e.DataClassification))
	}

	for name, s := range map[string]string{
		"principalId":        string(e.PrincipalID),
		"organizationId":     string(e.OrganizationID),
		"targetResourceType": e.TargetResourceType,
		"targetResourceId":   e.TargetResourceID,
		"outcomeDescription": e.OutcomeDescription,
		"correlationId":      e.CorrelationID,
		"retentionPolicy":    e.RetentionPolicy,
		"legalBasis":         e.LegalBasis,
		"dataSubjectId":      e.DataSubjectID,
	} {
		if err := checkLen(name, s, maxLen); err != nil {
			return e, err
		}
	}

	if depth, cyclic := detailsDepth(e.Details, map[uintptr]bool{}, 0); cyclic {
		return e, validationError("details contains a cycle")
	} else if depth > maxDetailsDepth {
		return e, validationError(fmt.Sprintf("details nesting depth %d exceeds max %d", depth, maxDetailsDepth))
	}

	for _, p := range opts.Profiles {
		switch p {
		case ProfileHIPAA:
			if err := checkHIPAA(e); err != nil {
				return e, err
			}
		case ProfileGDPR:
			if err := checkGDPR(e); err != nil {
				return e, err
			}
		}
	}

	return e, nil
}

func checkHIPAA(e domain.AuditEvent) error {
	if e.DataClassification != domain.ClassificationPHI {
		return nil
	}
	if e.PrincipalID == "" || e.TargetResourceType == "" || e.SessionContext == nil || e.SessionContext.IsZero() {
		return validationError("PHI events require sessionContext")
	}
	return nil
}

func checkGDPR(e domain.AuditEvent) error {
	if e.LegalBasis == "" {
		return validationError("GDPR profile requires legalBasis")
	}
	if domain.DataSubjectRightsActions[e.Action] && e.DataSubjectID == "" {
		return validationError(fmt.Sprintf("action %q requires dataSubjectId under GDPR profile", e.Action))
	}
	return nil
}

func checkLen(field, value string, max int) error {
	if len(value) > max {
		return validationError(fmt.Sprintf("%s exceeds max length %d", field, max))
	}
	return nil
}

// detailsDepth walks a details map, returning its max nesting depth. seen
// tracks the map/slice pointers on the current recursion path (pushed on
// entry, popped before returning) so a reference cycle formed by a
// programmatic producer reusing a shared substructure (e.g. m["x"] = m) is
// detected and rejected instead of recursing forever.
func detailsDepth(v any, seen map[uintptr]bool, depth int) (int, bool) {
	switch t := v.(type) {
	case map[string]any:
		ptr := reflect.ValueOf(t).Pointer()
		if ptr != 0 {
			if seen[ptr] {
				return 0, true
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		max := depth
		for _, child := range t {
			d, cyclic := detailsDepth(child, seen, depth+1)
			if cyclic {
				return 0, true
			}
			if d > max {
				max = d
			}
		}
		return max, false
	case []any:
		ptr := reflect.ValueOf(t).Pointer()
		if ptr != 0 {
			if seen[ptr] {
				return 0, true
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		max := depth
		for _, child := range t {
			d, cyclic := detailsDepth(child, seen, depth+1)
			if cyclic {
				return 0, true
			}
			if d > max {
				max = d
			}
		}
		return max, false
	default:
		return depth, false
	}
}

func validationError(msg string) error {
	return errs.Wrap(errs.CodeValidation, msg, errs.ErrValidation)
}
