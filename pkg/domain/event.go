package domain

import "time"

// Status is the outcome recorded for an audited action.
type Status string

const (
	StatusAttempt Status = "attempt"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAttempt, StatusSuccess, StatusFailure:
		return true
	}
	return false
}

// DataClassification tags the sensitivity of the data an action touched.
type DataClassification string

const (
	ClassificationPublic       DataClassification = "PUBLIC"
	ClassificationInternal     DataClassification = "INTERNAL"
	ClassificationConfidential DataClassification = "CONFIDENTIAL"
	ClassificationPHI          DataClassification = "PHI"
)

func (c DataClassification) Valid() bool {
	switch c {
	case "", ClassificationPublic, ClassificationInternal, ClassificationConfidential, ClassificationPHI:
		return true
	}
	return false
}

// SigningAlgorithm identifies how an event's signature was produced.
type SigningAlgorithm string

const (
	AlgorithmHMACSHA256         SigningAlgorithm = "HMAC-SHA256"
	AlgorithmRSASSAPSS256       SigningAlgorithm = "RSASSA_PSS_SHA_256"
	AlgorithmRSASSAPSS384       SigningAlgorithm = "RSASSA_PSS_SHA_384"
	AlgorithmRSASSAPSS512       SigningAlgorithm = "RSASSA_PSS_SHA_512"
	AlgorithmRSASSAPKCS1V15_256 SigningAlgorithm = "RSASSA_PKCS1_V1_5_SHA_256"
	AlgorithmRSASSAPKCS1V15_384 SigningAlgorithm = "RSASSA_PKCS1_V1_5_SHA_384"
	AlgorithmRSASSAPKCS1V15_512 SigningAlgorithm = "RSASSA_PKCS1_V1_5_SHA_512"
)

// IsAsymmetric reports whether the algorithm must be forwarded to the KMS
// collaborator rather than computed locally.
func (a SigningAlgorithm) IsAsymmetric() bool {
	return a != AlgorithmHMACSHA256 && a != ""
}

// SessionContext captures the identity/session metadata for an action.
// Required whenever DataClassification is PHI under the HIPAA profile.
type SessionContext struct {
	SessionID string `json:"sessionId,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// IsZero reports whether no session fields were populated.
func (s SessionContext) IsZero() bool {
	return s == SessionContext{}
}

// AuditEvent is the immutable, sealed record described in spec §3. Once
// Hash is populated the critical-field tuple below must never change.
type AuditEvent struct {
	// Required
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Status    Status    `json:"status"`

	// Identity
	PrincipalID    PrincipalID     `json:"principalId,omitempty"`
	OrganizationID OrganizationID  `json:"organizationId,omitempty"`
	SessionContext *SessionContext `json:"sessionContext,omitempty"`

	// Target
	TargetResourceType string `json:"targetResourceType,omitempty"`
	TargetResourceID   string `json:"targetResourceId,omitempty"`

	// Narrative / critical-field member not listed among the named optional
	// fields in spec §3 but required by the canonical hash tuple.
	OutcomeDescription string `json:"outcomeDescription,omitempty"`

	// Compliance
	DataClassification DataClassification `json:"dataClassification,omitempty"`
	RetentionPolicy    string             `json:"retentionPolicy,omitempty"`
	CorrelationID      string             `json:"correlationId,omitempty"`
	LegalBasis         string             `json:"legalBasis,omitempty"`
	DataSubjectID      string             `json:"dataSubjectId,omitempty"`

	// Integrity
	Hash          string           `json:"hash,omitempty"`
	HashAlgorithm string           `json:"hashAlgorithm,omitempty"`
	Signature     string           `json:"signature,omitempty"`
	Algorithm     SigningAlgorithm `json:"algorithm,omitempty"`
	EventVersion  string           `json:"eventVersion,omitempty"`

	// Operational
	ProcessingLatencyMS int64      `json:"processingLatency,omitempty"`
	ArchivedAt          *time.Time `json:"archivedAt,omitempty"`

	// Source marks internally-generated events (e.g. the Alerting Service's
	// own persistence actions) so pattern detectors can exclude them by
	// default, breaking the cyclic-collaborator loop described in spec §9.
	Source string `json:"source,omitempty"`

	// Details is the extensible free-form bag. Unknown top-level fields from
	// producers pass through here rather than being rejected (spec §4.3).
	Details map[string]any `json:"details,omitempty"`
}

// DataSubjectRightsActions lists the actions that require DataSubjectID under
// the GDPR compliance profile (spec §4.3).
var DataSubjectRightsActions = map[string]bool{
	"data.export":         true,
	"data.delete":         true,
	"data.pseudonymize":   true,
	"data.access_request": true,
}

// IsInternallyGenerated reports whether the event originates from the
// Alerting Service's own actions rather than an external producer.
func (e AuditEvent) IsInternallyGenerated() bool {
	return e.Source == "audit-system"
}

const DefaultEventVersion = "1.0"
const HashAlgorithmSHA256 = "SHA-256"
