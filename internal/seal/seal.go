// Package seal implements the Sealer (spec §4.2): hashing and signing of an
// AuditEvent's canonical bytes, and verification of both on read.
package seal

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"auditcore/internal/canonical"
	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// KMSClient is the external collaborator that performs asymmetric signing
// and verification for the RSA algorithm variants (spec §9: the source's
// synchronous HMAC path and async KMS-RSA path are modeled as two
// strategies behind this one capability, not two APIs).
type KMSClient interface {
	Sign(ctx context.Context, algorithm domain.SigningAlgorithm, data []byte) ([]byte, error)
	Verify(ctx context.Context, algorithm domain.SigningAlgorithm, data, signature []byte) error
}

// Sealer computes and verifies the hash/signature pair described in spec §3.
type Sealer struct {
	hmacSecret []byte
	kms        KMSClient
}

// Option configures a Sealer.
type Option func(*Sealer)

// WithHMACSecret sets the locally held HMAC-SHA256 secret.
func WithHMACSecret(secret []byte) Option {
	return func(s *Sealer) { s.hmacSecret = secret }
}

// WithKMSClient sets the collaborator used for asymmetric algorithms.
func WithKMSClient(c KMSClient) Option {
	return func(s *Sealer) { s.kms = c }
}

// New constructs a Sealer.
func New(opts ...Option) *Sealer {
	s := &Sealer{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hash computes the 64-char lowercase hex SHA-256 of the event's canonical
// bytes and returns the populated hash/hashAlgorithm/eventVersion fields.
func (s *Sealer) Hash(e domain.AuditEvent) domain.AuditEvent {
	sum := sha256.Sum256(canonical.Bytes(e))
	e.Hash = hex.EncodeToString(sum[:])
	e.HashAlgorithm = domain.HashAlgorithmSHA256
	if e.EventVersion == "" {
		e.EventVersion = domain.DefaultEventVersion
	}
	return e
}

// Sign computes a signature over the event's canonical bytes using algorithm
// and returns the event with signature/algorithm populated. HMAC-SHA256 is
// computed locally; every other algorithm is forwarded to the KMS
// collaborator.
func (s *Sealer) Sign(ctx context.Context, e domain.AuditEvent, algorithm domain.SigningAlgorithm) (domain.AuditEvent, error) {
	data := canonical.Bytes(e)

	var sig []byte
	switch {
	case algorithm == domain.AlgorithmHMACSHA256 || algorithm == "":
		if len(s.hmacSecret) == 0 {
			return e, errs.New(errs.CodeConfig, "no HMAC secret configured")
		}
		mac := hmac.New(sha256.New, s.hmacSecret)
		mac.Write(data)
		sig = mac.Sum(nil)
		algorithm = domain.AlgorithmHMACSHA256
	case algorithm.IsAsymmetric():
		if s.kms == nil {
			return e, errs.New(errs.CodeConfig, "no KMS client configured for asymmetric signing")
		}
		out, err := s.kms.Sign(ctx, algorithm, data)
		if err != nil {
			return e, errs.Wrap(errs.CodeKMS, "KMS sign failed", err)
		}
		sig = out
	default:
		return e, errs.New(errs.CodeConfig, "unsupported signing algorithm")
	}

	e.Signature = base64.StdEncoding.EncodeToString(sig)
	e.Algorithm = algorithm
	return e, nil
}

// VerifyHash recomputes the hash from the event's canonical bytes and
// compares it against the stored value. A mismatch is a permanent
// IntegrityError; callers must not retry.
func (s *Sealer) VerifyHash(e domain.AuditEvent) error {
	sum := sha256.Sum256(canonical.Bytes(e))
	want := hex.EncodeToString(sum[:])
	if e.Hash != want {
		return errs.Wrap(errs.CodeIntegrity, "hash mismatch", errs.ErrIntegrity)
	}
	return nil
}

// VerifySignature reverses Sign. A verification failure is a permanent
// IntegrityError; callers must not retry.
func (s *Sealer) VerifySignature(ctx context.Context, e domain.AuditEvent) error {
	sig, err := base64.StdEncoding.DecodeString(e.Signature)
	if err != nil {
		return errs.Wrap(errs.CodeIntegrity, "signature is not valid base64", err)
	}
	data := canonical.Bytes(e)

	switch {
	case e.Algorithm == domain.AlgorithmHMACSHA256 || e.Algorithm == "":
		if len(s.hmacSecret) == 0 {
			return errs.New(errs.CodeConfig, "no HMAC secret configured")
		}
		mac := hmac.New(sha256.New, s.hmacSecret)
		mac.Write(data)
		if !hmac.Equal(mac.Sum(nil), sig) {
			return errs.Wrap(errs.CodeIntegrity, "signature mismatch", errs.ErrIntegrity)
		}
		return nil
	case e.Algorithm.IsAsymmetric():
		if s.kms == nil {
			return errs.New(errs.CodeConfig, "no KMS client configured for asymmetric verification")
		}
		if err := s.kms.Verify(ctx, e.Algorithm, data, sig); err != nil {
			return errs.Wrap(errs.CodeIntegrity, "KMS signature verification failed", errs.ErrIntegrity)
		}
		return nil
	default:
		return errs.New(errs.CodeConfig, "unsupported signing algorithm")
	}
}
