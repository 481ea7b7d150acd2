package seal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/seal"
	"auditcore/pkg/domain"
)

func sampleEvent(t *testing.T) domain.AuditEvent {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, "2024-06-01T10:00:00.000Z")
	require.NoError(t, err)
	return domain.AuditEvent{
		Timestamp:      ts,
		Action:         "auth.login.success",
		Status:         domain.StatusSuccess,
		PrincipalID:    "user-1",
		OrganizationID: "org-1",
	}
}

func TestHash_ScenarioS1(t *testing.T) {
	s := seal.New(seal.WithHMACSecret([]byte("k")))
	e := s.Hash(sampleEvent(t))

	require.Len(t, e.Hash, 64)
	assert.Equal(t, domain.HashAlgorithmSHA256, e.HashAlgorithm)
	assert.NoError(t, s.VerifyHash(e))
}

func TestVerifyHash_DetectsTamper(t *testing.T) {
	s := seal.New(seal.WithHMACSecret([]byte("k")))
	e := s.Hash(sampleEvent(t))
	e.PrincipalID = "attacker"

	err := s.VerifyHash(e)
	require.Error(t, err)
	assert.Equal(t, domain.PrincipalID("attacker"), e.PrincipalID)
}

func TestSignAndVerify_HMACRoundTrip(t *testing.T) {
	s := seal.New(seal.WithHMACSecret([]byte("k")))
	e := s.Hash(sampleEvent(t))

	signed, err := s.Sign(context.Background(), e, domain.AlgorithmHMACSHA256)
	require.NoError(t, err)
	assert.Equal(t, domain.AlgorithmHMACSHA256, signed.Algorithm)
	assert.NoError(t, s.VerifySignature(context.Background(), signed))
}

func TestSign_MissingHMACSecret(t *testing.T) {
	s := seal.New()
	_, err := s.Sign(context.Background(), sampleEvent(t), domain.AlgorithmHMACSHA256)
	require.Error(t, err)
}

type stubKMS struct {
	signature []byte
	verifyErr error
}

func (k *stubKMS) Sign(ctx context.Context, algorithm domain.SigningAlgorithm, data []byte) ([]byte, error) {
	return k.signature, nil
}

func (k *stubKMS) Verify(ctx context.Context, algorithm domain.SigningAlgorithm, data, signature []byte) error {
	return k.verifyErr
}

func TestSignAndVerify_KMSRoundTrip(t *testing.T) {
	kms := &stubKMS{signature: []byte("0123456789012345678901234567890123456789")}
	s := seal.New(seal.WithKMSClient(kms))
	e := s.Hash(sampleEvent(t))

	signed, err := s.Sign(context.Background(), e, domain.AlgorithmRSASSAPSS256)
	require.NoError(t, err)
	assert.Equal(t, domain.AlgorithmRSASSAPSS256, signed.Algorithm)
	assert.NoError(t, s.VerifySignature(context.Background(), signed))
}
