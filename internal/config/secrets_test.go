package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditcore/internal/config"
)

func TestLocalSecretsCodec_RoundTrip(t *testing.T) {
	c := config.NewLocalSecretsCodec("passphrase", "AUDIT_CONFIG_SALT_value")

	ciphertext, err := c.Encrypt([]byte("super-secret-kms-key"))
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)

	plaintext, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "super-secret-kms-key", string(plaintext))
}

func TestLocalSecretsCodec_WrongPassphraseFailsDecrypt(t *testing.T) {
	c := config.NewLocalSecretsCodec("passphrase", "salt")
	ciphertext, err := c.Encrypt([]byte("data"))
	require.NoError(t, err)

	wrong := config.NewLocalSecretsCodec("other-passphrase", "salt")
	_, err = wrong.Decrypt(ciphertext)
	assert.Error(t, err)
}

type fakeKMS struct{}

func (fakeKMS) Encrypt(plaintext []byte) (string, error) { return "kms:" + string(plaintext), nil }
func (fakeKMS) Decrypt(ciphertext string) ([]byte, error) { return []byte(ciphertext[4:]), nil }

func TestNewSecretsCodec_PrefersKMSWhenConfigured(t *testing.T) {
	codec := config.NewSecretsCodec("kms-key-id", fakeKMS{}, "passphrase", "salt")
	require.NotNil(t, codec)

	ct, err := codec.Encrypt([]byte("value"))
	require.NoError(t, err)
	assert.Equal(t, "kms:value", ct)
}

func TestNewSecretsCodec_DisabledWhenNothingConfigured(t *testing.T) {
	codec := config.NewSecretsCodec("", nil, "", "")
	assert.Nil(t, codec)
}
