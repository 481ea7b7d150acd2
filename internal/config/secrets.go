package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"auditcore/pkg/errs"
)

const (
	pbkdf2Iterations = 100_000
	aes256KeyLen     = 32
)

// SecretsCodec encrypts/decrypts config values stored at rest (spec §4.15).
// Exactly one implementation is wired per deployment: local AES-256-GCM or
// KMS-delegated, never both (see the Open Question decision in DESIGN.md).
type SecretsCodec interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// LocalSecretsCodec encrypts with AES-256-GCM using a key derived via PBKDF2
// from AUDIT_CONFIG_SALT (spec §4.15, §6 environment inputs).
type LocalSecretsCodec struct {
	key []byte
}

// NewLocalSecretsCodec derives the AES key from passphrase and salt.
// pbkdf2.Key derives exactly aes256KeyLen=32 bytes for AES-256.
func NewLocalSecretsCodec(passphrase, salt string) *LocalSecretsCodec {
	key := pbkdf2.Key([]byte(passphrase), []byte(salt), pbkdf2Iterations, aes256KeyLen, sha256.New)
	return &LocalSecretsCodec{key: key}
}

func (c *LocalSecretsCodec) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (c *LocalSecretsCodec) Encrypt(plaintext []byte) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", errs.Wrap(errs.CodeConfig, "init AES-GCM cipher failed", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errs.Wrap(errs.CodeConfig, "generate nonce failed", err)
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *LocalSecretsCodec) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfig, "decode ciphertext failed", err)
	}
	gcm, err := c.gcm()
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfig, "init AES-GCM cipher failed", err)
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errs.New(errs.CodeConfig, "ciphertext shorter than nonce")
	}
	nonce, body := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, errs.Wrap(errs.CodeConfig, "decrypt secret failed", err)
	}
	return plaintext, nil
}

// KMSEncryptor is the delegated-encryption collaborator contract.
type KMSEncryptor interface {
	Encrypt(plaintext []byte) (ciphertext string, err error)
	Decrypt(ciphertext string) (plaintext []byte, err error)
}

// KMSSecretsCodec delegates secrets-at-rest to an external KMS collaborator
// instead of deriving a local key (spec §4.15's mutually-exclusive option).
type KMSSecretsCodec struct {
	kms KMSEncryptor
}

// NewKMSSecretsCodec wraps a KMS collaborator.
func NewKMSSecretsCodec(kms KMSEncryptor) *KMSSecretsCodec {
	return &KMSSecretsCodec{kms: kms}
}

func (c *KMSSecretsCodec) Encrypt(plaintext []byte) (string, error) { return c.kms.Encrypt(plaintext) }
func (c *KMSSecretsCodec) Decrypt(ciphertext string) ([]byte, error) {
	return c.kms.Decrypt(ciphertext)
}

// NewSecretsCodec picks the codec per spec §6 environment inputs: if
// kmsKey is set, secrets are delegated to kms (mutually exclusive with the
// local passphrase); otherwise if salt+passphrase are both set, secrets are
// encrypted locally; otherwise secrets-at-rest is disabled (nil codec) per
// the "unset secrets disable the feature, not fail start-up" rule.
func NewSecretsCodec(kmsKey string, kms KMSEncryptor, passphrase, salt string) SecretsCodec {
	if kmsKey != "" && kms != nil {
		return NewKMSSecretsCodec(kms)
	}
	if passphrase != "" && salt != "" {
		return NewLocalSecretsCodec(passphrase, salt)
	}
	return nil
}
