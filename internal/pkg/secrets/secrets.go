// Package secrets protects account numbers and BVNs while stored in our own
// database. It is a separate scheme from the provider-wire TripleDES codec:
// Fernet tokens (AES-128-CBC + HMAC-SHA256 with embedded nonce/timestamp)
// under a key derived from the shared client secret. Plaintext passed through
// this package is never logged.
package secrets

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"

	"github.com/korehq/korebank/internal/pkg/env"
)

var (
	// ErrEncryptionFailed signals unavailable key material or a cipher fault.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrDecryptionFailed signals an authentication-tag mismatch or a
	// malformed envelope. Wrong plaintext is never returned silently.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Cipher encrypts and decrypts at-rest values with a fixed key.
type Cipher struct {
	key *fernet.Key
}

// New derives the at-rest key from a shared secret: the SHA-256 digest of the
// UTF-8 secret bytes used directly as key material.
func New(secret string) (*Cipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: secret is required", ErrEncryptionFailed)
	}
	sum := sha256.Sum256([]byte(secret))
	key, err := fernet.DecodeKey(base64.URLEncoding.EncodeToString(sum[:]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return &Cipher{key: key}, nil
}

// NewFromEnv builds a cipher keyed by ONEPIPE_CLIENT_SECRET.
func NewFromEnv() (*Cipher, error) {
	return New(env.GetEnv("ONEPIPE_CLIENT_SECRET", ""))
}

// Encrypt returns a text-encoded authenticated envelope for storage.
// Empty input encrypts to the empty string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plaintext), c.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return string(tok), nil
}

// Decrypt reverses Encrypt. Empty input decrypts to the empty string.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	// TTL 0 disables expiry: at-rest values live for the row's lifetime.
	plain := fernet.VerifyAndDecrypt([]byte(ciphertext), 0, []*fernet.Key{c.key})
	if plain == nil {
		return "", fmt.Errorf("%w: invalid token or corrupted data", ErrDecryptionFailed)
	}
	return string(plain), nil
}
