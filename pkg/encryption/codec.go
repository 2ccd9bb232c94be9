// Package encryption provides the per-user envelope codec used for message
// and fact content at rest.
//
// Envelopes have the form "enc:v1:" + base64url(nonce || ciphertext || tag),
// sealed with AES-256-GCM under a key derived from a process-wide secret and
// the owning user's ID (HKDF-SHA256). Values without the prefix are legacy
// plaintext and pass through every read path unchanged.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Prefix marks a value as an envelope produced by Codec.Encrypt.
const Prefix = "enc:v1:"

const (
	keySize   = 32
	hkdfLabel = "rapport/encryption/v1"
)

var (
	// ErrNoSecret is returned by Encrypt when no secret is configured.
	ErrNoSecret = errors.New("encryption secret not configured")

	// ErrNoUser is returned by Encrypt for an empty user ID.
	ErrNoUser = errors.New("encryption requires a user id")
)

var encoding = base64.RawURLEncoding

// Codec encrypts and decrypts per-user envelopes.
type Codec struct {
	secret  []byte
	enabled bool
}

// New creates a Codec. enabled is the writer-side switch and is fixed for the
// life of the Codec. An empty secret leaves the Codec unable to encrypt, and
// every TryDecrypt becomes a passthrough.
func New(secret string, enabled bool) *Codec {
	return &Codec{
		secret:  []byte(secret),
		enabled: enabled,
	}
}

// Enabled reports whether writers should encrypt new records.
func (c *Codec) Enabled() bool {
	return c != nil && c.enabled && len(c.secret) > 0
}

// Encrypt seals plaintext for userID.
func (c *Codec) Encrypt(plaintext, userID string) (string, error) {
	if c == nil || len(c.secret) == 0 {
		return "", ErrNoSecret
	}
	if userID == "" {
		return "", ErrNoUser
	}

	aead, err := c.aead(userID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("reading nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(userID))
	return Prefix + encoding.EncodeToString(sealed), nil
}

// TryDecrypt opens an envelope sealed for userID. It never fails: values that
// are not envelopes, do not decode, fail authentication, or cannot be opened
// because no secret is configured are returned unchanged.
func (c *Codec) TryDecrypt(value, userID string) (out string) {
	out = value
	defer func() {
		if recover() != nil {
			out = value
		}
	}()

	if c == nil || len(c.secret) == 0 || !IsEnvelope(value) {
		return value
	}

	raw, err := encoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return value
	}

	aead, err := c.aead(userID)
	if err != nil {
		return value
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return value
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(userID))
	if err != nil {
		return value
	}
	return string(plain)
}

// Decode returns the readable form of a stored field: the decrypted value
// when encrypted is set, value itself otherwise.
func (c *Codec) Decode(value string, encrypted bool, userID string) string {
	if !encrypted {
		return value
	}
	return c.TryDecrypt(value, userID)
}

// Seal encrypts value for userID when the codec is enabled and userID is
// known. It reports whether the returned string is an envelope.
func (c *Codec) Seal(value, userID string) (string, bool, error) {
	if !c.Enabled() || userID == "" {
		return value, false, nil
	}
	sealed, err := c.Encrypt(value, userID)
	if err != nil {
		return "", false, err
	}
	return sealed, true, nil
}

// IsEnvelope reports whether value carries the envelope prefix.
func IsEnvelope(value string) bool {
	return strings.HasPrefix(value, Prefix)
}

func (c *Codec) aead(userID string) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	kdf := hkdf.New(sha256.New, c.secret, []byte(userID), []byte(hkdfLabel))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
