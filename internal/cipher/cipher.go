// Package cipher provides deterministic, reversible field-level encryption
// for personal identifiers.
//
// Encryption is AES-SIV (RFC 5297), so equal plaintexts under one key produce
// equal ciphertexts and can still be matched by merge key.
package cipher

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/salesload/pkg/core"
	"github.com/tink-crypto/tink-go/v2/daead/subtle"
)

// KeySize is the length of a raw key in bytes.
const KeySize = subtle.AESSIVKeySize

// ErrInvalidCiphertext is returned by Decrypt for malformed or tampered input.
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// associatedData binds ciphertexts to the column they are stored in.
var associatedData = []byte(core.ColPersonalID)

// Encrypter encrypts a single field value to text.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Cipher encrypts and decrypts field values under one key.
type Cipher struct {
	siv *subtle.AESSIV
}

// GenerateKey returns a new random key in its text form.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

// ParseKey decodes a key produced by GenerateKey.
func ParseKey(text string) ([]byte, error) {
	key, err := base64.URLEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("invalid encryption key: want %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// New creates a Cipher from a text key.
func New(keyText string) (*Cipher, error) {
	key, err := ParseKey(keyText)
	if err != nil {
		return nil, err
	}
	siv, err := subtle.NewAESSIV(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create aes-siv cipher: %w", err)
	}
	return &Cipher{siv: siv}, nil
}

// Encrypt returns the URL-safe base64 ciphertext of plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	out, err := c.siv.EncryptDeterministically([]byte(plaintext), associatedData)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	pt, err := c.siv.DecryptDeterministically(raw, associatedData)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(pt), nil
}

// Apply replaces PersonalID on every record with its ciphertext when
// encrypt is true. With encrypt false the batch is returned unchanged.
func Apply(records []core.RawRecord, encrypt bool, enc Encrypter, logger *slog.Logger) ([]core.RawRecord, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if !encrypt {
		logger.Debug("encryption disabled, skipping personal_id encryption")
		return records, nil
	}
	if enc == nil {
		return nil, errors.New("encryption enabled but no cipher configured")
	}

	logger.Debug("encrypting personal_id", slog.Int("rows", len(records)))
	for i := range records {
		ct, err := enc.Encrypt(records[i].PersonalID)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt personal_id: %w", err)
		}
		records[i].PersonalID = ct
	}
	return records, nil
}
