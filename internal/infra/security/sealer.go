package security

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

	"vpn-key-subscription/internal/domain/ports/adapter"
)

var (
	_ adapter.SecretSealer = (*Sealer)(nil)
	_ adapter.SecretSealer = Plaintext{}
)

// sealedPrefix marks blobs produced by Sealer so that rows written before a
// key was configured still decode.
const sealedPrefix = "enc:v1:"

// Sealer encrypts credential config blobs with AES-256-GCM.
// Stored format: "enc:v1:" + base64(nonce || ciphertext).
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer derives a 32 byte key from secret. Raw 16/24/32 byte keys are
// used as is.
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("encryption key is empty")
	}
	k := []byte(secret)
	switch len(k) {
	case 16, 24, 32:
	default:
		sum := sha256.Sum256(k)
		k = sum[:]
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

func (s *Sealer) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ct := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ct), nil
}

func (s *Sealer) Decrypt(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	ns := s.gcm.NonceSize()
	if len(data) < ns {
		return "", errors.New("ciphertext too short")
	}
	pt, err := s.gcm.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}

// Plaintext stores blobs as is. Used when no encryption key is configured.
type Plaintext struct{}

func (Plaintext) Encrypt(s string) (string, error) { return s, nil }

func (Plaintext) Decrypt(s string) (string, error) {
	if strings.HasPrefix(s, sealedPrefix) {
		return "", errors.New("blob is sealed but no encryption key is configured")
	}
	return s, nil
}

// NewFromKey returns a Sealer when key is set, Plaintext otherwise.
func NewFromKey(key string) (adapter.SecretSealer, error) {
	if key == "" {
		return Plaintext{}, nil
	}
	return NewSealer(key)
}
