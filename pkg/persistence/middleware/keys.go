package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/zalando/go-keyring"
)

// KeySource resolves the active encryption key.
type KeySource interface {
	Key() ([]byte, error)
}

// StaticKey is a KeySource over a fixed key.
type StaticKey []byte

func (k StaticKey) Key() ([]byte, error) {
	if len(k) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(k))
	}
	return k, nil
}

// KeyringSource keeps the key base64-encoded in the OS keyring under
// Service/User. A missing entry is generated and stored on first use.
type KeyringSource struct {
	Service string
	User    string
}

func (k KeyringSource) Key() ([]byte, error) {
	secret, err := keyring.Get(k.Service, k.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return k.create()
	}
	if err != nil {
		return nil, fmt.Errorf("read keyring %s/%s: %w", k.Service, k.User, err)
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode keyring secret: %w", err)
	}
	return StaticKey(key).Key()
}

func (k KeyringSource) create() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	if err := keyring.Set(k.Service, k.User, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("write keyring %s/%s: %w", k.Service, k.User, err)
	}
	return key, nil
}

// NewEncryptionFromSource builds an encryption middleware from the key a
// source resolves, with optional fallback keys for rotation.
func NewEncryptionFromSource(src KeySource, fallback ...[]byte) (Middleware, error) {
	key, err := src.Key()
	if err != nil {
		return nil, err
	}
	return NewEncryptionMiddleware(EncryptionConfig{ActiveKey: key, FallbackKeys: fallback}), nil
}
