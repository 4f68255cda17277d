package storage

import (
	"context"
	"fmt"
)

// Sealer encrypts and decrypts stored values.
type Sealer interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Encrypted seals every value before handing it to the wrapped store.
type Encrypted struct {
	inner  Storage
	sealer Sealer
}

func NewEncrypted(inner Storage, sealer Sealer) *Encrypted {
	return &Encrypted{inner: inner, sealer: sealer}
}

func (e *Encrypted) Get(ctx context.Context, key string) (string, error) {
	sealed, err := e.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	plain, err := e.sealer.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (e *Encrypted) Set(ctx context.Context, key, value string) error {
	sealed, err := e.sealer.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	return e.inner.Set(ctx, key, sealed)
}

func (e *Encrypted) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}
