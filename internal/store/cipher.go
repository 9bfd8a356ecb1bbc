// internal/store/cipher.go
package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const keySize = 32 // AES-256

// Encrypted wraps a KV and seals every value with AES-GCM.
type Encrypted struct {
	inner KV
	gcm   cipher.AEAD
}

func NewEncrypted(inner KV, encryptionKey string) (*Encrypted, error) {
	if len(encryptionKey) < keySize {
		return nil, fmt.Errorf("encryption key must be at least %d bytes long", keySize)
	}

	block, err := aes.NewCipher([]byte(encryptionKey)[:keySize])
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Encrypted{inner: inner, gcm: gcm}, nil
}

func (e *Encrypted) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *Encrypted) open(data []byte) ([]byte, error) {
	if len(data) < e.gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:e.gcm.NonceSize()], data[e.gcm.NonceSize():]
	return e.gcm.Open(nil, nonce, ciphertext, nil)
}

func (e *Encrypted) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := e.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plaintext, err := e.open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %q: %w", key, err)
	}
	return plaintext, nil
}

func (e *Encrypted) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return e.inner.Update(ctx, key, func(current []byte) ([]byte, error) {
		var plaintext []byte
		if current != nil {
			var err error
			if plaintext, err = e.open(current); err != nil {
				return nil, fmt.Errorf("failed to decrypt %q: %w", key, err)
			}
		}
		next, err := fn(plaintext)
		if err != nil {
			return nil, err
		}
		return e.seal(next)
	})
}

func (e *Encrypted) Close() error {
	return e.inner.Close()
}
