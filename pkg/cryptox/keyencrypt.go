package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters used to stretch the master key material.
const (
	kdfMemory      = 19 * 1024 // KiB
	kdfIterations  = 2
	kdfParallelism = 1
	kdfKeyLength   = 32
	kdfSaltLength  = 16
)

// sealedMagic prefixes every sealed key blob so that a plain PEM file is
// never mistaken for ciphertext.
var sealedMagic = []byte("SBK1")

var (
	ErrNoMasterKey = errors.New("cryptox: master key not configured")
	ErrSealed      = errors.New("cryptox: sealed data is malformed")
)

// LoadMasterKey reads master key material from path if set, otherwise from
// the named environment variable. Surrounding whitespace is trimmed.
func LoadMasterKey(path, envVar string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 - operator supplied path
		if err != nil {
			return nil, fmt.Errorf("failed to read master key file: %w", err)
		}
		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			return nil, ErrNoMasterKey
		}
		return data, nil
	}

	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return []byte(v), nil
	}
	return nil, ErrNoMasterKey
}

// SealPrivateKey encrypts a PEM-encoded private key with AES-256-GCM under a
// key derived from master via Argon2id.
// The output format is: [magic][16-byte salt][12-byte nonce][ciphertext+tag]
func SealPrivateKey(master, pemData []byte) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrNoMasterKey
	}

	salt := make([]byte, kdfSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(master, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+len(salt)+len(nonce)+len(pemData)+gcm.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, pemData, sealedMagic), nil
}

// OpenPrivateKey decrypts data produced by SealPrivateKey.
func OpenPrivateKey(master, sealed []byte) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrNoMasterKey
	}
	if !IsSealed(sealed) {
		return nil, ErrSealed
	}

	rest := sealed[len(sealedMagic):]
	if len(rest) < kdfSaltLength {
		return nil, fmt.Errorf("%w: too short", ErrSealed)
	}
	salt, rest := rest[:kdfSaltLength], rest[kdfSaltLength:]

	gcm, err := newGCM(master, salt)
	if err != nil {
		return nil, err
	}

	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: too short", ErrSealed)
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, sealedMagic)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// IsSealed reports whether data carries the sealed key prefix.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealedMagic)
}

func newGCM(master, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(master, salt, kdfIterations, kdfMemory, kdfParallelism, kdfKeyLength)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
