package pqcrypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the AEAD key size in bytes.
	KeySize = chacha20poly1305.KeySize
	// NonceSize is the AEAD nonce size in bytes.
	NonceSize = chacha20poly1305.NonceSize
	// TagSize is the AEAD authentication tag size in bytes.
	TagSize = chacha20poly1305.Overhead
)

// HKDF derives l bytes via HKDF-SHA256 from ikm, salt and info. An empty
// salt is replaced with 32 zero bytes, matching the HKDF-SHA256 extract
// step's own zero-salt default made explicit.
func HKDF(salt, ikm, info []byte, l int) ([]byte, error) {
	if l <= 0 {
		return nil, fmt.Errorf("pqcrypto: HKDF: non-positive length %d", l)
	}
	if len(salt) == 0 {
		salt = make([]byte, sha256.Size)
	}
	out := make([]byte, l)
	r := hkdf.New(sha256.New, ikm, salt, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("pqcrypto: HKDF: %w", err)
	}
	return out, nil
}

// SHA256 returns the SHA-256 digest of b.
func SHA256(b ...[]byte) [32]byte {
	h := sha256.New()
	for _, part := range b {
		h.Write(part)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Seal encrypts pt with key and nonce, authenticating ad, and returns
// ciphertext with the AEAD tag appended.
func Seal(key, nonce, pt, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("pqcrypto: Seal: %w", err)
	}
	return aead.Seal(nil, nonce, pt, ad), nil
}

// Open decrypts ct (ciphertext with appended tag) with key and nonce,
// authenticating ad.
func Open(key, nonce, ct, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("pqcrypto: Open: %w", err)
	}
	return aead.Open(nil, nonce, ct, ad)
}

// ConstantTimeEqual reports whether a and b hold the same bytes, in time
// independent of where they first differ.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zero overwrites b with zeros. Best-effort: it cannot stop the garbage
// collector from having copied b's contents elsewhere already, but it
// bounds the lifetime of the buffer the caller handed us.
//
//go:noinline
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
