package kem

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	"github.com/iyotee/pq-fsr/internal/pqcrypto"
)

const (
	// PublicKeySize is the encoded KEM public key size in bytes.
	PublicKeySize = mlkem768.PublicKeySize
	// PrivateKeySize is the encoded KEM private key size in bytes.
	PrivateKeySize = mlkem768.PrivateKeySize
	// CiphertextSize is the encoded KEM ciphertext size in bytes.
	CiphertextSize = mlkem768.CiphertextSize
	// SharedSecretSize is the size of the shared secret recovered by
	// encapsulation/decapsulation.
	SharedSecretSize = mlkem768.SharedKeySize
)

// PublicKey is an encoded KEM public key.
type PublicKey [PublicKeySize]byte

// Bytes returns the encoded key.
func (p PublicKey) Bytes() []byte { return p[:] }

// PrivateKey is an encoded KEM private key.
type PrivateKey [PrivateKeySize]byte

// Bytes returns the encoded key.
func (p PrivateKey) Bytes() []byte { return p[:] }

// Zero overwrites the private key in place.
func (p *PrivateKey) Zero() { pqcrypto.Zero(p[:]) }

// PublicKeyFromBytes decodes an encoded public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("kem: public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// PrivateKeyFromBytes decodes an encoded private key.
func PrivateKeyFromBytes(b []byte) (PrivateKey, error) {
	var sk PrivateKey
	if len(b) != PrivateKeySize {
		return sk, fmt.Errorf("kem: private key must be %d bytes, got %d", PrivateKeySize, len(b))
	}
	copy(sk[:], b)
	return sk, nil
}

// GenerateKeyPair creates a fresh KEM key pair.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	pk, sk, err := mlkem768.GenerateKeyPair(rand.Reader)
	if err != nil {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("kem: generate key pair: %w", err)
	}

	var pub PublicKey
	var priv PrivateKey
	pk.Pack(pub[:])
	sk.Pack(priv[:])
	return pub, priv, nil
}

// Encapsulate generates a ciphertext and shared secret against pub.
func Encapsulate(pub PublicKey) (ciphertext, sharedSecret []byte, err error) {
	var pk mlkem768.PublicKey
	if err := pk.Unpack(pub[:]); err != nil {
		return nil, nil, fmt.Errorf("kem: unpack public key: %w", err)
	}

	ct := make([]byte, CiphertextSize)
	ss := make([]byte, SharedSecretSize)
	pk.EncapsulateTo(ct, ss, nil)
	return ct, ss, nil
}

// Decapsulate recovers the shared secret encapsulated in ciphertext using
// priv.
func Decapsulate(priv PrivateKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != CiphertextSize {
		return nil, fmt.Errorf("kem: ciphertext must be %d bytes, got %d", CiphertextSize, len(ciphertext))
	}

	var sk mlkem768.PrivateKey
	if err := sk.Unpack(priv[:]); err != nil {
		return nil, fmt.Errorf("kem: unpack private key: %w", err)
	}

	ss := make([]byte, SharedSecretSize)
	sk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}
