package sig

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	"github.com/iyotee/pq-fsr/internal/pqcrypto"
)

const (
	// PublicKeySize is the encoded signature public key size in bytes.
	PublicKeySize = mldsa65.PublicKeySize
	// PrivateKeySize is the encoded signature private key size in bytes.
	PrivateKeySize = mldsa65.PrivateKeySize
	// SignatureSize is the encoded signature size in bytes.
	SignatureSize = mldsa65.SignatureSize
)

// PublicKey is an encoded signature public key.
type PublicKey [PublicKeySize]byte

// Bytes returns the encoded key.
func (p PublicKey) Bytes() []byte { return p[:] }

// PrivateKey is an encoded signature private key.
type PrivateKey [PrivateKeySize]byte

// Bytes returns the encoded key.
func (p PrivateKey) Bytes() []byte { return p[:] }

// Zero overwrites the private key in place.
func (p *PrivateKey) Zero() { pqcrypto.Zero(p[:]) }

// PublicKeyFromBytes decodes an encoded public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("sig: public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// GenerateKeyPair creates a fresh signature key pair.
func GenerateKeyPair() (PublicKey, PrivateKey, error) {
	pub, priv, err := mldsa65.GenerateKey(rand.Reader)
	if err != nil {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("sig: generate key pair: %w", err)
	}

	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("sig: marshal public key: %w", err)
	}
	privBytes, err := priv.MarshalBinary()
	if err != nil {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("sig: marshal private key: %w", err)
	}

	var pk PublicKey
	var sk PrivateKey
	copy(pk[:], pubBytes)
	copy(sk[:], privBytes)
	return pk, sk, nil
}

// Sign signs msg with priv, returning the detached signature.
func Sign(priv PrivateKey, msg []byte) ([]byte, error) {
	scheme := mldsa65.Scheme()
	k, err := scheme.UnmarshalBinaryPrivateKey(priv[:])
	if err != nil {
		return nil, fmt.Errorf("sig: unmarshal private key: %w", err)
	}
	mldsaPriv, ok := k.(*mldsa65.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("sig: unexpected private key type")
	}

	out := make([]byte, SignatureSize)
	if err := mldsa65.SignTo(mldsaPriv, msg, nil, false, out); err != nil {
		return nil, fmt.Errorf("sig: sign: %w", err)
	}
	return out, nil
}

// Verify reports whether sig is a valid signature over msg under pub.
func Verify(pub PublicKey, msg, signature []byte) bool {
	scheme := mldsa65.Scheme()
	k, err := scheme.UnmarshalBinaryPublicKey(pub[:])
	if err != nil {
		return false
	}
	mldsaPub, ok := k.(*mldsa65.PublicKey)
	if !ok {
		return false
	}
	return mldsa65.Verify(mldsaPub, msg, nil, signature)
}
