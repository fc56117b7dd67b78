// Package pqcrypto exposes the minimal primitives the ratchet and handshake
// layers build on: HKDF-SHA256, SHA-256, an AEAD (ChaCha20-Poly1305),
// constant-time comparison, and best-effort secret wiping.
//
// Functions here never retain references to the key material they are
// given; callers own zeroing their own copies via Zero.
package pqcrypto
