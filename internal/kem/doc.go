// Package kem adapts circl's ML-KEM-768 implementation to the minimal
// byte-oriented interface the ratchet engine and handshake layer need:
// generate a key pair, encapsulate against a peer public key, decapsulate a
// ciphertext with a local private key.
//
// ML-KEM-768 (FIPS 203) is the standardized successor to the round-3
// Kyber-768 submission this ratchet is built around; the byte sizes are
// unchanged (public key 1184B, private key 2400B, ciphertext 1088B, shared
// secret 32B), so it is a drop-in backing for Kyber-768.
package kem
