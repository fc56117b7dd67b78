// Package ratchet implements the KEM-based forward-secret ratchet: the key
// hierarchy, the skipped-message-key cache, and the encrypt/decrypt engine
// that advances it.
//
// Unlike a classic Diffie-Hellman double ratchet, every "DH step" here is a
// KEM encapsulation against the peer's current public key, so only the
// sender of a pulse learns the new shared secret immediately; the receiver
// learns it on decapsulation. Between pulses, both directions advance a
// symmetric HKDF chain exactly as a DH ratchet would.
package ratchet
