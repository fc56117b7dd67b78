// Package pqfsr implements a post-quantum forward-secret ratchet: a
// two-party secure-messaging core providing confidentiality, authenticity,
// forward secrecy, and post-compromise security against a quantum-capable
// adversary.
//
// The ratchet combines an ML-KEM-768 "pulse" with a symmetric HKDF chain
// between pulses, in the style of a double ratchet adapted for a KEM (not
// Diffie-Hellman) primitive and an adaptive pulse schedule (see the
// strategy subpackage). This package is a pure library: it exchanges byte
// blobs and assumes the caller delivers them over whatever transport it
// likes.
//
// A session is created as either an initiator or a responder with a
// semantic hint identifying the conversation. The initiator calls
// CreateHandshakeRequest; the responder consumes it with AcceptHandshake
// and returns a response; the initiator finalizes with FinalizeHandshake.
// Both sides are then Ready and may freely interleave Encrypt and Decrypt.
package pqfsr
