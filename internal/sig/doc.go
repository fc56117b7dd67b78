// Package sig adapts circl's ML-DSA-65 implementation to the minimal
// sign/verify interface the handshake layer needs to authenticate the
// ephemeral keys exchanged during a handshake.
//
// ML-DSA-65 (FIPS 204) is the standardized successor to the round-3
// Dilithium3 submission this ratchet is built around, at the same NIST
// security category.
package sig
