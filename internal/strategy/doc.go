// Package strategy decides, per outgoing message, whether the ratchet
// engine should perform a KEM pulse or continue along the symmetric chain.
//
// The decision is pure and stateless beyond the running Metrics a Strategy
// accumulates: it never touches key material, so it has no secrets to
// zeroize and no reason to reach for anything beyond the standard library.
package strategy
