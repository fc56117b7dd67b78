// Package handshake implements the session establishment state machine:
// build a request as initiator, accept a request as responder, and finalize
// a response back on the initiator, deriving the ratchet's bootstrap
// material and binding every message with a signature over its transcript.
package handshake
