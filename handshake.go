package pqfsr

import "github.com/iyotee/pq-fsr/internal/handshake"

// HandshakeRequest is the initiator's offer: a KEM public key to
// encapsulate against, a first ratchet public key, and this side's
// semantic digest, signed with a one-shot signature keypair.
type HandshakeRequest = handshake.Request

// HandshakeResponse is the responder's reply, carrying the KEM
// encapsulation the initiator needs to derive the shared secret.
type HandshakeResponse = handshake.Response

// Phase is a Session's position in the Fresh -> PendingOut|PendingIn ->
// Ready handshake state machine.
type Phase = handshake.Phase

const (
	Fresh      = handshake.Fresh
	PendingOut = handshake.PendingOut
	PendingIn  = handshake.PendingIn
	Ready      = handshake.Ready
)
