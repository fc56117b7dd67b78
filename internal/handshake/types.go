package handshake

import (
	"github.com/iyotee/pq-fsr/internal/kem"
	"github.com/iyotee/pq-fsr/internal/replay"
	"github.com/iyotee/pq-fsr/internal/sig"
)

// SupportedMinVersion and SupportedMaxVersion bound the protocol versions
// this implementation can negotiate. Both sides of the handshake only ever
// agree on 1 today; the split exists so a future version bump only touches
// this pair.
const (
	SupportedMinVersion uint8 = 1
	SupportedMaxVersion uint8 = 1
)

// Request is the initiator's handshake offer.
type Request struct {
	Version            uint32
	MinVersion         uint8
	MaxVersion         uint8
	HandshakeID        replay.ID
	KEMPublic          kem.PublicKey
	RatchetPublic      kem.PublicKey
	SemanticDigest     [32]byte
	Signature          []byte
	SignaturePublicKey *sig.PublicKey
}

// Response is the responder's reply, carrying the KEM encapsulation the
// initiator needs to derive the shared secret.
type Response struct {
	Version            uint32
	HandshakeID        replay.ID
	KEMCiphertext      []byte
	RatchetPublic      kem.PublicKey
	SemanticDigest     [32]byte
	Signature          []byte
	SignaturePublicKey *sig.PublicKey
}

// Phase is the handshake's place in the Fresh -> PendingOut|PendingIn ->
// Ready state machine.
type Phase int

const (
	Fresh Phase = iota
	PendingOut
	PendingIn
	Ready
)

func (p Phase) String() string {
	switch p {
	case Fresh:
		return "Fresh"
	case PendingOut:
		return "PendingOut"
	case PendingIn:
		return "PendingIn"
	case Ready:
		return "Ready"
	default:
		return "Unknown"
	}
}

// pending holds the initiator's one-shot secrets between CreateHandshakeRequest
// and FinalizeHandshake.
type pending struct {
	kemPrivate     kem.PrivateKey
	ratchetPrivate kem.PrivateKey
	ratchetPublic  kem.PublicKey
	handshakeID    replay.ID
}
