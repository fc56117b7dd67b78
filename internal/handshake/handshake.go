package handshake

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"

	"github.com/iyotee/pq-fsr/errs"
	"github.com/iyotee/pq-fsr/internal/kem"
	"github.com/iyotee/pq-fsr/internal/pqcrypto"
	"github.com/iyotee/pq-fsr/internal/ratchet"
	"github.com/iyotee/pq-fsr/internal/replay"
	"github.com/iyotee/pq-fsr/internal/sig"
)

// Handshake drives one session's establishment. It is not safe for
// concurrent use, matching the ratchet state it eventually produces.
type Handshake struct {
	phase       Phase
	isInitiator bool
	localDigest [32]byte
	maxSkip     int
	pending     *pending

	// sigPublic/sigPrivate are the ephemeral signature keypair this side
	// generates for its own handshake leg.
	sigPublic  sig.PublicKey
	sigPrivate sig.PrivateKey

	// State is populated once the handshake reaches Ready.
	State *ratchet.State
}

// New constructs a Fresh handshake for one side of a session. localDigest is
// this side's semantic-context hash; maxSkip bounds the resulting ratchet's
// skipped-key cache.
func New(isInitiator bool, localDigest [32]byte, maxSkip int) *Handshake {
	return &Handshake{isInitiator: isInitiator, localDigest: localDigest, maxSkip: maxSkip}
}

// Phase reports the handshake's current state-machine position.
func (h *Handshake) Phase() Phase { return h.phase }

// Restored builds a Handshake already in the Ready phase around a state
// recovered from storage, skipping the handshake exchange entirely. The
// isInitiator flag only matters if the caller later inspects it; no
// further handshake calls are valid on the result.
func Restored(isInitiator bool, state *ratchet.State) *Handshake {
	return &Handshake{isInitiator: isInitiator, phase: Ready, State: state}
}

// CreateHandshakeRequest builds the initiator's offer, generating the
// one-shot KEM keypair the responder will encapsulate against, the first
// session ratchet keypair, and a fresh handshake id and signing key.
func (h *Handshake) CreateHandshakeRequest(now uint32) (Request, error) {
	if !h.isInitiator {
		return Request{}, errs.New(errs.InitiatorOnly, "not an initiator handshake", "construct the handshake with isInitiator=true")
	}
	if h.phase != Fresh {
		return Request{}, errs.New(errs.InvalidSessionState, "handshake request already created", "a handshake request may only be created once")
	}

	kemPub, kemPriv, err := kem.GenerateKeyPair()
	if err != nil {
		return Request{}, errs.Wrap(errs.KEMOperationFailed, "generate kem keypair", "request could not be built", err)
	}
	rPub, rPriv, err := kem.GenerateKeyPair()
	if err != nil {
		return Request{}, errs.Wrap(errs.KEMOperationFailed, "generate ratchet keypair", "request could not be built", err)
	}

	id, err := newHandshakeID(now)
	if err != nil {
		return Request{}, errs.Wrap(errs.InternalError, "generate handshake id", "request could not be built", err)
	}

	sigPub, sigPriv, err := sig.GenerateKeyPair()
	if err != nil {
		return Request{}, errs.Wrap(errs.InternalError, "generate signature keypair", "request could not be built", err)
	}

	transcript := requestTranscript(id, kemPub, rPub, h.localDigest)
	signature, err := sig.Sign(sigPriv, transcript)
	if err != nil {
		return Request{}, errs.Wrap(errs.HandshakeRequestFailed, "sign request", "request could not be built", err)
	}

	h.pending = &pending{kemPrivate: kemPriv, ratchetPrivate: rPriv, ratchetPublic: rPub, handshakeID: id}
	h.sigPublic, h.sigPrivate = sigPub, sigPriv
	h.phase = PendingOut

	return Request{
		Version:            1,
		MinVersion:         SupportedMinVersion,
		MaxVersion:         SupportedMaxVersion,
		HandshakeID:        id,
		KEMPublic:          kemPub,
		RatchetPublic:      rPub,
		SemanticDigest:     h.localDigest,
		Signature:          signature,
		SignaturePublicKey: &sigPub,
	}, nil
}

// AcceptHandshake consumes an initiator's request, deriving this side's
// ratchet state and moving directly from Fresh to Ready. localCache and
// globalCache are consulted (both must accept) for replay defense.
func (h *Handshake) AcceptHandshake(req Request, localCache, globalCache *replay.Cache) (Response, error) {
	if h.isInitiator {
		return Response{}, errs.New(errs.ResponderOnly, "not a responder handshake", "construct the handshake with isInitiator=false")
	}
	if h.phase != Fresh {
		return Response{}, errs.New(errs.InvalidSessionState, "handshake already accepted", "a request may only be accepted once")
	}

	if err := localCache.Check(req.HandshakeID); err != nil {
		return Response{}, err
	}
	if err := globalCache.Check(req.HandshakeID); err != nil {
		return Response{}, err
	}

	if req.MaxVersion < SupportedMinVersion || req.MinVersion > SupportedMaxVersion {
		return Response{}, errs.New(errs.VersionNegotiationFailed, "no overlapping version range", "client and server support disjoint version sets")
	}
	negotiated := req.MaxVersion
	if negotiated > SupportedMaxVersion {
		negotiated = SupportedMaxVersion
	}

	if req.Signature != nil {
		if req.SignaturePublicKey == nil {
			return Response{}, errs.New(errs.SignatureVerificationFailed, "signature present without a public key", "attach signature_public_key alongside signature")
		}
		transcript := requestTranscript(req.HandshakeID, req.KEMPublic, req.RatchetPublic, req.SemanticDigest)
		if !sig.Verify(*req.SignaturePublicKey, transcript, req.Signature) {
			return Response{}, errs.New(errs.SignatureVerificationFailed, "request signature did not verify", "the request transcript does not match the signature")
		}
	}

	combined := combinedDigest(h.localDigest, req.SemanticDigest)

	kemCt, ss, err := kem.Encapsulate(req.KEMPublic)
	if err != nil {
		return Response{}, errs.Wrap(errs.KEMOperationFailed, "encapsulate", "accept could not proceed", err)
	}
	localPub, localPriv, err := kem.GenerateKeyPair()
	if err != nil {
		return Response{}, errs.Wrap(errs.KEMOperationFailed, "generate ratchet keypair", "accept could not proceed", err)
	}

	remoteDigest := req.SemanticDigest
	state, err := ratchet.Bootstrap(ss, combined, h.localDigest, &remoteDigest, false, localPub, localPriv, h.maxSkip)
	pqcrypto.Zero(ss)
	if err != nil {
		return Response{}, errs.Wrap(errs.HandshakeAcceptFailed, "bootstrap", "accept could not proceed", err)
	}
	remotePub := req.RatchetPublic
	state.RemoteRatchetPublic = &remotePub

	sigPub, sigPriv, err := sig.GenerateKeyPair()
	if err != nil {
		return Response{}, errs.Wrap(errs.InternalError, "generate signature keypair", "accept could not proceed", err)
	}
	transcript := responseTranscript(req.HandshakeID, kemCt, localPub, h.localDigest)
	signature, err := sig.Sign(sigPriv, transcript)
	if err != nil {
		return Response{}, errs.Wrap(errs.HandshakeAcceptFailed, "sign response", "accept could not proceed", err)
	}

	h.sigPublic, h.sigPrivate = sigPub, sigPriv
	h.State = state
	h.phase = Ready

	return Response{
		Version:            uint32(negotiated),
		HandshakeID:        req.HandshakeID,
		KEMCiphertext:      kemCt,
		RatchetPublic:      localPub,
		SemanticDigest:     h.localDigest,
		Signature:          signature,
		SignaturePublicKey: &sigPub,
	}, nil
}

// FinalizeHandshake consumes the responder's reply, completing the
// initiator's transition from PendingOut to Ready.
func (h *Handshake) FinalizeHandshake(resp Response) error {
	if h.phase != PendingOut || h.pending == nil {
		return errs.New(errs.InvalidSessionState, "no pending handshake request", "call CreateHandshakeRequest first")
	}
	if resp.HandshakeID != h.pending.handshakeID {
		return errs.New(errs.InvalidHandshakeResponse, "handshake id mismatch", "response does not correspond to the pending request")
	}

	negotiated := uint8(resp.Version)
	if negotiated != 1 {
		return errs.New(errs.VersionNegotiationFailed, "unsupported negotiated version", "only version 1 is supported")
	}

	if resp.Signature != nil {
		if resp.SignaturePublicKey == nil {
			return errs.New(errs.SignatureVerificationFailed, "signature present without a public key", "attach signature_public_key alongside signature")
		}
		transcript := responseTranscript(resp.HandshakeID, resp.KEMCiphertext, resp.RatchetPublic, resp.SemanticDigest)
		if !sig.Verify(*resp.SignaturePublicKey, transcript, resp.Signature) {
			return errs.New(errs.SignatureVerificationFailed, "response signature did not verify", "the response transcript does not match the signature")
		}
	}

	ss, err := kem.Decapsulate(h.pending.kemPrivate, resp.KEMCiphertext)
	if err != nil {
		return errs.Wrap(errs.KEMOperationFailed, "decapsulate", "finalize could not proceed", err)
	}
	h.pending.kemPrivate.Zero()

	combined := combinedDigest(h.localDigest, resp.SemanticDigest)
	remoteDigest := resp.SemanticDigest
	state, err := ratchet.Bootstrap(ss, combined, h.localDigest, &remoteDigest, true, h.pending.ratchetPublic, h.pending.ratchetPrivate, h.maxSkip)
	pqcrypto.Zero(ss)
	if err != nil {
		return errs.Wrap(errs.HandshakeFinalizeFailed, "bootstrap", "finalize could not proceed", err)
	}
	remotePub := resp.RatchetPublic
	state.RemoteRatchetPublic = &remotePub

	h.State = state
	h.pending = nil
	h.phase = Ready
	return nil
}

// newHandshakeID builds a 16-byte id: 12 random bytes followed by a
// big-endian Unix-second timestamp.
func newHandshakeID(now uint32) (replay.ID, error) {
	var id replay.ID
	if _, err := rand.Read(id[:12]); err != nil {
		return id, err
	}
	binary.BigEndian.PutUint32(id[12:], now)
	return id, nil
}

// combinedDigest mixes two semantic digests in sorted order so both sides
// compute the same value regardless of who is the initiator.
func combinedDigest(a, b [32]byte) [32]byte {
	first, second := a, b
	if bytes.Compare(a[:], b[:]) > 0 {
		first, second = b, a
	}
	return pqcrypto.SHA256(first[:], second[:])
}

func requestTranscript(id replay.ID, kemPub, ratchetPub kem.PublicKey, localDigest [32]byte) []byte {
	out := make([]byte, 0, 16+kem.PublicKeySize*2+32)
	out = append(out, id[:]...)
	out = append(out, kemPub.Bytes()...)
	out = append(out, ratchetPub.Bytes()...)
	out = append(out, localDigest[:]...)
	return out
}

func responseTranscript(id replay.ID, kemCiphertext []byte, ratchetPub kem.PublicKey, localDigest [32]byte) []byte {
	out := make([]byte, 0, 16+len(kemCiphertext)+kem.PublicKeySize+32)
	out = append(out, id[:]...)
	out = append(out, kemCiphertext...)
	out = append(out, ratchetPub.Bytes()...)
	out = append(out, localDigest[:]...)
	return out
}
