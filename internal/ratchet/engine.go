package ratchet

import (
	"encoding/binary"

	"github.com/iyotee/pq-fsr/internal/kem"
	"github.com/iyotee/pq-fsr/internal/pqcrypto"
	"github.com/iyotee/pq-fsr/internal/strategy"

	"github.com/iyotee/pq-fsr/errs"
)

// Packet is the in-memory form of one engine-level message, mirroring the
// wire packet one-for-one except that nonce travels alongside it instead of
// only living in the receiver's re-derivation.
type Packet struct {
	Version       uint8
	Count         uint64
	PN            uint64
	RatchetPub    kem.PublicKey
	KEMCiphertext []byte // empty unless this packet carries a pulse
	SemanticTag   [16]byte
	Ciphertext    []byte
	Nonce         *[12]byte // present in-memory only, never serialized
}

// mixRoot folds a new shared secret into the running root key, bound to the
// session's semantic digest. prev is nil on the very first call (bootstrap).
func mixRoot(prev *[32]byte, sharedSecret, semanticDigest []byte) [32]byte {
	var prevBytes [32]byte
	if prev != nil {
		prevBytes = *prev
	}
	return pqcrypto.SHA256(prevBytes[:], sharedSecret, semanticDigest)
}

// deriveChainSeed derives a fresh chain key from the root, bound to the
// semantic digest and a direction label.
func deriveChainSeed(root [32]byte, semanticDigest []byte, label string) ([32]byte, error) {
	out, err := pqcrypto.HKDF(root[:], semanticDigest, []byte(label), 32)
	if err != nil {
		return [32]byte{}, err
	}
	var seed [32]byte
	copy(seed[:], out)
	return seed, nil
}

// deriveMessageMaterial derives the message key, next chain key, and nonce
// for index i of chain, bound to the semantic digest.
func deriveMessageMaterial(chain [32]byte, i uint64, semanticDigest []byte) (mk [32]byte, nextChain [32]byte, nonce [12]byte, err error) {
	x := make([]byte, 32+8)
	copy(x, chain[:])
	binary.BigEndian.PutUint64(x[32:], i)

	mkBytes, err := pqcrypto.HKDF(x, semanticDigest, []byte("PQ-FSR msg"), 32)
	if err != nil {
		return mk, nextChain, nonce, err
	}
	chainBytes, err := pqcrypto.HKDF(x, semanticDigest, []byte("PQ-FSR chain"), 32)
	if err != nil {
		return mk, nextChain, nonce, err
	}
	nonceBytes, err := pqcrypto.HKDF(x, semanticDigest, []byte("PQ-FSR nonce"), 12)
	if err != nil {
		return mk, nextChain, nonce, err
	}

	copy(mk[:], mkBytes)
	copy(nextChain[:], chainBytes)
	copy(nonce[:], nonceBytes)
	return mk, nextChain, nonce, nil
}

// SemanticTag computes the 16-byte binding of a combined digest and message
// index placed in every packet.
func SemanticTag(combinedDigest [32]byte, i uint64) [16]byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], i)
	full := pqcrypto.SHA256(combinedDigest[:], buf[:], []byte("SEND"))
	var tag [16]byte
	copy(tag[:], full[:16])
	return tag
}

// Bootstrap derives the initial root and both chain keys from a freshly
// exchanged shared secret and the session's semantic digests, per side's
// role. localPub/localPriv supply the local ratchet keypair to seed the
// state with; if both are zero-valued a fresh keypair is generated.
func Bootstrap(sharedSecret []byte, combinedDigest, localDigest [32]byte, remoteDigest *[32]byte, isInitiator bool, localPub kem.PublicKey, localPriv kem.PrivateKey, maxSkip int) (*State, error) {
	root := mixRoot(nil, sharedSecret, combinedDigest[:])

	sendLabel, recvLabel := labelA2B, labelB2A
	if !isInitiator {
		sendLabel, recvLabel = labelB2A, labelA2B
	}

	sendChain, err := deriveChainSeed(root, combinedDigest[:], sendLabel)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, "derive send chain", "bootstrap cannot proceed", err)
	}
	recvChain, err := deriveChainSeed(root, combinedDigest[:], recvLabel)
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, "derive recv chain", "bootstrap cannot proceed", err)
	}

	if localPub == (kem.PublicKey{}) && localPriv == (kem.PrivateKey{}) {
		localPub, localPriv, err = kem.GenerateKeyPair()
		if err != nil {
			return nil, errs.Wrap(errs.KEMOperationFailed, "generate ratchet keypair", "bootstrap cannot proceed", err)
		}
	}

	if maxSkip <= 0 {
		maxSkip = strategy.DefaultMaxSkip
	}

	return &State{
		RootKey:             root,
		SendChainKey:        sendChain,
		RecvChainKey:        recvChain,
		SendLabel:           sendLabel,
		RecvLabel:           recvLabel,
		LocalRatchetPublic:  localPub,
		LocalRatchetPrivate: localPriv,
		CombinedDigest:      combinedDigest,
		LocalDigest:         localDigest,
		RemoteDigest:        remoteDigest,
		IsInitiator:         isInitiator,
		MaxSkip:             maxSkip,
		skipped:             newSkippedCache(maxSkip),
	}, nil
}

// Encrypt advances the send side of s by one message, optionally performing
// a KEM pulse first, and returns the packet and in-memory nonce to send.
func Encrypt(s *State, strat *strategy.Strategy, ad, plaintext []byte) (Packet, error) {
	if s.RemoteRatchetPublic == nil {
		return Packet{}, errs.New(errs.InvalidSessionState, "no remote ratchet public key", "bootstrap the session before encrypting")
	}

	var kemCiphertext []byte
	doPulse := strat.ShouldPulse(len(plaintext))
	if doPulse {
		ct, ss, err := kem.Encapsulate(*s.RemoteRatchetPublic)
		if err != nil {
			return Packet{}, errs.Wrap(errs.KEMOperationFailed, "encapsulate", "pulse could not be performed", err)
		}
		kemCiphertext = ct

		newRoot := mixRoot(&s.RootKey, ss, s.CombinedDigest[:])
		pqcrypto.Zero(ss)
		newSend, err := deriveChainSeed(newRoot, s.CombinedDigest[:], s.SendLabel)
		if err != nil {
			return Packet{}, errs.Wrap(errs.InternalError, "derive send chain", "pulse could not be performed", err)
		}
		newRecv, err := deriveChainSeed(newRoot, s.CombinedDigest[:], s.RecvLabel)
		if err != nil {
			return Packet{}, errs.Wrap(errs.InternalError, "derive recv chain", "pulse could not be performed", err)
		}

		newPub, newPriv, err := kem.GenerateKeyPair()
		if err != nil {
			return Packet{}, errs.Wrap(errs.KEMOperationFailed, "generate ratchet keypair", "pulse could not be performed", err)
		}

		pqcrypto.Zero(s.RootKey[:])
		pqcrypto.Zero(s.SendChainKey[:])
		pqcrypto.Zero(s.RecvChainKey[:])
		s.LocalRatchetPrivate.Zero()

		s.RootKey = newRoot
		s.SendChainKey = newSend
		s.RecvChainKey = newRecv
		s.LocalRatchetPublic = newPub
		s.LocalRatchetPrivate = newPriv

		s.PrevSendCount = s.SendCount
		s.SendCount = 0
		strat.RecordPulse()
	} else {
		strat.RecordFlow(len(plaintext))
	}
	pn := s.PrevSendCount

	mk, nextChain, nonce, err := deriveMessageMaterial(s.SendChainKey, s.SendCount, s.CombinedDigest[:])
	if err != nil {
		return Packet{}, errs.Wrap(errs.InternalError, "derive message material", "encrypt could not proceed", err)
	}
	s.SendChainKey = nextChain

	tag := SemanticTag(s.CombinedDigest, s.SendCount)
	adBind := bindAD(ad, tag, s.SendCount, pn)

	ct, err := pqcrypto.Seal(mk[:], nonce[:], plaintext, adBind)
	pqcrypto.Zero(mk[:])
	if err != nil {
		return Packet{}, errs.Wrap(errs.EncryptionFailed, "seal", "plaintext was not encrypted", err)
	}

	pkt := Packet{
		Version:       1,
		Count:         s.SendCount,
		PN:            pn,
		RatchetPub:    s.LocalRatchetPublic,
		KEMCiphertext: kemCiphertext,
		SemanticTag:   tag,
		Ciphertext:    ct,
		Nonce:         &nonce,
	}
	s.SendCount++
	return pkt, nil
}

// Decrypt advances the receive side of s to consume pkt, handling
// out-of-order catch-up, skipped-key recovery, and pulse-triggered epoch
// transitions. On any error, s is left exactly as it was on entry.
func Decrypt(s *State, strat *strategy.Strategy, ad []byte, pkt Packet) ([]byte, error) {
	expected := SemanticTag(s.CombinedDigest, pkt.Count)
	if !pqcrypto.ConstantTimeEqual(expected[:], pkt.SemanticTag[:]) {
		return nil, errs.New(errs.SemanticTagMismatch, "semantic tag mismatch", "packet does not belong to this session")
	}

	if entry, ok := s.peekSkipped(pkt.Count); ok {
		if pkt.Nonce != nil && !pqcrypto.ConstantTimeEqual(pkt.Nonce[:], entry.nonce[:]) {
			return nil, errs.New(errs.NonceMismatch, "nonce mismatch on skipped key", "packet nonce does not match the derived nonce")
		}
		adBind := bindAD(ad, pkt.SemanticTag, pkt.Count, pkt.PN)
		pt, err := pqcrypto.Open(entry.key[:], entry.nonce[:], pkt.Ciphertext, adBind)
		if err != nil {
			return nil, errs.New(errs.MessageAlreadyProcessed, "message already processed", "this index was already consumed")
		}
		s.consumeSkipped(pkt.Count)
		entry.zero()
		strat.RecordReception()
		return pt, nil
	}

	working := *s // snapshot for rollback on error between steps
	// skipped is a pointer field: a shallow copy above still aliases s's
	// cache, so clone it too. Every storeSkipped call below lands on this
	// clone (and any eviction it triggers zeroes only the clone's entries)
	// until the full commit at the end adopts it into s.
	working.skipped = s.skipped.clone()

	if len(pkt.KEMCiphertext) > 0 {
		for working.RecvCount < pkt.PN {
			mk, nextChain, nonce, err := deriveMessageMaterial(working.RecvChainKey, working.RecvCount, working.CombinedDigest[:])
			if err != nil {
				return nil, errs.Wrap(errs.InternalError, "derive message material", "decrypt could not proceed", err)
			}
			working.RecvChainKey = nextChain
			working.storeSkipped(working.RecvCount, mk, nonce)
			working.RecvCount++
		}

		ss, err := kem.Decapsulate(working.LocalRatchetPrivate, pkt.KEMCiphertext)
		if err != nil {
			return nil, errs.Wrap(errs.KEMOperationFailed, "decapsulate", "pulse could not be consumed", err)
		}
		newRoot := mixRoot(&working.RootKey, ss, working.CombinedDigest[:])
		pqcrypto.Zero(ss)

		newSend, err := deriveChainSeed(newRoot, working.CombinedDigest[:], working.SendLabel)
		if err != nil {
			return nil, errs.Wrap(errs.InternalError, "derive send chain", "pulse could not be consumed", err)
		}
		newRecv, err := deriveChainSeed(newRoot, working.CombinedDigest[:], working.RecvLabel)
		if err != nil {
			return nil, errs.Wrap(errs.InternalError, "derive recv chain", "pulse could not be consumed", err)
		}

		working.RootKey = newRoot
		working.SendChainKey = newSend
		working.RecvChainKey = newRecv
		remotePub := pkt.RatchetPub
		working.RemoteRatchetPublic = &remotePub
		working.RecvCount = 0
	}

	if pkt.Count < working.RecvCount {
		return nil, errs.New(errs.MessageAlreadyProcessed, "message already processed", "index is behind the current receive count")
	}

	for working.RecvCount < pkt.Count {
		mk, nextChain, nonce, err := deriveMessageMaterial(working.RecvChainKey, working.RecvCount, working.CombinedDigest[:])
		if err != nil {
			return nil, errs.Wrap(errs.InternalError, "derive message material", "decrypt could not proceed", err)
		}
		working.RecvChainKey = nextChain
		working.storeSkipped(working.RecvCount, mk, nonce)
		working.RecvCount++
	}

	mk, nextChain, nonce, err := deriveMessageMaterial(working.RecvChainKey, working.RecvCount, working.CombinedDigest[:])
	if err != nil {
		return nil, errs.Wrap(errs.InternalError, "derive message material", "decrypt could not proceed", err)
	}
	if pkt.Nonce != nil && !pqcrypto.ConstantTimeEqual(pkt.Nonce[:], nonce[:]) {
		pqcrypto.Zero(mk[:])
		return nil, errs.New(errs.NonceMismatch, "nonce mismatch", "packet nonce does not match the derived nonce")
	}

	adBind := bindAD(ad, pkt.SemanticTag, pkt.Count, pkt.PN)
	pt, err := pqcrypto.Open(mk[:], nonce[:], pkt.Ciphertext, adBind)
	pqcrypto.Zero(mk[:])
	if err != nil {
		return nil, errs.New(errs.DecryptionFailed, "decryption failed", "authentication tag did not verify")
	}

	working.RecvChainKey = nextChain
	working.RecvCount++
	strat.RecordReception()

	*s = working
	return pt, nil
}

// bindAD assembles the associated data the AEAD layer authenticates: caller
// AD, the semantic tag, and the message's count/pn fields, so a swap of
// either the caller's context or the wire counters is detected as a tag
// failure.
func bindAD(callerAD []byte, tag [16]byte, count, pn uint64) []byte {
	out := make([]byte, 0, len(callerAD)+16+8+8)
	out = append(out, callerAD...)
	out = append(out, tag[:]...)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count)
	out = append(out, buf[:]...)
	binary.BigEndian.PutUint64(buf[:], pn)
	out = append(out, buf[:]...)
	return out
}
