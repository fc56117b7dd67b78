package wire

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/iyotee/pq-fsr/errs"
	"github.com/iyotee/pq-fsr/internal/kem"
	"github.com/iyotee/pq-fsr/internal/ratchet"
)

// SchemaVersion is the state-export record's own format version, distinct
// from the protocol version negotiated at handshake time.
const SchemaVersion uint8 = 1

// ProtocolVersion is the protocol version a state export was produced under.
const ProtocolVersion uint8 = 1

type skippedTuple struct {
	Index uint64
	Key   []byte
	Nonce []byte
}

// stateRecord is the flat, self-describing record CBOR-encodes to. Every
// secret lives as a raw byte slice; optional fields serialize as nil/empty
// when absent.
type stateRecord struct {
	SchemaVersion   uint8
	ProtocolVersion uint8

	RootKey       []byte
	SendChainKey  []byte
	RecvChainKey  []byte
	SendLabel     string
	RecvLabel     string
	SendCount     uint64
	RecvCount     uint64
	PrevSendCount uint64

	LocalRatchetPrivate []byte
	LocalRatchetPublic  []byte
	RemoteRatchetPublic []byte

	CombinedDigest []byte
	LocalDigest    []byte
	RemoteDigest   []byte

	IsInitiator  bool
	MaxSkip      int
	SemanticHint string

	Skipped []skippedTuple
}

// ExportState serializes s into a self-describing CBOR record whose
// SchemaVersion and ProtocolVersion fields travel alongside the state.
// ImportState rejects a record with a different SchemaVersion; it does not
// check ProtocolVersion.
func ExportState(s *ratchet.State, semanticHint string) ([]byte, error) {
	rec := stateRecord{
		SchemaVersion:       SchemaVersion,
		ProtocolVersion:     ProtocolVersion,
		RootKey:             s.RootKey[:],
		SendChainKey:        s.SendChainKey[:],
		RecvChainKey:        s.RecvChainKey[:],
		SendLabel:           s.SendLabel,
		RecvLabel:           s.RecvLabel,
		SendCount:           s.SendCount,
		RecvCount:           s.RecvCount,
		PrevSendCount:       s.PrevSendCount,
		LocalRatchetPrivate: s.LocalRatchetPrivate.Bytes(),
		LocalRatchetPublic:  s.LocalRatchetPublic.Bytes(),
		CombinedDigest:      s.CombinedDigest[:],
		LocalDigest:         s.LocalDigest[:],
		IsInitiator:         s.IsInitiator,
		MaxSkip:             s.MaxSkip,
		SemanticHint:        semanticHint,
	}
	if s.RemoteRatchetPublic != nil {
		rec.RemoteRatchetPublic = s.RemoteRatchetPublic.Bytes()
	}
	if s.RemoteDigest != nil {
		rec.RemoteDigest = s.RemoteDigest[:]
	}
	for _, t := range s.ExportSkipped() {
		rec.Skipped = append(rec.Skipped, skippedTuple{Index: t.Index, Key: t.Key[:], Nonce: t.Nonce[:]})
	}

	out, err := cbor.Marshal(rec)
	if err != nil {
		return nil, errs.Wrap(errs.SerializationFailed, "cbor encode state", "state was not exported", err)
	}
	return out, nil
}

// ImportState reconstructs a State from a blob produced by ExportState.
func ImportState(data []byte) (*ratchet.State, string, error) {
	var rec stateRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, "", errs.Wrap(errs.DeserializationFailed, "cbor decode state", "blob is not a valid state export", err)
	}
	if rec.SchemaVersion != SchemaVersion {
		return nil, "", errs.New(errs.DeserializationFailed, "unsupported state schema version", "this build only understands schema version 1")
	}

	s := &ratchet.State{
		SendLabel:     rec.SendLabel,
		RecvLabel:     rec.RecvLabel,
		SendCount:     rec.SendCount,
		RecvCount:     rec.RecvCount,
		PrevSendCount: rec.PrevSendCount,
		IsInitiator:   rec.IsInitiator,
		MaxSkip:       rec.MaxSkip,
	}
	copy(s.RootKey[:], rec.RootKey)
	copy(s.SendChainKey[:], rec.SendChainKey)
	copy(s.RecvChainKey[:], rec.RecvChainKey)
	copy(s.CombinedDigest[:], rec.CombinedDigest)
	copy(s.LocalDigest[:], rec.LocalDigest)

	localPriv, err := kem.PrivateKeyFromBytes(rec.LocalRatchetPrivate)
	if err != nil {
		return nil, "", errs.Wrap(errs.DeserializationFailed, "decode local ratchet private key", "blob is not a valid state export", err)
	}
	s.LocalRatchetPrivate = localPriv
	localPub, err := kem.PublicKeyFromBytes(rec.LocalRatchetPublic)
	if err != nil {
		return nil, "", errs.Wrap(errs.DeserializationFailed, "decode local ratchet public key", "blob is not a valid state export", err)
	}
	s.LocalRatchetPublic = localPub

	if len(rec.RemoteRatchetPublic) > 0 {
		remotePub, err := kem.PublicKeyFromBytes(rec.RemoteRatchetPublic)
		if err != nil {
			return nil, "", errs.Wrap(errs.DeserializationFailed, "decode remote ratchet public key", "blob is not a valid state export", err)
		}
		s.RemoteRatchetPublic = &remotePub
	}
	if len(rec.RemoteDigest) > 0 {
		var d [32]byte
		copy(d[:], rec.RemoteDigest)
		s.RemoteDigest = &d
	}

	tuples := make([]ratchet.SkippedTuple, 0, len(rec.Skipped))
	for _, t := range rec.Skipped {
		var tuple ratchet.SkippedTuple
		tuple.Index = t.Index
		copy(tuple.Key[:], t.Key)
		copy(tuple.Nonce[:], t.Nonce)
		tuples = append(tuples, tuple)
	}
	maxSkip := rec.MaxSkip
	if maxSkip <= 0 {
		maxSkip = 1
	}
	s.RestoreSkipped(maxSkip, tuples)

	return s, rec.SemanticHint, nil
}
