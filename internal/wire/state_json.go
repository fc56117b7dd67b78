package wire

import (
	"encoding/hex"
	"encoding/json"

	"github.com/iyotee/pq-fsr/errs"
	"github.com/iyotee/pq-fsr/internal/kem"
	"github.com/iyotee/pq-fsr/internal/ratchet"
)

// jsonSkippedTuple mirrors skippedTuple with hex-encoded fields for the
// debug form.
type jsonSkippedTuple struct {
	Index uint64 `json:"index"`
	Key   string `json:"key"`
	Nonce string `json:"nonce"`
}

// jsonStateRecord is the human-inspectable counterpart of stateRecord: every
// byte slice is hex-encoded for human inspection.
type jsonStateRecord struct {
	SchemaVersion   uint8  `json:"schema_version"`
	ProtocolVersion uint8  `json:"protocol_version"`
	RootKey         string `json:"root_key"`
	SendChainKey    string `json:"send_chain_key"`
	RecvChainKey    string `json:"recv_chain_key"`
	SendLabel       string `json:"send_label"`
	RecvLabel       string `json:"recv_label"`
	SendCount       uint64 `json:"send_count"`
	RecvCount       uint64 `json:"recv_count"`
	PrevSendCount   uint64 `json:"previous_send_count"`

	LocalRatchetPrivate string `json:"local_ratchet_private"`
	LocalRatchetPublic  string `json:"local_ratchet_public"`
	RemoteRatchetPublic string `json:"remote_ratchet_public,omitempty"`

	CombinedDigest string `json:"combined_digest"`
	LocalDigest    string `json:"local_digest"`
	RemoteDigest   string `json:"remote_digest,omitempty"`

	IsInitiator  bool   `json:"is_initiator"`
	MaxSkip      int    `json:"max_skip"`
	SemanticHint string `json:"semantic_hint"`

	Skipped []jsonSkippedTuple `json:"skipped_message_keys"`
}

// IsJSONForm reports whether data looks like the JSON-hex debug form (it
// begins with '{') rather than the binary CBOR export.
func IsJSONForm(data []byte) bool {
	return len(data) > 0 && data[0] == '{'
}

// ExportStateJSON renders s as the hex-encoded JSON debug form.
func ExportStateJSON(s *ratchet.State, semanticHint string) ([]byte, error) {
	rec := jsonStateRecord{
		SchemaVersion:       SchemaVersion,
		ProtocolVersion:     ProtocolVersion,
		RootKey:             hex.EncodeToString(s.RootKey[:]),
		SendChainKey:        hex.EncodeToString(s.SendChainKey[:]),
		RecvChainKey:        hex.EncodeToString(s.RecvChainKey[:]),
		SendLabel:           s.SendLabel,
		RecvLabel:           s.RecvLabel,
		SendCount:           s.SendCount,
		RecvCount:           s.RecvCount,
		PrevSendCount:       s.PrevSendCount,
		LocalRatchetPrivate: hex.EncodeToString(s.LocalRatchetPrivate.Bytes()),
		LocalRatchetPublic:  hex.EncodeToString(s.LocalRatchetPublic.Bytes()),
		CombinedDigest:      hex.EncodeToString(s.CombinedDigest[:]),
		LocalDigest:         hex.EncodeToString(s.LocalDigest[:]),
		IsInitiator:         s.IsInitiator,
		MaxSkip:             s.MaxSkip,
		SemanticHint:        semanticHint,
	}
	if s.RemoteRatchetPublic != nil {
		rec.RemoteRatchetPublic = hex.EncodeToString(s.RemoteRatchetPublic.Bytes())
	}
	if s.RemoteDigest != nil {
		rec.RemoteDigest = hex.EncodeToString(s.RemoteDigest[:])
	}
	for _, t := range s.ExportSkipped() {
		rec.Skipped = append(rec.Skipped, jsonSkippedTuple{
			Index: t.Index,
			Key:   hex.EncodeToString(t.Key[:]),
			Nonce: hex.EncodeToString(t.Nonce[:]),
		})
	}

	out, err := json.Marshal(rec)
	if err != nil {
		return nil, errs.Wrap(errs.SerializationFailed, "json encode state", "state was not exported", err)
	}
	return out, nil
}

// ImportStateJSON parses the hex-encoded JSON debug form.
func ImportStateJSON(data []byte) (*ratchet.State, string, error) {
	var rec jsonStateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, "", errs.Wrap(errs.DeserializationFailed, "json decode state", "blob is not a valid state export", err)
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
	if err := hexDecodeInto(s.RootKey[:], rec.RootKey); err != nil {
		return nil, "", err
	}
	if err := hexDecodeInto(s.SendChainKey[:], rec.SendChainKey); err != nil {
		return nil, "", err
	}
	if err := hexDecodeInto(s.RecvChainKey[:], rec.RecvChainKey); err != nil {
		return nil, "", err
	}
	if err := hexDecodeInto(s.CombinedDigest[:], rec.CombinedDigest); err != nil {
		return nil, "", err
	}
	if err := hexDecodeInto(s.LocalDigest[:], rec.LocalDigest); err != nil {
		return nil, "", err
	}

	localPrivBytes, err := hex.DecodeString(rec.LocalRatchetPrivate)
	if err != nil {
		return nil, "", errs.Wrap(errs.DeserializationFailed, "decode local ratchet private key", "blob is not a valid state export", err)
	}
	localPriv, err := kem.PrivateKeyFromBytes(localPrivBytes)
	if err != nil {
		return nil, "", errs.Wrap(errs.DeserializationFailed, "decode local ratchet private key", "blob is not a valid state export", err)
	}
	s.LocalRatchetPrivate = localPriv

	localPubBytes, err := hex.DecodeString(rec.LocalRatchetPublic)
	if err != nil {
		return nil, "", errs.Wrap(errs.DeserializationFailed, "decode local ratchet public key", "blob is not a valid state export", err)
	}
	localPub, err := kem.PublicKeyFromBytes(localPubBytes)
	if err != nil {
		return nil, "", errs.Wrap(errs.DeserializationFailed, "decode local ratchet public key", "blob is not a valid state export", err)
	}
	s.LocalRatchetPublic = localPub

	if rec.RemoteRatchetPublic != "" {
		b, err := hex.DecodeString(rec.RemoteRatchetPublic)
		if err != nil {
			return nil, "", errs.Wrap(errs.DeserializationFailed, "decode remote ratchet public key", "blob is not a valid state export", err)
		}
		remotePub, err := kem.PublicKeyFromBytes(b)
		if err != nil {
			return nil, "", errs.Wrap(errs.DeserializationFailed, "decode remote ratchet public key", "blob is not a valid state export", err)
		}
		s.RemoteRatchetPublic = &remotePub
	}
	if rec.RemoteDigest != "" {
		b, err := hex.DecodeString(rec.RemoteDigest)
		if err != nil {
			return nil, "", errs.Wrap(errs.DeserializationFailed, "decode remote digest", "blob is not a valid state export", err)
		}
		var d [32]byte
		copy(d[:], b)
		s.RemoteDigest = &d
	}

	tuples := make([]ratchet.SkippedTuple, 0, len(rec.Skipped))
	for _, t := range rec.Skipped {
		keyBytes, err := hex.DecodeString(t.Key)
		if err != nil {
			return nil, "", errs.Wrap(errs.DeserializationFailed, "decode skipped key", "blob is not a valid state export", err)
		}
		nonceBytes, err := hex.DecodeString(t.Nonce)
		if err != nil {
			return nil, "", errs.Wrap(errs.DeserializationFailed, "decode skipped nonce", "blob is not a valid state export", err)
		}
		var tuple ratchet.SkippedTuple
		tuple.Index = t.Index
		copy(tuple.Key[:], keyBytes)
		copy(tuple.Nonce[:], nonceBytes)
		tuples = append(tuples, tuple)
	}
	maxSkip := rec.MaxSkip
	if maxSkip <= 0 {
		maxSkip = 1
	}
	s.RestoreSkipped(maxSkip, tuples)

	return s, rec.SemanticHint, nil
}

func hexDecodeInto(dst []byte, s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return errs.Wrap(errs.DeserializationFailed, "decode hex field", "blob is not a valid state export", err)
	}
	copy(dst, b)
	return nil
}
