package pqfsr

import (
	"github.com/iyotee/pq-fsr/errs"
	"github.com/iyotee/pq-fsr/internal/handshake"
	"github.com/iyotee/pq-fsr/internal/ratchet"
	"github.com/iyotee/pq-fsr/internal/replay"
	"github.com/iyotee/pq-fsr/internal/strategy"
	"github.com/iyotee/pq-fsr/internal/wire"
)

func notReadyErr() error {
	return errs.New(errs.SessionNotReady, "session has not completed its handshake", "call CreateHandshakeRequest/AcceptHandshake/FinalizeHandshake first")
}

// ExportState serializes the session's ratchet state to a self-describing
// binary blob, suitable for encrypting at rest with EncryptState. It
// fails with SessionNotReady before the handshake completes.
func (s *Session) ExportState() ([]byte, error) {
	if !s.Ready() {
		return nil, notReadyErr()
	}
	return wire.ExportState(s.hs.State, s.semanticHint)
}

// ExportStateJSON is the same as ExportState but produces a
// human-inspectable JSON form with hex-encoded secrets, meant for
// debugging rather than routine persistence.
func (s *Session) ExportStateJSON() ([]byte, error) {
	if !s.Ready() {
		return nil, notReadyErr()
	}
	return wire.ExportStateJSON(s.hs.State, s.semanticHint)
}

// ImportSession reconstructs a Ready Session from a blob produced by
// ExportState or ExportStateJSON, picking the right decoder automatically.
// The returned session keeps its original pulse mode only if one is
// supplied here: exported state does not carry the strategy's runtime
// counters, so the imported session starts with fresh decay counters
// under mode.
func ImportSession(data []byte, mode PulseMode) (*Session, error) {
	var (
		state *ratchet.State
		hint  string
		err   error
	)
	if wire.IsJSONForm(data) {
		state, hint, err = wire.ImportStateJSON(data)
	} else {
		state, hint, err = wire.ImportState(data)
	}
	if err != nil {
		return nil, err
	}

	return &Session{
		hs:           handshake.Restored(state.IsInitiator, state),
		strat:        strategy.New(mode),
		localReplay:  replay.NewDefault(),
		semanticHint: hint,
	}, nil
}

// EncryptState wraps a serialized state blob (from ExportState or
// ExportStateJSON) in an AEAD container keyed from password.
func EncryptState(password, blob []byte) ([]byte, error) { return wire.EncryptState(password, blob) }

// DecryptState reverses EncryptState, returning the original blob for
// ImportSession to consume.
func DecryptState(password, container []byte) ([]byte, error) {
	return wire.DecryptState(password, container)
}
