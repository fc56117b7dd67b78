package pqfsr

import (
	"time"

	"github.com/iyotee/pq-fsr/internal/handshake"
	"github.com/iyotee/pq-fsr/internal/pqcrypto"
	"github.com/iyotee/pq-fsr/internal/ratchet"
	"github.com/iyotee/pq-fsr/internal/replay"
	"github.com/iyotee/pq-fsr/internal/strategy"
)

// Session is one side of a two-party pq-fsr conversation: a handshake
// state machine plus, once Ready, the ratchet and pulse strategy that
// drive Encrypt and Decrypt.
type Session struct {
	hs           *handshake.Handshake
	strat        *strategy.Strategy
	localReplay  *replay.Cache
	semanticHint string
}

// NewInitiator starts a Session that will send the first handshake
// message. semanticHint identifies the conversation (e.g. a contact
// name or channel id); it is hashed into the handshake's semantic digest
// and carried, in the clear, alongside exported state so a reconstructed
// Session can be matched back to its conversation.
func NewInitiator(semanticHint string, mode PulseMode) *Session {
	return newSession(true, semanticHint, mode, DefaultMaxSkip)
}

// NewResponder starts a Session that will accept the first handshake
// message.
func NewResponder(semanticHint string, mode PulseMode) *Session {
	return newSession(false, semanticHint, mode, DefaultMaxSkip)
}

// NewInitiatorWithMaxSkip and NewResponderWithMaxSkip are the same as
// their non-suffixed counterparts but let the caller override the
// out-of-order window, e.g. to shrink it on a memory-constrained device.
func NewInitiatorWithMaxSkip(semanticHint string, mode PulseMode, maxSkip int) *Session {
	return newSession(true, semanticHint, mode, maxSkip)
}

func NewResponderWithMaxSkip(semanticHint string, mode PulseMode, maxSkip int) *Session {
	return newSession(false, semanticHint, mode, maxSkip)
}

func newSession(isInitiator bool, semanticHint string, mode PulseMode, maxSkip int) *Session {
	digest := pqcrypto.SHA256([]byte(semanticHint))
	return &Session{
		hs:           handshake.New(isInitiator, digest, maxSkip),
		strat:        strategy.New(mode),
		localReplay:  replay.NewDefault(),
		semanticHint: semanticHint,
	}
}

// Phase reports the session's current handshake-state-machine position.
func (s *Session) Phase() Phase { return s.hs.Phase() }

// Ready reports whether the session has completed its handshake and can
// Encrypt and Decrypt.
func (s *Session) Ready() bool { return s.hs.Phase() == Ready }

// CreateHandshakeRequest builds this session's handshake offer. Only
// valid on an initiator session in its Fresh phase.
func (s *Session) CreateHandshakeRequest() (HandshakeRequest, error) {
	return s.hs.CreateHandshakeRequest(uint32(time.Now().Unix()))
}

// AcceptHandshake consumes a peer's handshake request and moves this
// session straight to Ready. The request's handshake id is checked
// against both this session's local replay cache and the process-wide
// global one, so a given id can never be accepted twice by this process
// regardless of which session it is offered to.
func (s *Session) AcceptHandshake(req HandshakeRequest) (HandshakeResponse, error) {
	return s.hs.AcceptHandshake(req, s.localReplay, replay.Global())
}

// FinalizeHandshake consumes a peer's handshake response, completing the
// initiator side's transition to Ready.
func (s *Session) FinalizeHandshake(resp HandshakeResponse) error {
	return s.hs.FinalizeHandshake(resp)
}

// Encrypt seals plaintext under ad as associated data, asking the pulse
// strategy whether this message should carry a KEM pulse. It fails with
// SessionNotReady until the handshake has completed.
func (s *Session) Encrypt(ad, plaintext []byte) (Packet, error) {
	if !s.Ready() {
		return Packet{}, notReadyErr()
	}
	return ratchet.Encrypt(s.hs.State, s.strat, ad, plaintext)
}

// Decrypt opens a packet sealed by the peer's Encrypt, verifying ad as
// associated data. It fails with SessionNotReady until the handshake has
// completed.
func (s *Session) Decrypt(ad []byte, pkt Packet) ([]byte, error) {
	if !s.Ready() {
		return nil, notReadyErr()
	}
	out, err := ratchet.Decrypt(s.hs.State, s.strat, ad, pkt)
	if err == nil {
		s.strat.RecordReception()
	}
	return out, err
}

// SetBatteryLow records whether the local device is under power
// pressure in the pulse strategy's metrics. Informational only; it does
// not itself change the mode, and AdaptToStress does not read it.
func (s *Session) SetBatteryLow(low bool) { s.strat.SetBatteryLow(low) }

// RecordRTT feeds an observed round-trip time into the pulse strategy.
// Informational only; it does not itself change the mode.
func (s *Session) RecordRTT(d time.Duration) { s.strat.RecordRTT(d) }

// AdaptToStress switches the pulse strategy between MinimalOverhead and
// BalancedFlow in response to a detected resource spike. It never moves
// a session out of MaximumSecurity.
func (s *Session) AdaptToStress(spike bool) { s.strat.AdaptToStress(spike) }

// Mode reports the session's current pulse strategy mode.
func (s *Session) Mode() PulseMode { return s.strat.Mode() }
