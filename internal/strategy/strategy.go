package strategy

import "time"

// Mode selects how aggressively the strategy schedules KEM pulses.
type Mode int

const (
	// MaximumSecurity pulses on every outgoing message that burst
	// protection allows, i.e. the first send after each reception.
	MaximumSecurity Mode = iota
	// BalancedFlow is the default: pulses on decay or large messages, but
	// otherwise prefers the cheaper symmetric chain.
	BalancedFlow
	// MinimalOverhead pulses on decay or large messages: ShouldPulse
	// applies the same rules to it as to BalancedFlow.
	MinimalOverhead
)

func (m Mode) String() string {
	switch m {
	case MaximumSecurity:
		return "MaximumSecurity"
	case BalancedFlow:
		return "BalancedFlow"
	case MinimalOverhead:
		return "MinimalOverhead"
	default:
		return "Unknown"
	}
}

// Decay thresholds: once any is crossed, the chain is considered stale
// enough that a pulse is forced regardless of mode.
const (
	decayMaxMessages  = 50
	decayMaxAge       = 300 * time.Second
	decayMaxBytes     = 1 << 20 // 1 MiB
	largeMessageBytes = 1024
)

// DefaultMaxSkip is the default out-of-order window / skipped-key cache
// capacity a ratchet should be constructed with.
const DefaultMaxSkip = 50

// Metrics are the runtime signals a Strategy's decision is based on.
type Metrics struct {
	MsgsSinceLastKEM  uint64
	BytesSinceLastKEM uint64
	TimeLastKEM       time.Time
	ConsecutiveSends  uint64
	LastRTT           time.Duration
	IsBatteryLow      bool
}

// Strategy is the adaptive pulse scheduler described in the ratchet engine
// design: each outgoing message asks ShouldPulse, then records the outcome
// via RecordPulse or RecordFlow so the next decision sees updated Metrics.
type Strategy struct {
	mode Mode
	m    Metrics
	now  func() time.Time
}

// New constructs a Strategy in the given mode, with TimeLastKEM stamped to
// the construction time so a fresh strategy does not immediately decide
// the chain has decayed.
func New(mode Mode) *Strategy {
	return newWithClock(mode, time.Now)
}

// newWithClock is the same as New but lets tests substitute a clock.
func newWithClock(mode Mode, now func() time.Time) *Strategy {
	return &Strategy{mode: mode, m: Metrics{TimeLastKEM: now()}, now: now}
}

// Mode returns the strategy's current mode.
func (s *Strategy) Mode() Mode { return s.mode }

// Metrics returns a copy of the strategy's current runtime metrics.
func (s *Strategy) Metrics() Metrics { return s.m }

// ShouldPulse decides whether the next outgoing message of msgSize bytes
// should carry a KEM pulse.
//
// Rule order, most load-bearing first:
//  1. Burst protection: if the last action was itself a pulse or a flow
//     send (ConsecutiveSends > 0) without an intervening reception, never
//     pulse again. Two consecutive pulses from the same sender with no
//     reception in between can desynchronize root if a message is lost;
//     this rule is the only thing that prevents that and must not be
//     relaxed.
//  2. MaximumSecurity always pulses.
//  3. Decay: too many messages, too much time, or too many bytes since the
//     last pulse forces one regardless of mode.
//  4. A large message (> 1024 bytes) forces a pulse.
//  5. Otherwise, no pulse.
func (s *Strategy) ShouldPulse(msgSize int) bool {
	if s.m.ConsecutiveSends > 0 {
		return false
	}
	if s.mode == MaximumSecurity {
		return true
	}
	if s.decayed() {
		return true
	}
	if msgSize > largeMessageBytes {
		return true
	}
	return false
}

func (s *Strategy) decayed() bool {
	if s.m.MsgsSinceLastKEM >= decayMaxMessages {
		return true
	}
	if s.m.BytesSinceLastKEM >= decayMaxBytes {
		return true
	}
	return s.now().Sub(s.m.TimeLastKEM) >= decayMaxAge
}

// RecordPulse resets the decay counters after a pulse and marks this send
// as consecutive, arming the burst-protection rule for the next call.
func (s *Strategy) RecordPulse() {
	s.m.MsgsSinceLastKEM = 0
	s.m.BytesSinceLastKEM = 0
	s.m.TimeLastKEM = s.now()
	s.m.ConsecutiveSends++
}

// RecordFlow records a symmetric-chain send of size bytes.
func (s *Strategy) RecordFlow(size int) {
	s.m.MsgsSinceLastKEM++
	s.m.BytesSinceLastKEM += uint64(size)
	s.m.ConsecutiveSends++
}

// RecordReception clears ConsecutiveSends, re-arming the possibility of a
// pulse on the next send.
func (s *Strategy) RecordReception() {
	s.m.ConsecutiveSends = 0
}

// RecordRTT updates the last observed round-trip time, informational only.
func (s *Strategy) RecordRTT(d time.Duration) {
	s.m.LastRTT = d
}

// SetBatteryLow records whether the device is under power pressure.
func (s *Strategy) SetBatteryLow(low bool) {
	s.m.IsBatteryLow = low
}

// AdaptToStress switches between MinimalOverhead and BalancedFlow in
// response to a detected resource spike (e.g. low battery, high RTT). It
// never moves a session out of MaximumSecurity: that mode is an explicit
// caller choice, not something stress should relax.
func (s *Strategy) AdaptToStress(spike bool) {
	if s.mode == MaximumSecurity {
		return
	}
	if spike {
		s.mode = MinimalOverhead
	} else {
		s.mode = BalancedFlow
	}
}
