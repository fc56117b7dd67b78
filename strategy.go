package pqfsr

import "github.com/iyotee/pq-fsr/internal/strategy"

// PulseMode selects how aggressively a Session schedules KEM pulses.
type PulseMode = strategy.Mode

const (
	// MaximumSecurity pulses on every outgoing message that burst
	// protection allows, i.e. the first send after each reception.
	MaximumSecurity = strategy.MaximumSecurity
	// BalancedFlow pulses on decay or large messages, otherwise prefers the
	// cheaper symmetric chain. This is the default for NewInitiator/NewResponder.
	BalancedFlow = strategy.BalancedFlow
	// MinimalOverhead pulses on decay or large messages, under the same
	// rules as BalancedFlow.
	MinimalOverhead = strategy.MinimalOverhead
)

// DefaultMaxSkip is the default out-of-order window / skipped-key cache
// capacity a Session's ratchet is constructed with.
const DefaultMaxSkip = strategy.DefaultMaxSkip
