// Package wire implements the on-the-wire packet encoding, the
// self-describing session-state export format, and state-at-rest
// encryption.
package wire
