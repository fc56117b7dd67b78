// Package replay implements the handshake-ID replay cache: a bounded,
// TTL-and-LRU-evicted record of which handshake attempts a responder has
// already accepted.
//
// Every session keeps its own cache, and the package also exposes a single
// process-wide instance (Global) that every responder consults in addition
// to its own, so a replayed handshake_id is rejected even across sessions.
package replay
