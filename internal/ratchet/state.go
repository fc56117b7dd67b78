package ratchet

import (
	"container/heap"

	"github.com/iyotee/pq-fsr/internal/kem"
	"github.com/iyotee/pq-fsr/internal/pqcrypto"
)

// Direction labels assigned to the two symmetric chains. The initiator
// always sends on A2B and receives on B2A; the responder is the mirror.
const (
	labelA2B = "CHAIN|A2B"
	labelB2A = "CHAIN|B2A"
)

// skippedEntry is a derived-but-not-yet-used message key, held so an
// out-of-order arrival can still be decrypted.
type skippedEntry struct {
	key   [32]byte
	nonce [12]byte
}

func (e *skippedEntry) zero() {
	pqcrypto.Zero(e.key[:])
	pqcrypto.Zero(e.nonce[:])
}

// indexHeap is a min-heap of skipped-key indices, used so eviction always
// drops the lowest index in O(log n) instead of scanning the whole map (Go
// map iteration order is unspecified, so a bare map cannot answer "which
// entry is oldest" on its own).
type indexHeap []uint64

func (h indexHeap) Len() int            { return len(h) }
func (h indexHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x interface{}) { *h = append(*h, x.(uint64)) }
func (h *indexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// skippedCache bounds the out-of-order window: at most maxSkip derived keys
// are retained, and once full, inserting a new one evicts the key at the
// lowest index.
type skippedCache struct {
	entries map[uint64]skippedEntry
	order   indexHeap
	maxSkip int
}

func newSkippedCache(maxSkip int) *skippedCache {
	return &skippedCache{
		entries: make(map[uint64]skippedEntry),
		order:   make(indexHeap, 0, maxSkip),
		maxSkip: maxSkip,
	}
}

// store inserts a derived key for idx, evicting the lowest-index entry
// first if the cache is already at capacity.
func (c *skippedCache) store(idx uint64, key [32]byte, nonce [12]byte) {
	if _, exists := c.entries[idx]; !exists && len(c.entries) >= c.maxSkip {
		c.evictOne()
	}
	if _, exists := c.entries[idx]; !exists {
		heap.Push(&c.order, idx)
	}
	c.entries[idx] = skippedEntry{key: key, nonce: nonce}
}

// evictOne drops the lowest surviving index. The heap can carry stale
// indices already removed by recover (lazy deletion), so it pops past those
// before acting on a live one.
func (c *skippedCache) evictOne() {
	for c.order.Len() > 0 {
		idx := heap.Pop(&c.order).(uint64)
		entry, ok := c.entries[idx]
		if !ok {
			continue
		}
		entry.zero()
		delete(c.entries, idx)
		return
	}
}

// clone returns a deep copy: a distinct map, a distinct heap, and every
// entry's key/nonce bytes copied by value. Mutating the clone never
// touches c, so a caller can stage speculative inserts/evictions against
// the clone and only adopt them once every fallible step has succeeded.
func (c *skippedCache) clone() *skippedCache {
	out := &skippedCache{
		entries: make(map[uint64]skippedEntry, len(c.entries)),
		order:   make(indexHeap, len(c.order)),
		maxSkip: c.maxSkip,
	}
	for idx, entry := range c.entries {
		out.entries[idx] = entry
	}
	copy(out.order, c.order)
	return out
}

// peek returns the key stored for idx without removing it, so a caller can
// attempt to use it and only consume it once that attempt succeeds.
func (c *skippedCache) peek(idx uint64) (skippedEntry, bool) {
	entry, ok := c.entries[idx]
	return entry, ok
}

// consume removes the entry for idx after it has been used successfully.
func (c *skippedCache) consume(idx uint64) {
	delete(c.entries, idx)
}

// recover removes and returns the key stored for idx, if any.
func (c *skippedCache) recover(idx uint64) (skippedEntry, bool) {
	entry, ok := c.entries[idx]
	if !ok {
		return skippedEntry{}, false
	}
	delete(c.entries, idx)
	return entry, true
}

// len reports the number of live entries.
func (c *skippedCache) len() int { return len(c.entries) }

// zero wipes and drops every entry, used when the whole ratchet state is
// torn down.
func (c *skippedCache) zero() {
	for idx, entry := range c.entries {
		entry.zero()
		delete(c.entries, idx)
	}
	c.order = c.order[:0]
}

// State is the mutable key hierarchy and bookkeeping the engine advances on
// every encrypt and decrypt call.
type State struct {
	RootKey       [32]byte
	SendChainKey  [32]byte
	RecvChainKey  [32]byte
	SendLabel     string
	RecvLabel     string
	SendCount     uint64
	RecvCount     uint64
	PrevSendCount uint64

	LocalRatchetPrivate kem.PrivateKey
	LocalRatchetPublic  kem.PublicKey
	RemoteRatchetPublic *kem.PublicKey

	CombinedDigest [32]byte
	LocalDigest    [32]byte
	RemoteDigest   *[32]byte

	IsInitiator bool
	MaxSkip     int

	skipped *skippedCache
}

// storeSkipped records a derived-but-unused message key for idx.
func (s *State) storeSkipped(idx uint64, key [32]byte, nonce [12]byte) {
	s.skipped.store(idx, key, nonce)
}

// recoverSkipped returns and removes the message key stored for idx.
func (s *State) recoverSkipped(idx uint64) (skippedEntry, bool) {
	return s.skipped.recover(idx)
}

// peekSkipped returns the message key stored for idx without removing it.
func (s *State) peekSkipped(idx uint64) (skippedEntry, bool) {
	return s.skipped.peek(idx)
}

// consumeSkipped removes the message key stored for idx once it has been
// used successfully.
func (s *State) consumeSkipped(idx uint64) {
	s.skipped.consume(idx)
}

// SkippedCount reports how many out-of-order keys are currently cached.
func (s *State) SkippedCount() int { return s.skipped.len() }

// SkippedTuple is one exported (index, key, nonce) entry, used by the
// serialization layer to export and restore the skipped-key cache without
// reaching into its internal heap/map representation.
type SkippedTuple struct {
	Index uint64
	Key   [32]byte
	Nonce [12]byte
}

// ExportSkipped returns every currently cached skipped-key entry. Order is
// unspecified.
func (s *State) ExportSkipped() []SkippedTuple {
	out := make([]SkippedTuple, 0, s.skipped.len())
	for idx, e := range s.skipped.entries {
		out = append(out, SkippedTuple{Index: idx, Key: e.key, Nonce: e.nonce})
	}
	return out
}

// RestoreSkipped replaces the skipped-key cache's contents with tuples,
// used when reconstructing a State from an exported blob.
func (s *State) RestoreSkipped(maxSkip int, tuples []SkippedTuple) {
	s.skipped = newSkippedCache(maxSkip)
	for _, t := range tuples {
		s.skipped.store(t.Index, t.Key, t.Nonce)
	}
}

// Zero wipes every secret field of the state in place: both chain keys, the
// root key, the local KEM private key, and every cached skipped key. Callers
// should call this when a session is dropped or replaced.
func (s *State) Zero() {
	pqcrypto.Zero(s.RootKey[:])
	pqcrypto.Zero(s.SendChainKey[:])
	pqcrypto.Zero(s.RecvChainKey[:])
	s.LocalRatchetPrivate.Zero()
	if s.skipped != nil {
		s.skipped.zero()
	}
}
