package replay

import (
	"container/list"
	"encoding/binary"
	"sync"
	"time"

	"github.com/iyotee/pq-fsr/errs"
)

// Default tuning: a one-hour acceptance window, five minutes of tolerated
// clock skew, a ten-thousand-entry cache, and a one-day TTL.
const (
	DefaultWindow  = 3600 * time.Second
	DefaultSkew    = 300 * time.Second
	DefaultMaxSize = 10000
	DefaultTTL     = 86400 * time.Second
)

// ID is a 16-byte handshake identifier: 12 random bytes followed by a
// big-endian Unix-second timestamp.
type ID [16]byte

// Timestamp extracts the embedded Unix-second timestamp.
func (id ID) Timestamp() time.Time {
	sec := binary.BigEndian.Uint32(id[12:])
	return time.Unix(int64(sec), 0)
}

type entry struct {
	id           ID
	firstSeen    time.Time
	lastAccessed time.Time
	seenCount    uint64
	elem         *list.Element
}

// Config bounds a Cache's acceptance window, clock-skew tolerance, capacity,
// and entry lifetime.
type Config struct {
	Window  time.Duration
	Skew    time.Duration
	MaxSize int
	TTL     time.Duration
}

// DefaultConfig returns the default tuning documented above.
func DefaultConfig() Config {
	return Config{Window: DefaultWindow, Skew: DefaultSkew, MaxSize: DefaultMaxSize, TTL: DefaultTTL}
}

// Cache is a bounded, mutex-guarded replay cache. The zero value is not
// usable; construct with New or NewDefault.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	entries map[ID]*entry
	lru     *list.List // front = most recently accessed
	checks  uint64
	now     func() time.Time
}

// New constructs a Cache with the given configuration.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:     cfg,
		entries: make(map[ID]*entry),
		lru:     list.New(),
		now:     time.Now,
	}
}

// NewDefault constructs a Cache with the default tuning documented above.
func NewDefault() *Cache { return New(DefaultConfig()) }

var (
	globalMu    sync.Mutex
	globalCache *Cache
)

// Global returns the process-wide replay cache shared by every responder in
// the process, constructing it on first use.
func Global() *Cache {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalCache == nil {
		globalCache = NewDefault()
	}
	return globalCache
}

// ResetGlobal discards the process-wide cache's state. Test-only.
func ResetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCache = NewDefault()
}

// Check validates id's embedded timestamp against the configured window and
// skew, then checks it against the cache: a prior sighting is reported as a
// replay, otherwise id is recorded as seen.
func (c *Cache) Check(id ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ts := id.Timestamp()
	if now.Sub(ts) > c.cfg.Window {
		return errs.New(errs.InvalidHandshakeRequest, "handshake id timestamp too old", "the handshake attempt has expired")
	}
	if ts.Sub(now) > c.cfg.Skew {
		return errs.New(errs.InvalidHandshakeRequest, "handshake id timestamp too far in the future", "check clock synchronization")
	}

	c.checks++
	if e, ok := c.entries[id]; ok {
		e.seenCount++
		e.lastAccessed = now
		c.lru.MoveToFront(e.elem)
		return errs.New(errs.HandshakeReplay, "handshake id already seen", "generate a new handshake attempt")
	}

	if len(c.entries) >= c.cfg.MaxSize {
		c.evictOne()
	}

	e := &entry{id: id, firstSeen: now, lastAccessed: now, seenCount: 1}
	e.elem = c.lru.PushFront(e)
	c.entries[id] = e

	if c.checks%100 == 0 || len(c.entries) >= c.cfg.MaxSize {
		c.cleanup(now)
	}
	return nil
}

// evictOne drops the least-recently-accessed entry.
func (c *Cache) evictOne() {
	back := c.lru.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	c.lru.Remove(back)
	delete(c.entries, e.id)
}

// cleanup removes entries whose age exceeds the configured TTL.
func (c *Cache) cleanup(now time.Time) {
	for id, e := range c.entries {
		if now.Sub(e.firstSeen) > c.cfg.TTL {
			c.lru.Remove(e.elem)
			delete(c.entries, id)
		}
	}
}

// Len reports the number of entries currently cached. Test/diagnostic use.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
