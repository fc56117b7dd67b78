package ratchet

import "testing"

func TestSkippedCache_StoreAndRecover(t *testing.T) {
	c := newSkippedCache(4)
	var k [32]byte
	var n [12]byte
	k[0] = 0xAA

	c.store(5, k, n)
	got, ok := c.recover(5)
	if !ok {
		t.Fatal("expected entry at index 5")
	}
	if got.key != k {
		t.Fatal("recovered key does not match stored key")
	}
	if _, ok := c.recover(5); ok {
		t.Fatal("entry should have been removed on recover")
	}
}

func TestSkippedCache_EvictsLowestIndex(t *testing.T) {
	c := newSkippedCache(3)
	var k [32]byte
	var n [12]byte

	c.store(10, k, n)
	c.store(3, k, n)
	c.store(7, k, n)
	if c.len() != 3 {
		t.Fatalf("len = %d, want 3", c.len())
	}

	// Cache is full; inserting a fourth must evict index 3 (the lowest).
	c.store(20, k, n)
	if c.len() != 3 {
		t.Fatalf("len = %d, want 3 after eviction", c.len())
	}
	if _, ok := c.recover(3); ok {
		t.Fatal("index 3 should have been evicted as the lowest entry")
	}
	if _, ok := c.recover(7); !ok {
		t.Fatal("index 7 should have survived eviction")
	}
	if _, ok := c.recover(10); !ok {
		t.Fatal("index 10 should have survived eviction")
	}
	if _, ok := c.recover(20); !ok {
		t.Fatal("index 20 should have survived eviction")
	}
}

func TestSkippedCache_EvictionSkipsStaleHeapEntries(t *testing.T) {
	c := newSkippedCache(2)
	var k [32]byte
	var n [12]byte

	c.store(1, k, n)
	c.store(2, k, n)
	// Recover 1 directly, leaving a stale heap entry for it.
	c.recover(1)

	c.store(3, k, n) // should not evict anything: cache has only 1 live entry
	if c.len() != 2 {
		t.Fatalf("len = %d, want 2", c.len())
	}
	c.store(4, k, n) // now full again; must evict index 2, not the stale 1
	if _, ok := c.recover(2); ok {
		t.Fatal("index 2 should have been evicted as the lowest live index")
	}
	if _, ok := c.recover(3); !ok {
		t.Fatal("index 3 should have survived")
	}
	if _, ok := c.recover(4); !ok {
		t.Fatal("index 4 should have survived")
	}
}

func TestState_ZeroWipesSecrets(t *testing.T) {
	s := &State{skipped: newSkippedCache(4)}
	s.RootKey[0] = 1
	s.SendChainKey[0] = 1
	s.RecvChainKey[0] = 1
	var k [32]byte
	var n [12]byte
	s.storeSkipped(0, k, n)

	s.Zero()
	var zero [32]byte
	if s.RootKey != zero || s.SendChainKey != zero || s.RecvChainKey != zero {
		t.Fatal("Zero did not clear chain/root keys")
	}
	if s.SkippedCount() != 0 {
		t.Fatal("Zero did not clear the skipped cache")
	}
}
