package ratchet

import (
	"bytes"
	"testing"

	"github.com/iyotee/pq-fsr/internal/kem"
	"github.com/iyotee/pq-fsr/internal/strategy"
)

// bootstrapPair simulates a completed handshake: both sides agree on a
// shared secret and combined digest out of band, then each bootstraps its
// own State and learns the other's ratchet public key.
func bootstrapPair(t *testing.T) (a, b *State) {
	t.Helper()

	aPub, aPriv, err := kem.GenerateKeyPair()
	if err != nil {
		t.Fatalf("kem.GenerateKeyPair: %v", err)
	}
	bPub, bPriv, err := kem.GenerateKeyPair()
	if err != nil {
		t.Fatalf("kem.GenerateKeyPair: %v", err)
	}

	ct, ss, err := kem.Encapsulate(bPub)
	if err != nil {
		t.Fatalf("kem.Encapsulate: %v", err)
	}
	ss2, err := kem.Decapsulate(bPriv, ct)
	if err != nil {
		t.Fatalf("kem.Decapsulate: %v", err)
	}
	if !bytes.Equal(ss, ss2) {
		t.Fatal("shared secrets do not match")
	}

	var combined, localDigestA, localDigestB [32]byte
	combined[0] = 0x11
	localDigestA[0] = 0xAA
	localDigestB[0] = 0xBB

	a, err = Bootstrap(ss, combined, localDigestA, &localDigestB, true, aPub, aPriv, strategy.DefaultMaxSkip)
	if err != nil {
		t.Fatalf("Bootstrap(a): %v", err)
	}
	b, err = Bootstrap(ss2, combined, localDigestB, &localDigestA, false, bPub, bPriv, strategy.DefaultMaxSkip)
	if err != nil {
		t.Fatalf("Bootstrap(b): %v", err)
	}

	a.RemoteRatchetPublic = &bPub
	b.RemoteRatchetPublic = &aPub

	if a.RootKey != b.RootKey {
		t.Fatal("root keys diverged immediately after bootstrap")
	}
	if a.SendChainKey != b.RecvChainKey || a.RecvChainKey != b.SendChainKey {
		t.Fatal("send/recv chains are not mirrored across initiator and responder")
	}

	return a, b
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	a, b := bootstrapPair(t)
	stratA := strategy.New(strategy.BalancedFlow)
	stratB := strategy.New(strategy.BalancedFlow)

	ad := []byte("context")
	pkt, err := Encrypt(a, stratA, ad, []byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := Decrypt(b, stratB, ad, pkt)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(pt) != "hello" {
		t.Fatalf("got %q, want %q", pt, "hello")
	}
}

func TestEncryptDecrypt_FiveMessagesInOrder(t *testing.T) {
	a, b := bootstrapPair(t)
	stratA := strategy.New(strategy.BalancedFlow)
	stratB := strategy.New(strategy.BalancedFlow)

	want := []string{"Message 0", "Message 1", "Message 2", "Message 3", "Message 4"}
	for _, m := range want {
		pkt, err := Encrypt(a, stratA, nil, []byte(m))
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", m, err)
		}
		pt, err := Decrypt(b, stratB, nil, pkt)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", m, err)
		}
		if string(pt) != m {
			t.Fatalf("got %q, want %q", pt, m)
		}
	}
	if a.SendCount != 5 {
		t.Fatalf("a.SendCount = %d, want 5", a.SendCount)
	}
	if b.RecvCount != 5 {
		t.Fatalf("b.RecvCount = %d, want 5", b.RecvCount)
	}
}

func TestDecrypt_OutOfOrderWithinWindow(t *testing.T) {
	a, b := bootstrapPair(t)
	stratA := strategy.New(strategy.BalancedFlow)
	stratB := strategy.New(strategy.BalancedFlow)

	var pkts []Packet
	for _, m := range []string{"P0", "P1", "P2"} {
		pkt, err := Encrypt(a, stratA, nil, []byte(m))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		pkts = append(pkts, pkt)
	}

	order := []int{2, 0, 1}
	want := []string{"P2", "P0", "P1"}
	for i, idx := range order {
		pt, err := Decrypt(b, stratB, nil, pkts[idx])
		if err != nil {
			t.Fatalf("Decrypt(pkts[%d]): %v", idx, err)
		}
		if string(pt) != want[i] {
			t.Fatalf("got %q, want %q", pt, want[i])
		}
	}

	if b.RecvCount != 3 {
		t.Fatalf("b.RecvCount = %d, want 3", b.RecvCount)
	}
	if b.SkippedCount() != 0 {
		t.Fatalf("skipped cache should be empty once every gap is filled, got %d", b.SkippedCount())
	}
}

func TestDecrypt_ADMismatchFails(t *testing.T) {
	a, b := bootstrapPair(t)
	stratA := strategy.New(strategy.BalancedFlow)
	stratB := strategy.New(strategy.BalancedFlow)

	pkt, err := Encrypt(a, stratA, []byte("md:1"), []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(b, stratB, []byte("md:2"), pkt); err == nil {
		t.Fatal("expected decryption to fail under mismatched associated data")
	}
}

func TestEncrypt_LargeMessageForcesPulse(t *testing.T) {
	a, b := bootstrapPair(t)
	stratA := strategy.New(strategy.BalancedFlow)
	stratB := strategy.New(strategy.BalancedFlow)

	payload := make([]byte, 2000)
	pkt, err := Encrypt(a, stratA, nil, payload)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(pkt.KEMCiphertext) != kem.CiphertextSize {
		t.Fatalf("kem ciphertext length = %d, want %d", len(pkt.KEMCiphertext), kem.CiphertextSize)
	}

	if _, err := Decrypt(b, stratB, nil, pkt); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if a.RootKey != b.RootKey {
		t.Fatal("root keys did not converge after the pulse")
	}
}

func TestDecrypt_ReplayOfSameIndexFails(t *testing.T) {
	a, b := bootstrapPair(t)
	stratA := strategy.New(strategy.BalancedFlow)
	stratB := strategy.New(strategy.BalancedFlow)

	pkt, err := Encrypt(a, stratA, nil, []byte("once"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(b, stratB, nil, pkt); err != nil {
		t.Fatalf("first Decrypt: %v", err)
	}
	if _, err := Decrypt(b, stratB, nil, pkt); err == nil {
		t.Fatal("expected replayed packet to be rejected")
	}
}
