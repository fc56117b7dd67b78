package wire_test

import (
	"bytes"
	"testing"

	"github.com/iyotee/pq-fsr/internal/kem"
	"github.com/iyotee/pq-fsr/internal/ratchet"
	"github.com/iyotee/pq-fsr/internal/wire"
)

func makePacket(t *testing.T, withPulse bool) ratchet.Packet {
	t.Helper()
	pub, _, err := kem.GenerateKeyPair()
	if err != nil {
		t.Fatalf("kem.GenerateKeyPair: %v", err)
	}
	pkt := ratchet.Packet{
		Version:     1,
		Count:       42,
		PN:          10,
		RatchetPub:  pub,
		Ciphertext:  []byte("ciphertext-and-tag"),
		SemanticTag: [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
	}
	if withPulse {
		ct, _, err := kem.Encapsulate(pub)
		if err != nil {
			t.Fatalf("kem.Encapsulate: %v", err)
		}
		pkt.KEMCiphertext = ct
	}
	return pkt
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	pkt := makePacket(t, false)
	data, err := wire.Pack(pkt)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := wire.Unpack(data)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got.Version != pkt.Version || got.Count != pkt.Count || got.PN != pkt.PN {
		t.Fatalf("header fields mismatch: got %+v, want %+v", got, pkt)
	}
	if got.SemanticTag != pkt.SemanticTag {
		t.Fatal("semantic tag mismatch")
	}
	if !bytes.Equal(got.Ciphertext, pkt.Ciphertext) {
		t.Fatal("ciphertext mismatch")
	}
	if !bytes.Equal(got.RatchetPub.Bytes(), pkt.RatchetPub.Bytes()) {
		t.Fatal("ratchet public key mismatch")
	}
	if len(got.KEMCiphertext) != 0 {
		t.Fatal("expected no kem ciphertext on a flow packet")
	}
	if got.Nonce != nil {
		t.Fatal("Unpack must never populate Nonce: it is not on the wire")
	}
}

func TestPackUnpack_WithPulse(t *testing.T) {
	pkt := makePacket(t, true)
	data, err := wire.Pack(pkt)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	got, err := wire.Unpack(data)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(got.KEMCiphertext) != kem.CiphertextSize {
		t.Fatalf("kem ciphertext length = %d, want %d", len(got.KEMCiphertext), kem.CiphertextSize)
	}
	if !bytes.Equal(got.KEMCiphertext, pkt.KEMCiphertext) {
		t.Fatal("kem ciphertext mismatch")
	}
}

func TestUnpack_RejectsTruncatedPacket(t *testing.T) {
	pkt := makePacket(t, false)
	data, err := wire.Pack(pkt)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if _, err := wire.Unpack(data[:len(data)-5]); err == nil {
		t.Fatal("expected a truncated packet to fail to unpack")
	}
}

func TestUnpack_RejectsTooShort(t *testing.T) {
	if _, err := wire.Unpack([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected a too-short buffer to be rejected")
	}
}
