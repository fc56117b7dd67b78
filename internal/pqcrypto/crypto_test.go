package pqcrypto_test

import (
	"bytes"
	"testing"

	"github.com/iyotee/pq-fsr/internal/pqcrypto"
)

func TestHKDF_DeterministicAndLength(t *testing.T) {
	ikm := []byte("shared secret")
	info := []byte("PQ-FSR msg")

	a, err := pqcrypto.HKDF(nil, ikm, info, 32)
	if err != nil {
		t.Fatalf("HKDF: %v", err)
	}
	if len(a) != 32 {
		t.Fatalf("got length %d, want 32", len(a))
	}

	b, err := pqcrypto.HKDF(nil, ikm, info, 32)
	if err != nil {
		t.Fatalf("HKDF: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("HKDF not deterministic for identical inputs")
	}

	c, err := pqcrypto.HKDF([]byte{}, ikm, []byte("different info"), 32)
	if err != nil {
		t.Fatalf("HKDF: %v", err)
	}
	if bytes.Equal(a, c) {
		t.Fatal("HKDF output identical despite different info")
	}
}

func TestHKDF_RejectsNonPositiveLength(t *testing.T) {
	if _, err := pqcrypto.HKDF(nil, []byte("x"), []byte("y"), 0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, pqcrypto.KeySize)
	nonce := bytes.Repeat([]byte{0x22}, pqcrypto.NonceSize)
	ad := []byte("associated data")
	pt := []byte("hello ratchet")

	ct, err := pqcrypto.Seal(key, nonce, pt, ad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := pqcrypto.Open(key, nonce, ct, ad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatalf("got %q, want %q", got, pt)
	}
}

func TestOpen_FailsOnADMismatch(t *testing.T) {
	key := bytes.Repeat([]byte{0x33}, pqcrypto.KeySize)
	nonce := bytes.Repeat([]byte{0x44}, pqcrypto.NonceSize)

	ct, err := pqcrypto.Seal(key, nonce, []byte("secret"), []byte("ad1"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := pqcrypto.Open(key, nonce, ct, []byte("ad2")); err == nil {
		t.Fatal("expected failure with mismatched AD")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{1, 2, 3}
	c := []byte{1, 2, 4}

	if !pqcrypto.ConstantTimeEqual(a, b) {
		t.Fatal("equal slices reported unequal")
	}
	if pqcrypto.ConstantTimeEqual(a, c) {
		t.Fatal("unequal slices reported equal")
	}
	if pqcrypto.ConstantTimeEqual(a, []byte{1, 2}) {
		t.Fatal("different-length slices reported equal")
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	pqcrypto.Zero(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
}
