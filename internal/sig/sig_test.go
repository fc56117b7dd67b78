package sig_test

import (
	"testing"

	"github.com/iyotee/pq-fsr/internal/sig"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	pub, priv, err := sig.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	msg := []byte("handshake transcript")
	signature, err := sig.Sign(priv, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(signature) != sig.SignatureSize {
		t.Fatalf("signature length = %d, want %d", len(signature), sig.SignatureSize)
	}

	if !sig.Verify(pub, msg, signature) {
		t.Fatal("Verify rejected a valid signature")
	}
}

func TestVerify_RejectsTamperedMessage(t *testing.T) {
	pub, priv, err := sig.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	signature, err := sig.Sign(priv, []byte("original"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig.Verify(pub, []byte("tampered"), signature) {
		t.Fatal("Verify accepted a signature over a different message")
	}
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	_, priv, err := sig.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	otherPub, _, err := sig.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}

	msg := []byte("handshake transcript")
	signature, err := sig.Sign(priv, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig.Verify(otherPub, msg, signature) {
		t.Fatal("Verify accepted a signature under the wrong public key")
	}
}
