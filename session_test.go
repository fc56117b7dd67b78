package pqfsr_test

import (
	"bytes"
	"testing"

	pqfsr "github.com/iyotee/pq-fsr"
)

// establish runs a full request/response handshake between a fresh initiator
// and responder and returns both Ready sessions.
func establish(t *testing.T) (*pqfsr.Session, *pqfsr.Session) {
	t.Helper()
	alice := pqfsr.NewInitiator("alice_hint", pqfsr.BalancedFlow)
	bob := pqfsr.NewResponder("bob_hint", pqfsr.BalancedFlow)

	req, err := alice.CreateHandshakeRequest()
	if err != nil {
		t.Fatalf("CreateHandshakeRequest: %v", err)
	}
	resp, err := bob.AcceptHandshake(req)
	if err != nil {
		t.Fatalf("AcceptHandshake: %v", err)
	}
	if err := alice.FinalizeHandshake(resp); err != nil {
		t.Fatalf("FinalizeHandshake: %v", err)
	}

	if !alice.Ready() || !bob.Ready() {
		t.Fatal("both sides should be Ready after a completed handshake")
	}
	return alice, bob
}

// TestSession_HandshakeThenFiveMessages covers end-to-end handshake
// establishment followed by five messages flowing in order, exercising the
// public API the way an application would use it.
func TestSession_HandshakeThenFiveMessages(t *testing.T) {
	alice, bob := establish(t)

	ad := []byte("conversation:alice-bob")
	for i := 0; i < 5; i++ {
		plaintext := []byte("message number " + string(rune('0'+i)))
		pkt, err := alice.Encrypt(ad, plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%d): %v", i, err)
		}
		wire, err := pqfsr.Pack(pkt)
		if err != nil {
			t.Fatalf("Pack(%d): %v", i, err)
		}
		gotPkt, err := pqfsr.Unpack(wire)
		if err != nil {
			t.Fatalf("Unpack(%d): %v", i, err)
		}
		got, err := bob.Decrypt(ad, gotPkt)
		if err != nil {
			t.Fatalf("Decrypt(%d): %v", i, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("message %d round trip mismatch: got %q, want %q", i, got, plaintext)
		}
	}
}

// TestSession_EncryptDecryptBeforeHandshakeFails exercises the documented
// SessionNotReady failure before a handshake has completed.
func TestSession_EncryptDecryptBeforeHandshakeFails(t *testing.T) {
	alice := pqfsr.NewInitiator("alice_hint", pqfsr.BalancedFlow)
	if _, err := alice.Encrypt(nil, []byte("too soon")); err == nil {
		t.Fatal("expected Encrypt before handshake completion to fail")
	}
}

// TestSession_StatePersistence covers exporting a session mid-conversation,
// reconstructing it from the export, and continuing to exchange messages
// with the peer that never left memory.
func TestSession_StatePersistence(t *testing.T) {
	alice, bob := establish(t)
	ad := []byte("conversation:alice-bob")

	pkt, err := alice.Encrypt(ad, []byte("before persistence"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := bob.Decrypt(ad, pkt); err != nil {
		t.Fatalf("Decrypt: %v", err)
	}

	blob, err := bob.ExportState()
	if err != nil {
		t.Fatalf("ExportState: %v", err)
	}

	password := []byte("correct horse battery staple")
	container, err := pqfsr.EncryptState(password, blob)
	if err != nil {
		t.Fatalf("EncryptState: %v", err)
	}
	recoveredBlob, err := pqfsr.DecryptState(password, container)
	if err != nil {
		t.Fatalf("DecryptState: %v", err)
	}

	restoredBob, err := pqfsr.ImportSession(recoveredBlob, pqfsr.BalancedFlow)
	if err != nil {
		t.Fatalf("ImportSession: %v", err)
	}
	if !restoredBob.Ready() {
		t.Fatal("a session restored from an exported Ready state must itself be Ready")
	}

	pkt2, err := alice.Encrypt(ad, []byte("after persistence"))
	if err != nil {
		t.Fatalf("Encrypt after persistence: %v", err)
	}
	got, err := restoredBob.Decrypt(ad, pkt2)
	if err != nil {
		t.Fatalf("Decrypt on restored session: %v", err)
	}
	if string(got) != "after persistence" {
		t.Fatalf("got %q, want %q", got, "after persistence")
	}
}
