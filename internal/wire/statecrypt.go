package wire

import (
	"bytes"

	"github.com/iyotee/pq-fsr/errs"
	"github.com/iyotee/pq-fsr/internal/pqcrypto"
)

// stateEncHeader is both the container's magic prefix and the AEAD's
// associated data.
var stateEncHeader = []byte("PQFSR_ENC_V1____")

// EncryptState wraps a serialized state blob (from ExportState or
// ExportStateJSON) in an AEAD container keyed directly off password: no
// separate password-hardening step runs first, matching the literal
// derivation this format pins down.
func EncryptState(password, blob []byte) ([]byte, error) {
	encKey, err := pqcrypto.HKDF(password, []byte("PQ-FSR-STATE-ENC"), []byte("enc_key"), 32)
	if err != nil {
		return nil, errs.Wrap(errs.StateEncryptionFailed, "derive encryption key", "state was not encrypted", err)
	}
	encNonce, err := pqcrypto.HKDF(password, []byte("PQ-FSR-STATE-ENC"), []byte("enc_nonce"), 12)
	if err != nil {
		return nil, errs.Wrap(errs.StateEncryptionFailed, "derive nonce", "state was not encrypted", err)
	}

	ct, err := pqcrypto.Seal(encKey, encNonce, blob, stateEncHeader)
	if err != nil {
		return nil, errs.Wrap(errs.StateEncryptionFailed, "seal", "state was not encrypted", err)
	}

	out := make([]byte, 0, len(stateEncHeader)+len(ct))
	out = append(out, stateEncHeader...)
	out = append(out, ct...)
	return out, nil
}

// DecryptState reverses EncryptState. A wrong password surfaces as
// InvalidPassword, matching the AEAD's inability to distinguish "bad key"
// from "tampered ciphertext."
func DecryptState(password, container []byte) ([]byte, error) {
	if len(container) < len(stateEncHeader) {
		return nil, errs.New(errs.StateDecryptionFailed, "container shorter than the header", "not a valid encrypted state blob")
	}
	header := container[:len(stateEncHeader)]
	if !bytes.Equal(header, stateEncHeader) {
		return nil, errs.New(errs.StateDecryptionFailed, "unrecognized container header", "not a pq-fsr encrypted state blob")
	}

	encKey, err := pqcrypto.HKDF(password, []byte("PQ-FSR-STATE-ENC"), []byte("enc_key"), 32)
	if err != nil {
		return nil, errs.Wrap(errs.StateDecryptionFailed, "derive encryption key", "state could not be decrypted", err)
	}
	encNonce, err := pqcrypto.HKDF(password, []byte("PQ-FSR-STATE-ENC"), []byte("enc_nonce"), 12)
	if err != nil {
		return nil, errs.Wrap(errs.StateDecryptionFailed, "derive nonce", "state could not be decrypted", err)
	}

	pt, err := pqcrypto.Open(encKey, encNonce, container[len(stateEncHeader):], header)
	if err != nil {
		return nil, errs.New(errs.InvalidPassword, "state container did not authenticate", "wrong password or corrupted blob")
	}
	return pt, nil
}
