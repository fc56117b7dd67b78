package wire

import (
	"encoding/binary"

	"github.com/iyotee/pq-fsr/errs"
	"github.com/iyotee/pq-fsr/internal/kem"
	"github.com/iyotee/pq-fsr/internal/ratchet"
)

// Pack serializes a Packet to its wire form: version(1) count(8) pn(8)
// kem_len(2) kem_ciphertext pub_len(2) ratchet_pub semantic_tag(16)
// ct_len(4) ciphertext. The in-memory nonce is never included.
func Pack(pkt ratchet.Packet) ([]byte, error) {
	pub := pkt.RatchetPub.Bytes()
	if len(pkt.KEMCiphertext) > 0xFFFF {
		return nil, errs.New(errs.SerializationFailed, "kem ciphertext too large for wire field", "kem_len is a u16")
	}
	if len(pub) > 0xFFFF {
		return nil, errs.New(errs.SerializationFailed, "ratchet public key too large for wire field", "pub_len is a u16")
	}
	if uint64(len(pkt.Ciphertext)) > 0xFFFFFFFF {
		return nil, errs.New(errs.SerializationFailed, "ciphertext too large for wire field", "ct_len is a u32")
	}

	out := make([]byte, 0, 1+8+8+2+len(pkt.KEMCiphertext)+2+len(pub)+16+4+len(pkt.Ciphertext))
	out = append(out, pkt.Version)

	var u64buf [8]byte
	binary.BigEndian.PutUint64(u64buf[:], pkt.Count)
	out = append(out, u64buf[:]...)
	binary.BigEndian.PutUint64(u64buf[:], pkt.PN)
	out = append(out, u64buf[:]...)

	var u16buf [2]byte
	binary.BigEndian.PutUint16(u16buf[:], uint16(len(pkt.KEMCiphertext)))
	out = append(out, u16buf[:]...)
	out = append(out, pkt.KEMCiphertext...)

	binary.BigEndian.PutUint16(u16buf[:], uint16(len(pub)))
	out = append(out, u16buf[:]...)
	out = append(out, pub...)

	out = append(out, pkt.SemanticTag[:]...)

	var u32buf [4]byte
	binary.BigEndian.PutUint32(u32buf[:], uint32(len(pkt.Ciphertext)))
	out = append(out, u32buf[:]...)
	out = append(out, pkt.Ciphertext...)

	return out, nil
}

// Unpack deserializes a wire packet. The returned Packet's Nonce is always
// nil: the nonce is never transmitted and must be re-derived by the
// receiver.
func Unpack(data []byte) (ratchet.Packet, error) {
	var pkt ratchet.Packet

	if len(data) < 1+8+8+2 {
		return pkt, errs.New(errs.PacketTooShort, "packet shorter than the fixed header", "need at least 19 bytes before the variable-length fields")
	}
	pkt.Version = data[0]
	data = data[1:]

	pkt.Count = binary.BigEndian.Uint64(data[:8])
	data = data[8:]
	pkt.PN = binary.BigEndian.Uint64(data[:8])
	data = data[8:]

	if len(data) < 2 {
		return pkt, errs.New(errs.PacketTooShort, "packet truncated before kem_len", "")
	}
	kemLen := int(binary.BigEndian.Uint16(data[:2]))
	data = data[2:]
	if len(data) < kemLen {
		return pkt, errs.New(errs.PacketTooShort, "packet truncated within kem_ciphertext", "")
	}
	if kemLen > 0 {
		pkt.KEMCiphertext = append([]byte(nil), data[:kemLen]...)
	}
	data = data[kemLen:]

	if len(data) < 2 {
		return pkt, errs.New(errs.PacketTooShort, "packet truncated before pub_len", "")
	}
	pubLen := int(binary.BigEndian.Uint16(data[:2]))
	data = data[2:]
	if len(data) < pubLen {
		return pkt, errs.New(errs.PacketTooShort, "packet truncated within ratchet_pub", "")
	}
	pub, err := kem.PublicKeyFromBytes(data[:pubLen])
	if err != nil {
		return pkt, errs.Wrap(errs.InvalidPacketFormat, "decode ratchet public key", "ratchet_pub is not a valid key", err)
	}
	pkt.RatchetPub = pub
	data = data[pubLen:]

	if len(data) < 16 {
		return pkt, errs.New(errs.PacketTooShort, "packet truncated within semantic_tag", "")
	}
	copy(pkt.SemanticTag[:], data[:16])
	data = data[16:]

	if len(data) < 4 {
		return pkt, errs.New(errs.PacketTooShort, "packet truncated before ct_len", "")
	}
	ctLen := int(binary.BigEndian.Uint32(data[:4]))
	data = data[4:]
	if len(data) != ctLen {
		return pkt, errs.New(errs.InvalidPacketFormat, "ciphertext length does not match ct_len", "trailing or missing bytes after ciphertext")
	}
	pkt.Ciphertext = append([]byte(nil), data...)

	return pkt, nil
}
