package pqfsr

import (
	"github.com/iyotee/pq-fsr/internal/ratchet"
	"github.com/iyotee/pq-fsr/internal/wire"
)

// Packet is one engine-level encrypted message, along with the in-memory
// nonce Encrypt used to seal it. Nonce is never serialized by Pack.
type Packet = ratchet.Packet

// Pack serializes a Packet to its wire form.
func Pack(pkt Packet) ([]byte, error) { return wire.Pack(pkt) }

// Unpack deserializes a wire packet. The result's Nonce is always nil.
func Unpack(data []byte) (Packet, error) { return wire.Unpack(data) }
