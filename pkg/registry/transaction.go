package registry

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// EventType tags the kind of ownership transition a transaction carries.
type EventType int

const (
	// EventSliced splits a slice of a certificate stream into smaller
	// slices, each with its own commitment.
	EventSliced EventType = iota
	// EventTransferred moves a slice to another endpoint's one-time key.
	EventTransferred
	// EventClaimed retires a pair of production and consumption slices.
	EventClaimed
)

// Transaction is a signed registry event. Its id is the sha256d content
// hash of the serialized transaction, which makes resubmission idempotent:
// submitting the same signed payload twice yields the same id.
type Transaction struct {
	Registry  string    `json:"registry"`
	StreamID  []byte    `json:"streamId"`
	Type      EventType `json:"type"`
	Payload   []byte    `json:"payload"`
	PublicKey []byte    `json:"publicKey"`
	Signature []byte    `json:"signature"`
}

// Serialize returns the deterministic byte representation used both for
// signing and for deriving the transaction id.
func (t *Transaction) Serialize() []byte {
	buf := make([]byte, 0, 128+len(t.Payload))
	buf = appendChunk(buf, []byte(t.Registry))
	buf = appendChunk(buf, t.StreamID)

	kind := make([]byte, 4)
	binary.BigEndian.PutUint32(kind, uint32(t.Type))
	buf = append(buf, kind...)

	buf = appendChunk(buf, t.Payload)
	buf = appendChunk(buf, t.PublicKey)
	buf = appendChunk(buf, t.Signature)
	return buf
}

// SigningPayload returns the bytes covered by the transaction signature,
// which is everything but the signature itself.
func (t *Transaction) SigningPayload() []byte {
	unsigned := *t
	unsigned.Signature = nil
	return unsigned.Serialize()
}

// ID returns the content-hash transaction id in hex format.
func (t *Transaction) ID() string {
	return hex.EncodeToString(chainhash.DoubleHashB(t.Serialize()))
}

func appendChunk(buf, chunk []byte) []byte {
	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(chunk)))
	buf = append(buf, size...)
	return append(buf, chunk...)
}
