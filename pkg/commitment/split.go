package commitment

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	equalityProofTag = "gcert/proof/equality/v1"
)

// SplitProof is a zero-knowledge equality proof that the sum of the part
// commitments opens to the same quantity as the source commitment. The proof
// is bound to the certificate stream id so it cannot be replayed against a
// different certificate.
type SplitProof struct {
	Source   []byte
	Parts    []*CommittedValue
	StreamID []byte
	Nonce    []byte
	Response []byte
}

// Split derives fresh committed values for the given part quantities and
// produces the equality proof against the source. The part quantities must
// sum up exactly to the source quantity, anything else is a programming
// error surfaced as ErrSplitQuantityMismatch.
func Split(
	params *Params, source *CommittedValue, quantities []uint64, streamID []byte,
) (*SplitProof, error) {
	if len(quantities) == 0 {
		return nil, ErrNullSplitQuantities
	}
	if len(streamID) == 0 {
		return nil, ErrNullStreamID
	}

	var total uint64
	for _, q := range quantities {
		if q >= 1<<RangeBits {
			return nil, ErrQuantityOutOfRange
		}
		total += q
	}
	if total != source.Quantity {
		return nil, ErrSplitQuantityMismatch
	}

	sourceBlinding, err := parseScalar(params, source.BlindingFactor)
	if err != nil {
		return nil, err
	}

	for {
		parts := make([]*CommittedValue, 0, len(quantities))
		blindingSum := new(big.Int)
		for _, q := range quantities {
			part, err := New(params, q)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
			r, _ := parseScalar(params, part.BlindingFactor)
			blindingSum.Add(blindingSum, r)
		}

		// delta is the difference between the sum of the part blinders and
		// the source blinder. The sum of the part commitments then differs
		// from the source commitment by exactly delta*H, and knowledge of
		// delta proves quantity equality.
		delta := new(big.Int).Sub(blindingSum, sourceBlinding)
		delta.Mod(delta, params.curve.N)
		if delta.Sign() == 0 {
			continue
		}

		k, err := randomScalar(params)
		if err != nil {
			return nil, err
		}
		kx, ky := params.mulH(k)
		nonce := marshalPoint(kx, ky)

		proof := &SplitProof{
			Source:   source.Commitment,
			Parts:    parts,
			StreamID: streamID,
			Nonce:    nonce,
		}

		e := equalityChallenge(params, proof)
		s := new(big.Int).Mul(e, delta)
		s.Add(s, k)
		s.Mod(s, params.curve.N)

		proof.Response = scalarBytes(s)
		return proof, nil
	}
}

// VerifySplit checks the equality proof: s*H == K + e*(sum(parts) - source).
func VerifySplit(params *Params, proof *SplitProof) bool {
	if len(proof.Parts) == 0 || len(proof.StreamID) == 0 {
		return false
	}

	srcX, srcY, err := parsePoint(proof.Source)
	if err != nil {
		return false
	}
	kx, ky, err := parsePoint(proof.Nonce)
	if err != nil {
		return false
	}
	s, err := parseScalar(params, proof.Response)
	if err != nil {
		return false
	}

	var sumX, sumY *big.Int
	for _, part := range proof.Parts {
		px, py, err := parsePoint(part.Commitment)
		if err != nil {
			return false
		}
		if sumX == nil {
			sumX, sumY = px, py
			continue
		}
		sumX, sumY = params.curve.Add(sumX, sumY, px, py)
	}

	// D = sum(parts) - source
	negY := new(big.Int).Sub(params.curve.P, srcY)
	dx, dy := params.curve.Add(sumX, sumY, srcX, negY)

	e := equalityChallenge(params, proof)

	lhsX, lhsY := params.mulH(s)
	edX, edY := params.curve.ScalarMult(dx, dy, e.Bytes())
	rhsX, rhsY := params.curve.Add(kx, ky, edX, edY)

	return lhsX.Cmp(rhsX) == 0 && lhsY.Cmp(rhsY) == 0
}

func equalityChallenge(params *Params, proof *SplitProof) *big.Int {
	transcript := make([]byte, 0, 128)
	transcript = append(transcript, []byte(equalityProofTag)...)
	transcript = append(transcript, proof.StreamID...)
	transcript = append(transcript, proof.Source...)
	for _, part := range proof.Parts {
		transcript = append(transcript, part.Commitment...)
	}
	transcript = append(transcript, proof.Nonce...)

	e := new(big.Int).SetBytes(chainhash.HashB(transcript))
	e.Mod(e, params.curve.N)
	return e
}
