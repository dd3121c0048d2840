package commitment

import (
	"encoding/binary"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	rangeProofTag = "gcert/proof/range/v1"
)

// RangeProof proves that a committed quantity is non-negative and below
// 2^RangeBits, without revealing it. The quantity is decomposed in bit
// commitments B_j = b_j*G + s_j*H whose weighted sum reproduces the value
// commitment, and each bit carries an OR-proof that it opens to 0 or 1.
// The proof is bound to the certificate stream id.
type RangeProof struct {
	Commitment []byte
	StreamID   []byte
	Bits       []BitProof
}

// BitProof is a chaum-pedersen style OR-proof for a single bit commitment.
type BitProof struct {
	B  []byte
	A0 []byte
	A1 []byte
	E0 []byte
	E1 []byte
	S0 []byte
	S1 []byte
}

// ProveRange builds the range proof for the given opened commitment.
func ProveRange(
	params *Params, quantity uint64, blindingFactor, streamID []byte,
) (*RangeProof, error) {
	if quantity >= 1<<RangeBits {
		return nil, ErrQuantityOutOfRange
	}
	if len(streamID) == 0 {
		return nil, ErrNullStreamID
	}
	r, err := parseScalar(params, blindingFactor)
	if err != nil {
		return nil, err
	}

	c, err := Commit(params, quantity, blindingFactor)
	if err != nil {
		return nil, err
	}

	// Pick random bit blinders for every bit but the lowest, then solve the
	// lowest one so that sum(2^j * s_j) == r. This makes the weighted sum of
	// the bit commitments match the value commitment exactly.
	blinders := make([]*big.Int, RangeBits)
	weighted := new(big.Int)
	for j := 1; j < RangeBits; j++ {
		s, err := randomScalar(params)
		if err != nil {
			return nil, err
		}
		blinders[j] = s
		weight := new(big.Int).Lsh(s, uint(j))
		weighted.Add(weighted, weight)
	}
	s0 := new(big.Int).Sub(r, weighted)
	s0.Mod(s0, params.curve.N)
	if s0.Sign() == 0 {
		// Degenerate blinder, extremely unlikely; re-randomize.
		return ProveRange(params, quantity, blindingFactor, streamID)
	}
	blinders[0] = s0

	proof := &RangeProof{Commitment: c, StreamID: streamID, Bits: make([]BitProof, RangeBits)}
	for j := 0; j < RangeBits; j++ {
		bit := (quantity >> uint(j)) & 1
		bp, err := proveBit(params, bit == 1, blinders[j], c, streamID, j)
		if err != nil {
			return nil, err
		}
		proof.Bits[j] = *bp
	}

	return proof, nil
}

// VerifyRange checks the bit OR-proofs and that the weighted sum of the bit
// commitments equals the value commitment.
func VerifyRange(params *Params, proof *RangeProof) bool {
	if len(proof.Bits) != RangeBits || len(proof.StreamID) == 0 {
		return false
	}
	cx, cy, err := parsePoint(proof.Commitment)
	if err != nil {
		return false
	}

	var sumX, sumY *big.Int
	for j := 0; j < RangeBits; j++ {
		bp := proof.Bits[j]
		if !verifyBit(params, &bp, proof.Commitment, proof.StreamID, j) {
			return false
		}

		bx, by, err := parsePoint(bp.B)
		if err != nil {
			return false
		}
		weight := new(big.Int).Lsh(big.NewInt(1), uint(j))
		wx, wy := params.curve.ScalarMult(bx, by, weight.Bytes())
		if sumX == nil {
			sumX, sumY = wx, wy
			continue
		}
		sumX, sumY = params.curve.Add(sumX, sumY, wx, wy)
	}

	return sumX.Cmp(cx) == 0 && sumY.Cmp(cy) == 0
}

func proveBit(
	params *Params, bitSet bool, blinder *big.Int, c, streamID []byte, index int,
) (*BitProof, error) {
	// B = b*G + s*H
	bx, by := params.mulH(blinder)
	if bitSet {
		bx, by = params.curve.Add(bx, by, params.curve.Gx, params.curve.Gy)
	}
	b := marshalPoint(bx, by)

	k, err := randomScalar(params)
	if err != nil {
		return nil, err
	}
	eFake, err := randomScalar(params)
	if err != nil {
		return nil, err
	}
	sFake, err := randomScalar(params)
	if err != nil {
		return nil, err
	}

	// Branch 0 claims B = s*H, branch 1 claims B - G = s*H. The real branch
	// gets an honest schnorr commitment, the other one is simulated with the
	// fake challenge/response pair.
	negGy := new(big.Int).Sub(params.curve.P, params.curve.Gy)
	bMinusGx, bMinusGy := params.curve.Add(bx, by, params.curve.Gx, negGy)

	var a0x, a0y, a1x, a1y *big.Int
	kx, ky := params.mulH(k)
	if bitSet {
		// Simulate branch 0: A0 = sFake*H - eFake*B.
		a0x, a0y = simulate(params, sFake, eFake, bx, by)
		a1x, a1y = kx, ky
	} else {
		a0x, a0y = kx, ky
		// Simulate branch 1: A1 = sFake*H - eFake*(B - G).
		a1x, a1y = simulate(params, sFake, eFake, bMinusGx, bMinusGy)
	}

	a0 := marshalPoint(a0x, a0y)
	a1 := marshalPoint(a1x, a1y)

	e := bitChallenge(params, c, streamID, index, b, a0, a1)
	eReal := new(big.Int).Sub(e, eFake)
	eReal.Mod(eReal, params.curve.N)

	sReal := new(big.Int).Mul(eReal, blinder)
	sReal.Add(sReal, k)
	sReal.Mod(sReal, params.curve.N)

	bp := &BitProof{B: b, A0: a0, A1: a1}
	if bitSet {
		bp.E0, bp.S0 = scalarBytes(eFake), scalarBytes(sFake)
		bp.E1, bp.S1 = scalarBytes(eReal), scalarBytes(sReal)
	} else {
		bp.E0, bp.S0 = scalarBytes(eReal), scalarBytes(sReal)
		bp.E1, bp.S1 = scalarBytes(eFake), scalarBytes(sFake)
	}
	return bp, nil
}

func verifyBit(params *Params, bp *BitProof, c, streamID []byte, index int) bool {
	bx, by, err := parsePoint(bp.B)
	if err != nil {
		return false
	}
	a0x, a0y, err := parsePoint(bp.A0)
	if err != nil {
		return false
	}
	a1x, a1y, err := parsePoint(bp.A1)
	if err != nil {
		return false
	}
	e0 := new(big.Int).SetBytes(bp.E0)
	e1 := new(big.Int).SetBytes(bp.E1)
	s0 := new(big.Int).SetBytes(bp.S0)
	s1 := new(big.Int).SetBytes(bp.S1)

	e := bitChallenge(params, c, streamID, index, bp.B, bp.A0, bp.A1)
	eSum := new(big.Int).Add(e0, e1)
	eSum.Mod(eSum, params.curve.N)
	if eSum.Cmp(e) != 0 {
		return false
	}

	// s0*H == A0 + e0*B
	if !schnorrCheck(params, s0, a0x, a0y, e0, bx, by) {
		return false
	}

	// s1*H == A1 + e1*(B - G)
	negGy := new(big.Int).Sub(params.curve.P, params.curve.Gy)
	bMinusGx, bMinusGy := params.curve.Add(bx, by, params.curve.Gx, negGy)
	return schnorrCheck(params, s1, a1x, a1y, e1, bMinusGx, bMinusGy)
}

// simulate returns s*H - e*P for a simulated proof branch.
func simulate(params *Params, s, e, px, py *big.Int) (*big.Int, *big.Int) {
	sx, sy := params.mulH(s)
	ex, ey := params.curve.ScalarMult(px, py, e.Bytes())
	negEy := new(big.Int).Sub(params.curve.P, ey)
	return params.curve.Add(sx, sy, ex, negEy)
}

func schnorrCheck(params *Params, s, ax, ay, e, px, py *big.Int) bool {
	lhsX, lhsY := params.mulH(s)
	ex, ey := params.curve.ScalarMult(px, py, e.Bytes())
	rhsX, rhsY := params.curve.Add(ax, ay, ex, ey)
	return lhsX.Cmp(rhsX) == 0 && lhsY.Cmp(rhsY) == 0
}

func bitChallenge(params *Params, c, streamID []byte, index int, b, a0, a1 []byte) *big.Int {
	idx := make([]byte, 4)
	binary.BigEndian.PutUint32(idx, uint32(index))

	transcript := make([]byte, 0, 256)
	transcript = append(transcript, []byte(rangeProofTag)...)
	transcript = append(transcript, streamID...)
	transcript = append(transcript, c...)
	transcript = append(transcript, idx...)
	transcript = append(transcript, b...)
	transcript = append(transcript, a0...)
	transcript = append(transcript, a1...)

	e := new(big.Int).SetBytes(chainhash.HashB(transcript))
	e.Mod(e, params.curve.N)
	return e
}
