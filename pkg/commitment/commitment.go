package commitment

import (
	"crypto/rand"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// RangeBits is the number of bits a committed quantity may occupy. Any
	// quantity must satisfy 0 <= quantity < 2^RangeBits.
	RangeBits = 32

	scalarSize = 32

	generatorTag = "gcert/commitment/generator/H/v1"
)

// Params carries the curve and the secondary generator H used for blinding.
// It is passed explicitly to every operation so that no package-level state
// is involved in key or commitment handling.
type Params struct {
	curve  *btcec.KoblitzCurve
	hx, hy *big.Int
}

// NewParams returns the secp256k1 parameters with the secondary generator H
// derived deterministically from a fixed domain tag, so that every node
// agrees on the same generator without trusted setup.
func NewParams() *Params {
	curve := btcec.S256()
	seed := chainhash.HashB(append([]byte(generatorTag), marshalPoint(curve.Gx, curve.Gy)...))

	// Try-and-increment: hash until the candidate x coordinate yields a
	// valid curve point.
	for i := byte(0); ; i++ {
		candidate := chainhash.HashB(append(seed, i))
		x := new(big.Int).SetBytes(candidate)
		if x.Cmp(curve.P) >= 0 {
			continue
		}
		// y^2 = x^3 + 7 mod p
		rhs := new(big.Int).Exp(x, big.NewInt(3), curve.P)
		rhs.Add(rhs, curve.B)
		rhs.Mod(rhs, curve.P)
		y := new(big.Int).ModSqrt(rhs, curve.P)
		if y == nil {
			continue
		}
		if !curve.IsOnCurve(x, y) {
			continue
		}
		return &Params{curve: curve, hx: x, hy: y}
	}
}

// CommittedValue binds a quantity and its secret blinding factor to a
// Pedersen commitment quantity*G + blinding*H.
type CommittedValue struct {
	Quantity       uint64
	BlindingFactor []byte
	Commitment     []byte
}

// New generates a fresh random blinding factor and commits to the given
// quantity.
func New(params *Params, quantity uint64) (*CommittedValue, error) {
	if quantity >= 1<<RangeBits {
		return nil, ErrQuantityOutOfRange
	}

	blinding, err := randomScalar(params)
	if err != nil {
		return nil, err
	}

	c, err := Commit(params, quantity, scalarBytes(blinding))
	if err != nil {
		return nil, err
	}

	return &CommittedValue{
		Quantity:       quantity,
		BlindingFactor: scalarBytes(blinding),
		Commitment:     c,
	}, nil
}

// Commit recomputes the commitment for the given quantity and blinding
// factor. It is used to check that a received slice opens the commitment it
// claims to.
func Commit(params *Params, quantity uint64, blindingFactor []byte) ([]byte, error) {
	if quantity >= 1<<RangeBits {
		return nil, ErrQuantityOutOfRange
	}
	r, err := parseScalar(params, blindingFactor)
	if err != nil {
		return nil, err
	}

	x, y := params.commit(new(big.Int).SetUint64(quantity), r)
	return marshalPoint(x, y), nil
}

// Verify returns whether the commitment of the given value opens to its
// quantity and blinding factor.
func Verify(params *Params, value *CommittedValue) bool {
	c, err := Commit(params, value.Quantity, value.BlindingFactor)
	if err != nil {
		return false
	}
	if len(c) != len(value.Commitment) {
		return false
	}
	for i := range c {
		if c[i] != value.Commitment[i] {
			return false
		}
	}
	return true
}

func (p *Params) commit(quantity, blinding *big.Int) (*big.Int, *big.Int) {
	qx, qy := p.curve.ScalarBaseMult(quantity.Bytes())
	rx, ry := p.curve.ScalarMult(p.hx, p.hy, blinding.Bytes())
	return p.curve.Add(qx, qy, rx, ry)
}

func (p *Params) mulH(k *big.Int) (*big.Int, *big.Int) {
	return p.curve.ScalarMult(p.hx, p.hy, k.Bytes())
}

func randomScalar(p *Params) (*big.Int, error) {
	for {
		buf := make([]byte, scalarSize)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		k := new(big.Int).SetBytes(buf)
		k.Mod(k, p.curve.N)
		if k.Sign() > 0 {
			return k, nil
		}
	}
}

func parseScalar(p *Params, buf []byte) (*big.Int, error) {
	if len(buf) == 0 || len(buf) > scalarSize {
		return nil, ErrInvalidBlindingFactor
	}
	k := new(big.Int).SetBytes(buf)
	if k.Sign() <= 0 || k.Cmp(p.curve.N) >= 0 {
		return nil, ErrInvalidBlindingFactor
	}
	return k, nil
}

func scalarBytes(k *big.Int) []byte {
	buf := make([]byte, scalarSize)
	k.FillBytes(buf)
	return buf
}

func marshalPoint(x, y *big.Int) []byte {
	var fx, fy btcec.FieldVal
	fx.SetByteSlice(x.Bytes())
	fy.SetByteSlice(y.Bytes())
	return btcec.NewPublicKey(&fx, &fy).SerializeCompressed()
}

func parsePoint(buf []byte) (*big.Int, *big.Int, error) {
	pub, err := btcec.ParsePubKey(buf)
	if err != nil {
		return nil, nil, ErrInvalidCommitment
	}
	return pub.X(), pub.Y(), nil
}
