package commitment_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gcert-network/gcert-daemon/pkg/commitment"
)

var streamID = []byte("registry.example.com/certificates/42")

func TestNewCommitment(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()

	tests := []struct {
		name     string
		quantity uint64
	}{
		{name: "with_zero_quantity", quantity: 0},
		{name: "with_small_quantity", quantity: 125},
		{name: "with_max_quantity", quantity: 1<<commitment.RangeBits - 1},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			value, err := commitment.New(params, tt.quantity)
			require.NoError(t, err)
			require.Equal(t, tt.quantity, value.Quantity)
			require.Len(t, value.BlindingFactor, 32)
			require.Len(t, value.Commitment, 33)
			require.True(t, commitment.Verify(params, value))
		})
	}
}

func TestNewCommitmentOutOfRange(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()

	_, err := commitment.New(params, 1<<commitment.RangeBits)
	require.EqualError(t, err, commitment.ErrQuantityOutOfRange.Error())
}

func TestCommitmentIsBinding(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()

	value, err := commitment.New(params, 300)
	require.NoError(t, err)

	tampered := *value
	tampered.Quantity = 299
	require.False(t, commitment.Verify(params, &tampered))
}

func TestSplitConservesQuantity(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 20; i++ {
		total := uint64(rng.Int63n(1_000_000) + 1)
		source, err := commitment.New(params, total)
		require.NoError(t, err)

		quantities := randomPartition(rng, total)

		proof, err := commitment.Split(params, source, quantities, streamID)
		require.NoError(t, err)
		require.Len(t, proof.Parts, len(quantities))

		var sum uint64
		for j, part := range proof.Parts {
			require.Equal(t, quantities[j], part.Quantity)
			require.True(t, commitment.Verify(params, part))
			sum += part.Quantity
		}
		require.Equal(t, total, sum)
		require.True(t, commitment.VerifySplit(params, proof))
	}
}

func TestSplitQuantityMismatch(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()

	source, err := commitment.New(params, 150)
	require.NoError(t, err)

	_, err = commitment.Split(params, source, []uint64{125, 26}, streamID)
	require.EqualError(t, err, commitment.ErrSplitQuantityMismatch.Error())
}

func TestSplitProofBoundToStream(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()

	source, err := commitment.New(params, 150)
	require.NoError(t, err)

	proof, err := commitment.Split(params, source, []uint64{125, 25}, streamID)
	require.NoError(t, err)
	require.True(t, commitment.VerifySplit(params, proof))

	proof.StreamID = []byte("registry.example.com/certificates/43")
	require.False(t, commitment.VerifySplit(params, proof))
}

func TestSplitProofRejectsTamperedParts(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()

	source, err := commitment.New(params, 200)
	require.NoError(t, err)

	proof, err := commitment.Split(params, source, []uint64{80, 120}, streamID)
	require.NoError(t, err)

	other, err := commitment.New(params, 80)
	require.NoError(t, err)
	proof.Parts[0] = other
	require.False(t, commitment.VerifySplit(params, proof))
}

func TestRangeProof(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()

	tests := []struct {
		name     string
		quantity uint64
	}{
		{name: "with_zero_quantity", quantity: 0},
		{name: "with_one", quantity: 1},
		{name: "with_odd_quantity", quantity: 12345},
		{name: "with_max_quantity", quantity: 1<<commitment.RangeBits - 1},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			value, err := commitment.New(params, tt.quantity)
			require.NoError(t, err)

			proof, err := commitment.ProveRange(
				params, value.Quantity, value.BlindingFactor, streamID,
			)
			require.NoError(t, err)
			require.True(t, commitment.VerifyRange(params, proof))
		})
	}
}

func TestRangeProofBoundToStream(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()

	value, err := commitment.New(params, 500)
	require.NoError(t, err)

	proof, err := commitment.ProveRange(params, value.Quantity, value.BlindingFactor, streamID)
	require.NoError(t, err)

	proof.StreamID = []byte("another stream")
	require.False(t, commitment.VerifyRange(params, proof))
}

func TestRangeProofRejectsForeignCommitment(t *testing.T) {
	t.Parallel()

	params := commitment.NewParams()

	value, err := commitment.New(params, 500)
	require.NoError(t, err)
	other, err := commitment.New(params, 500)
	require.NoError(t, err)

	proof, err := commitment.ProveRange(params, value.Quantity, value.BlindingFactor, streamID)
	require.NoError(t, err)

	// Same quantity, different blinding: the weighted bit sum cannot match.
	proof.Commitment = other.Commitment
	require.False(t, commitment.VerifyRange(params, proof))
}

func randomPartition(rng *rand.Rand, total uint64) []uint64 {
	n := rng.Intn(4) + 1
	quantities := make([]uint64, 0, n)
	remainder := total
	for i := 0; i < n-1 && remainder > 1; i++ {
		q := uint64(rng.Int63n(int64(remainder-1))) + 1
		quantities = append(quantities, q)
		remainder -= q
	}
	return append(quantities, remainder)
}
