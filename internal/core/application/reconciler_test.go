package application

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

const (
	testRegistry = "registry.example.com"
	testProdCert = "prod-cert"
	testConsCert = "cons-cert"
)

func makeSlice(certificateID string, quantity uint64) domain.Slice {
	return domain.Slice{
		ID:            uuid.New(),
		Owner:         "owner-1",
		Registry:      testRegistry,
		CertificateID: certificateID,
		Quantity:      quantity,
		State:         domain.SliceStateReserved,
	}
}

func makeSlices(certificateID string, quantities ...uint64) []domain.Slice {
	slices := make([]domain.Slice, 0, len(quantities))
	for _, q := range quantities {
		slices = append(slices, makeSlice(certificateID, q))
	}
	return slices
}

func TestPlanClaimExactMatch(t *testing.T) {
	t.Parallel()

	production := makeSlices(testProdCert, 125)
	consumption := makeSlices(testConsCert, 125)

	ops, err := PlanClaim(125, production, consumption)
	require.NoError(t, err)
	require.Len(t, ops, 1)

	claim, ok := ops[0].(ClaimOperation)
	require.True(t, ok)
	require.Equal(t, production[0].ID, claim.Production.ID)
	require.Equal(t, consumption[0].ID, claim.Consumption.ID)
	require.Equal(t, uint64(125), claim.Production.Quantity)
	require.True(t, claim.Production.Existing)
	require.True(t, claim.Consumption.Existing)
}

func TestPlanClaimSplitsOversizedConsumption(t *testing.T) {
	t.Parallel()

	production := makeSlices(testProdCert, 125)
	consumption := makeSlices(testConsCert, 150)

	ops, err := PlanClaim(125, production, consumption)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	split, ok := ops[0].(SplitOperation)
	require.True(t, ok)
	require.Equal(t, consumption[0].ID, split.Source.ID)
	require.Len(t, split.Parts, 2)
	require.Equal(t, uint64(125), split.Parts[0].Slice.Quantity)
	require.Equal(t, domain.PartRoleClaim, split.Parts[0].Role)
	require.Equal(t, uint64(25), split.Parts[1].Slice.Quantity)
	require.Equal(t, domain.PartRoleRemainder, split.Parts[1].Role)
	require.False(t, split.Parts[0].Slice.Existing)

	claim, ok := ops[1].(ClaimOperation)
	require.True(t, ok)
	require.Equal(t, production[0].ID, claim.Production.ID)
	require.Equal(t, split.Parts[0].Slice.ID, claim.Consumption.ID)
	require.Equal(t, uint64(125), claim.Consumption.Quantity)
}

func TestPlanClaimSpansMultipleProductionSlices(t *testing.T) {
	t.Parallel()

	production := makeSlices(testProdCert, 100, 100)
	consumption := makeSlices(testConsCert, 150)

	ops, err := PlanClaim(150, production, consumption)
	require.NoError(t, err)
	require.Len(t, ops, 5)

	// The consumption slice is split against the first production slice,
	// then the second production slice is split against the leftover, and
	// its own leftover is released.
	_, ok := ops[0].(SplitOperation)
	require.True(t, ok)
	_, ok = ops[1].(ClaimOperation)
	require.True(t, ok)
	_, ok = ops[2].(SplitOperation)
	require.True(t, ok)
	_, ok = ops[3].(ClaimOperation)
	require.True(t, ok)

	release, ok := ops[4].(ReleaseOperation)
	require.True(t, ok)
	require.Equal(t, uint64(50), release.Slice.Quantity)

	var claimed uint64
	for _, op := range ops {
		if claim, ok := op.(ClaimOperation); ok {
			require.Equal(t, claim.Production.Quantity, claim.Consumption.Quantity)
			claimed += claim.Production.Quantity
		}
	}
	require.Equal(t, uint64(150), claimed)
}

func TestPlanClaimReleasesUnusedSlices(t *testing.T) {
	t.Parallel()

	production := makeSlices(testProdCert, 50, 50)
	consumption := makeSlices(testConsCert, 50, 50)

	ops, err := PlanClaim(50, production, consumption)
	require.NoError(t, err)

	var claims, releases int
	for _, op := range ops {
		switch op.(type) {
		case ClaimOperation:
			claims++
		case ReleaseOperation:
			releases++
		}
	}
	require.Equal(t, 1, claims)
	// The trailing production and consumption slices are both released.
	require.Equal(t, 2, releases)
}

func TestPlanClaimErrors(t *testing.T) {
	t.Parallel()

	_, err := PlanClaim(0, makeSlices(testProdCert, 10), makeSlices(testConsCert, 10))
	require.EqualError(t, err, ErrNullQuantity.Error())

	_, err = PlanClaim(100, makeSlices(testProdCert, 50), makeSlices(testConsCert, 100))
	require.EqualError(t, err, ErrIncompletePlan.Error())
}

// Every plan must preserve quantities: claims cover exactly the requested
// quantity, splits conserve their source, and whatever was reserved beyond
// the request ends up as remainder or released.
func TestPlanClaimConservation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))

	randomPartition := func(total uint64) []uint64 {
		quantities := make([]uint64, 0)
		for total > 0 {
			q := uint64(rng.Int63n(int64(total))) + 1
			quantities = append(quantities, q)
			total -= q
		}
		return quantities
	}

	for i := 0; i < 25; i++ {
		quantity := uint64(rng.Int63n(5000)) + 1
		extraProd := uint64(rng.Int63n(500))
		extraCons := uint64(rng.Int63n(500))

		production := makeSlices(testProdCert, randomPartition(quantity+extraProd)...)
		consumption := makeSlices(testConsCert, randomPartition(quantity+extraCons)...)

		ops, err := PlanClaim(quantity, production, consumption)
		require.NoError(t, err)

		var claimed uint64
		for _, op := range ops {
			switch o := op.(type) {
			case ClaimOperation:
				require.Equal(t, o.Production.Quantity, o.Consumption.Quantity)
				require.NotZero(t, o.Production.Quantity)
				claimed += o.Production.Quantity
			case SplitOperation:
				var parts uint64
				for _, part := range o.Parts {
					require.NotZero(t, part.Slice.Quantity)
					parts += part.Slice.Quantity
				}
				require.Equal(t, o.Source.Quantity, parts)
			}
		}
		require.Equal(t, quantity, claimed)
	}
}

func TestPlanTransfer(t *testing.T) {
	t.Parallel()

	t.Run("exact_match", func(t *testing.T) {
		t.Parallel()

		sources := makeSlices(testProdCert, 50, 50)
		ops, err := PlanTransfer(100, sources)
		require.NoError(t, err)
		require.Len(t, ops, 2)
		for _, op := range ops {
			_, ok := op.(TransferOperation)
			require.True(t, ok)
		}
	})

	t.Run("splits_oversized_source", func(t *testing.T) {
		t.Parallel()

		sources := makeSlices(testProdCert, 150)
		ops, err := PlanTransfer(100, sources)
		require.NoError(t, err)
		require.Len(t, ops, 2)

		split, ok := ops[0].(SplitOperation)
		require.True(t, ok)
		require.Equal(t, uint64(100), split.Parts[0].Slice.Quantity)
		require.Equal(t, domain.PartRoleTransfer, split.Parts[0].Role)
		require.Equal(t, uint64(50), split.Parts[1].Slice.Quantity)
		require.Equal(t, domain.PartRoleRemainder, split.Parts[1].Role)

		transfer, ok := ops[1].(TransferOperation)
		require.True(t, ok)
		require.Equal(t, split.Parts[0].Slice.ID, transfer.Slice.ID)
	})

	t.Run("releases_unused_sources", func(t *testing.T) {
		t.Parallel()

		sources := makeSlices(testProdCert, 100, 40)
		ops, err := PlanTransfer(100, sources)
		require.NoError(t, err)
		require.Len(t, ops, 2)

		release, ok := ops[1].(ReleaseOperation)
		require.True(t, ok)
		require.Equal(t, sources[1].ID, release.Slice.ID)
	})

	t.Run("incomplete", func(t *testing.T) {
		t.Parallel()

		_, err := PlanTransfer(100, makeSlices(testProdCert, 40))
		require.EqualError(t, err, ErrIncompletePlan.Error())
	})
}
