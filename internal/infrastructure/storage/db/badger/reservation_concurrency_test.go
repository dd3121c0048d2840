package dbbadger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gcert-network/gcert-daemon/internal/core/application"
	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

// Concurrent plans race to reserve from the same certificate stock. Badger's
// serializable snapshot isolation must let at most one winner per slice
// through and fail the rest with a retryable conflict or a shortage.
func TestConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	db := createTestDb(t)
	endpointID := uuid.New()

	require.NoError(t, db.SliceRepository().AddSlices(ctx, []domain.Slice{
		testSlice(endpointID, 0, 100),
		testSlice(endpointID, 1, 100),
	}))

	const contenders = 6
	type outcome struct {
		planID   uuid.UUID
		reserved []domain.Slice
		err      error
	}
	outcomes := make([]outcome, contenders)

	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			planID := uuid.New()
			v, err := db.RunTransaction(
				ctx, false,
				func(ctx context.Context) (interface{}, error) {
					return application.ReserveQuantity(
						ctx, db.SliceRepository(), planID,
						testOwner, testRegistry, testCert, 100,
					)
				},
			)
			outcomes[i].planID = planID
			outcomes[i].err = err
			if err == nil {
				outcomes[i].reserved = v.([]domain.Slice)
			}
		}(i)
	}
	wg.Wait()

	winnerBySlice := make(map[uuid.UUID]uuid.UUID)
	wins := 0
	for _, o := range outcomes {
		if o.err != nil {
			require.True(
				t,
				errors.Is(o.err, badger.ErrConflict) ||
					errors.Is(o.err, domain.ErrInsufficientQuantity) ||
					errors.Is(o.err, domain.ErrQuantityNotYetAvailable),
				"unexpected reservation error: %v", o.err,
			)
			continue
		}
		wins++
		var covered uint64
		for _, s := range o.reserved {
			_, taken := winnerBySlice[s.ID]
			require.False(t, taken, "slice %s reserved by two plans", s.ID)
			winnerBySlice[s.ID] = o.planID
			covered += s.Quantity
		}
		require.Equal(t, uint64(100), covered)
	}

	// Two slices of 100 cover at most two reservations of 100, and the
	// first transaction to commit cannot conflict.
	require.GreaterOrEqual(t, wins, 1)
	require.LessOrEqual(t, wins, 2)

	stored, err := db.SliceRepository().GetSlicesForCertificate(
		ctx, testOwner, testRegistry, testCert, []int{domain.SliceStateReserved},
	)
	require.NoError(t, err)
	require.Len(t, stored, len(winnerBySlice))
	for i := range stored {
		require.NotNil(t, stored[i].LockedBy)
		require.Equal(t, winnerBySlice[stored[i].ID], *stored[i].LockedBy)
	}
}
