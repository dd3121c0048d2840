package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/internal/infrastructure/storage/db/inmemory"
)

func seedStoredSlice(
	t *testing.T, repo domain.SliceRepository,
	owner, certificateID string, position uint32, quantity uint64, state int,
) domain.Slice {
	t.Helper()

	s := domain.NewSlice(
		owner, uuid.New(), position, testRegistry, certificateID,
		quantity, []byte{0x01},
	)
	s.State = state
	require.NoError(t, repo.AddSlices(context.Background(), []domain.Slice{*s}))
	return *s
}

func TestReserveQuantity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	owner := "owner-1"

	t.Run("reserves_greedy_front", func(t *testing.T) {
		t.Parallel()

		repo := inmemory.NewDbManager().SliceRepository()
		seedStoredSlice(t, repo, owner, testProdCert, 0, 60, domain.SliceStateAvailable)
		seedStoredSlice(t, repo, owner, testProdCert, 1, 60, domain.SliceStateAvailable)
		seedStoredSlice(t, repo, owner, testProdCert, 2, 60, domain.SliceStateAvailable)

		planID := uuid.New()
		reserved, err := ReserveQuantity(ctx, repo, planID, owner, testRegistry, testProdCert, 100)
		require.NoError(t, err)
		require.Len(t, reserved, 2)

		for _, s := range reserved {
			stored, err := repo.GetSlice(ctx, s.ID)
			require.NoError(t, err)
			require.Equal(t, domain.SliceStateReserved, stored.State)
			require.Equal(t, planID, *stored.LockedBy)
		}

		// The third slice was not needed and stays available.
		remaining, err := repo.GetSlicesForCertificate(
			ctx, owner, testRegistry, testProdCert, []int{domain.SliceStateAvailable},
		)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
	})

	t.Run("insufficient_quantity", func(t *testing.T) {
		t.Parallel()

		repo := inmemory.NewDbManager().SliceRepository()
		seedStoredSlice(t, repo, owner, testProdCert, 0, 60, domain.SliceStateAvailable)

		_, err := ReserveQuantity(ctx, repo, uuid.New(), owner, testRegistry, testProdCert, 100)
		require.EqualError(t, err, domain.ErrInsufficientQuantity.Error())
		require.False(t, IsTransient(err))
	})

	t.Run("quantity_still_settling", func(t *testing.T) {
		t.Parallel()

		repo := inmemory.NewDbManager().SliceRepository()
		seedStoredSlice(t, repo, owner, testProdCert, 0, 60, domain.SliceStateAvailable)
		seedStoredSlice(t, repo, owner, testProdCert, 1, 60, domain.SliceStateRegistering)

		_, err := ReserveQuantity(ctx, repo, uuid.New(), owner, testRegistry, testProdCert, 100)
		require.EqualError(t, err, domain.ErrQuantityNotYetAvailable.Error())
		require.True(t, IsTransient(err))
	})

	t.Run("no_double_reservation", func(t *testing.T) {
		t.Parallel()

		repo := inmemory.NewDbManager().SliceRepository()
		seedStoredSlice(t, repo, owner, testProdCert, 0, 100, domain.SliceStateAvailable)

		_, err := ReserveQuantity(ctx, repo, uuid.New(), owner, testRegistry, testProdCert, 100)
		require.NoError(t, err)

		// A competing plan cannot see, much less reserve, the locked slice.
		_, err = ReserveQuantity(ctx, repo, uuid.New(), owner, testRegistry, testProdCert, 100)
		require.EqualError(t, err, domain.ErrInsufficientQuantity.Error())
	})

	t.Run("ignores_other_certificates", func(t *testing.T) {
		t.Parallel()

		repo := inmemory.NewDbManager().SliceRepository()
		seedStoredSlice(t, repo, owner, testProdCert, 0, 100, domain.SliceStateAvailable)
		seedStoredSlice(t, repo, owner, testConsCert, 1, 100, domain.SliceStateAvailable)

		reserved, err := ReserveQuantity(ctx, repo, uuid.New(), owner, testRegistry, testProdCert, 100)
		require.NoError(t, err)
		require.Len(t, reserved, 1)
		require.Equal(t, testProdCert, reserved[0].CertificateID)
	})
}
