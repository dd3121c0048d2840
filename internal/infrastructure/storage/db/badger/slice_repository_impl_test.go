package dbbadger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/pkg/registry"
)

const (
	testOwner    = "owner-1"
	testRegistry = "registry.example.com"
	testCert     = "cert-42"
)

func createTestDb(t *testing.T) *DbManager {
	t.Helper()

	db, err := NewDbManager(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func testSlice(endpointID uuid.UUID, position uint32, quantity uint64) domain.Slice {
	return *domain.NewSlice(
		testOwner, endpointID, position, testRegistry, testCert, quantity, []byte{0x01},
	)
}

func TestSliceRepository(t *testing.T) {
	ctx := context.Background()
	db := createTestDb(t)
	repo := db.SliceRepository()
	endpointID := uuid.New()

	slices := []domain.Slice{
		testSlice(endpointID, 0, 100),
		testSlice(endpointID, 1, 50),
	}
	require.NoError(t, repo.AddSlices(ctx, slices))

	// The (endpoint, position) pair is unique.
	require.EqualError(
		t,
		repo.AddSlices(ctx, []domain.Slice{testSlice(endpointID, 1, 10)}),
		domain.ErrPositionAlreadyTaken.Error(),
	)

	got, err := repo.GetSlice(ctx, slices[0].ID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), got.Quantity)

	_, err = repo.GetSlice(ctx, uuid.New())
	require.EqualError(t, err, domain.ErrSliceNotFound.Error())

	planID := uuid.New()
	require.NoError(t, repo.UpdateSlice(
		ctx, slices[0].ID,
		func(s *domain.Slice) (*domain.Slice, error) {
			if _, err := s.Reserve(planID); err != nil {
				return nil, err
			}
			return s, nil
		},
	))

	available, err := repo.GetSlicesForCertificate(
		ctx, testOwner, testRegistry, testCert, []int{domain.SliceStateAvailable},
	)
	require.NoError(t, err)
	require.Len(t, available, 1)
	require.Equal(t, slices[1].ID, available[0].ID)

	require.NoError(t, repo.RemoveSlices(ctx, []uuid.UUID{slices[0].ID, uuid.New()}))
	_, err = repo.GetSlice(ctx, slices[0].ID)
	require.EqualError(t, err, domain.ErrSliceNotFound.Error())
}

func TestRoutingPlanRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := createTestDb(t)
	repo := db.RoutingPlanRepository()

	plan := domain.NewRoutingPlan(testOwner)
	slot := plan.AllocateTxSlot()
	plan.AppendStep(domain.Step{
		Kind:          domain.StepRegisterSplit,
		SourceSliceID: uuid.New(),
		Parts: []domain.PlannedPart{
			{SliceID: uuid.New(), Quantity: 60, Role: domain.PartRoleClaim},
			{SliceID: uuid.New(), Quantity: 40, Role: domain.PartRoleRemainder},
		},
		TxSlot: slot,
	})
	plan.AppendStep(domain.Step{Kind: domain.StepSubmitTransaction, TxSlot: slot})
	_, err := plan.Start()
	require.NoError(t, err)

	require.NoError(t, repo.AddRoutingPlan(ctx, plan))

	tx := &registry.Transaction{
		Registry:  testRegistry,
		StreamID:  []byte{0x01, 0x02},
		Type:      registry.EventSliced,
		Payload:   []byte(`{"parts":[]}`),
		PublicKey: []byte{0x03},
		Signature: []byte{0x04},
	}
	require.NoError(t, repo.UpdateRoutingPlan(
		ctx, plan.ID,
		func(p *domain.RoutingPlan) (*domain.RoutingPlan, error) {
			p.SetTransaction(slot, tx)
			p.Advance()
			return p, nil
		},
	))

	// The whole plan, signed transaction included, survives a round trip
	// through the JSON codec.
	got, err := repo.GetRoutingPlan(ctx, plan.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.Cursor)
	require.Len(t, got.Steps, 2)
	require.Len(t, got.Steps[0].Parts, 2)
	require.Equal(t, tx.ID(), got.TransactionAt(slot).ID())

	_, err = repo.GetRoutingPlan(ctx, uuid.New())
	require.EqualError(t, err, domain.ErrRoutingPlanNotFound.Error())
}

func TestRunTransactionDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	db := createTestDb(t)
	endpointID := uuid.New()
	slice := testSlice(endpointID, 0, 100)

	errBoom := errors.New("boom")
	_, err := db.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			if err := db.SliceRepository().AddSlices(
				ctx, []domain.Slice{slice},
			); err != nil {
				return nil, err
			}
			return nil, errBoom
		},
	)
	require.EqualError(t, err, errBoom.Error())

	_, err = db.SliceRepository().GetSlice(ctx, slice.ID)
	require.EqualError(t, err, domain.ErrSliceNotFound.Error())

	_, err = db.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			return nil, db.SliceRepository().AddSlices(ctx, []domain.Slice{slice})
		},
	)
	require.NoError(t, err)

	got, err := db.SliceRepository().GetSlice(ctx, slice.ID)
	require.NoError(t, err)
	require.Equal(t, slice.ID, got.ID)
}

func TestOutboxRepository(t *testing.T) {
	ctx := context.Background()
	db := createTestDb(t)
	repo := db.OutboxRepository()

	first := domain.NewOutboxMessage(domain.OutboxTypeResumeRoutingPlan, []byte(`{}`))
	second := domain.NewOutboxMessage(domain.OutboxTypeNotifyReceiver, []byte(`{}`))
	second.CreatedAt = first.CreatedAt + 1

	require.NoError(t, repo.AddMessage(ctx, first))
	require.NoError(t, repo.AddMessage(ctx, second))

	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)

	require.NoError(t, repo.MarkDispatched(ctx, first.ID))
	pending, err = repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, second.ID, pending[0].ID)

	// Marking an unknown message is a no-op, the relay may race a cleanup.
	require.NoError(t, repo.MarkDispatched(ctx, uuid.New()))
}

func TestNextAccountAndPosition(t *testing.T) {
	ctx := context.Background()
	db := createTestDb(t)
	repo := db.EndpointRepository()

	for want := uint32(0); want < 3; want++ {
		account, err := repo.NextAccount(ctx)
		require.NoError(t, err)
		require.Equal(t, want, account)
	}

	endpoint := domain.NewWalletEndpoint(testOwner, 0, "xpub")
	require.NoError(t, repo.AddEndpoint(ctx, endpoint))

	for want := uint32(0); want < 3; want++ {
		position, err := repo.NextPosition(ctx, endpoint.ID)
		require.NoError(t, err)
		require.Equal(t, want, position)
	}

	_, err := repo.NextPosition(ctx, uuid.New())
	require.EqualError(t, err, domain.ErrEndpointNotFound.Error())
}
