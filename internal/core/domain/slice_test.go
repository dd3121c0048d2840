package domain_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

const (
	testOwner    = "owner-1"
	testRegistry = "registry.example.com"
	testCert     = "cert-42"
)

func newAvailableSlice() *domain.Slice {
	return domain.NewSlice(
		testOwner, uuid.New(), 0, testRegistry, testCert, 150, []byte{0x01},
	)
}

func newReservedSlice(planID uuid.UUID) *domain.Slice {
	s := newAvailableSlice()
	s.Reserve(planID)
	return s
}

func newRegisteringSlice(planID uuid.UUID) *domain.Slice {
	s := newReservedSlice(planID)
	s.Register(planID)
	return s
}

func TestSliceReserve(t *testing.T) {
	t.Parallel()

	planID := uuid.New()

	t.Run("available_slice", func(t *testing.T) {
		t.Parallel()

		s := newAvailableSlice()
		ok, err := s.Reserve(planID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, domain.SliceStateReserved, s.State)
		require.Equal(t, planID, *s.LockedBy)
	})

	t.Run("already_reserved_by_same_plan", func(t *testing.T) {
		t.Parallel()

		s := newReservedSlice(planID)
		ok, err := s.Reserve(planID)
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("reserved_by_other_plan", func(t *testing.T) {
		t.Parallel()

		s := newReservedSlice(planID)
		_, err := s.Reserve(uuid.New())
		require.EqualError(t, err, domain.ErrSliceReservedByOther.Error())
	})

	t.Run("spent_slice", func(t *testing.T) {
		t.Parallel()

		s := newRegisteringSlice(planID)
		_, err := s.MarkClaimed()
		require.NoError(t, err)
		_, err = s.Reserve(planID)
		require.EqualError(t, err, domain.ErrSliceNotAvailable.Error())
	})
}

func TestSliceRegisterAndRelease(t *testing.T) {
	t.Parallel()

	planID := uuid.New()

	s := newReservedSlice(planID)

	_, err := s.Register(uuid.New())
	require.EqualError(t, err, domain.ErrSliceReservedByOther.Error())

	ok, err := s.Register(planID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.SliceStateRegistering, s.State)
	require.True(t, s.IsSettling())

	// Registering -> Available is the compensation transition.
	ok, err = s.Release()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.SliceStateAvailable, s.State)
	require.Nil(t, s.LockedBy)
	require.True(t, s.IsAvailable())
}

func TestSliceTerminalStates(t *testing.T) {
	t.Parallel()

	planID := uuid.New()

	tests := []struct {
		name       string
		transition func(*domain.Slice) (bool, error)
		state      int
	}{
		{name: "sliced", transition: (*domain.Slice).MarkSliced, state: domain.SliceStateSliced},
		{name: "claimed", transition: (*domain.Slice).MarkClaimed, state: domain.SliceStateClaimed},
		{name: "transferred", transition: (*domain.Slice).MarkTransferred, state: domain.SliceStateTransferred},
	}

	for i := range tests {
		tt := tests[i]

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newRegisteringSlice(planID)
			ok, err := tt.transition(s)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, tt.state, s.State)
			require.True(t, s.IsSpent())
			require.Nil(t, s.LockedBy)

			// Terminal transitions are idempotent.
			ok, err = tt.transition(s)
			require.NoError(t, err)
			require.True(t, ok)

			// A spent slice cannot go back to Available.
			_, err = s.Release()
			require.Error(t, err)
		})
	}
}

func TestSliceVerify(t *testing.T) {
	t.Parallel()

	s := domain.NewReceivedSlice(
		testOwner, uuid.New(), 3, testRegistry, testCert, 100, []byte{0x02}, []byte{0x03},
	)
	require.Equal(t, domain.SliceStateReceivedPending, s.State)

	ok, err := s.Verify()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, s.IsAvailable())

	// Verifying twice is a no-op.
	ok, err = s.Verify()
	require.NoError(t, err)
	require.True(t, ok)

	_, err = newReservedSlice(uuid.New()).Verify()
	require.EqualError(t, err, domain.ErrSliceNotPendingVerification.Error())
}

func TestClaimTransitions(t *testing.T) {
	t.Parallel()

	t.Run("confirm", func(t *testing.T) {
		t.Parallel()

		c := domain.NewClaim(uuid.New(), uuid.New(), 125)
		require.Equal(t, domain.ClaimStateCreated, c.State)

		ok, err := c.Confirm()
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, c.IsClaimed())

		ok, err = c.Confirm()
		require.NoError(t, err)
		require.True(t, ok)

		_, err = c.Reject()
		require.EqualError(t, err, domain.ErrClaimNotCreated.Error())
	})

	t.Run("reject", func(t *testing.T) {
		t.Parallel()

		c := domain.NewClaim(uuid.New(), uuid.New(), 125)
		ok, err := c.Reject()
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, c.IsRejected())

		_, err = c.Confirm()
		require.EqualError(t, err, domain.ErrClaimNotCreated.Error())
	})
}

func TestRoutingPlanLifecycle(t *testing.T) {
	t.Parallel()

	plan := domain.NewRoutingPlan(testOwner)
	require.Equal(t, domain.RoutingPlanStateBuilding, plan.State)

	slot := plan.AllocateTxSlot()
	plan.AppendStep(domain.Step{Kind: domain.StepSubmitTransaction, TxSlot: slot})
	plan.AppendStep(domain.Step{Kind: domain.StepAwaitCommitment, TxSlot: slot})

	ok, err := plan.Start()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.RoutingPlanStateExecuting, plan.State)

	step, ok := plan.CurrentStep()
	require.True(t, ok)
	require.Equal(t, domain.StepSubmitTransaction, step.Kind)

	require.Equal(t, 1, plan.RecordAttempt())
	require.Equal(t, 2, plan.RecordAttempt())

	plan.Advance()
	require.Equal(t, 0, plan.Attempts)
	step, ok = plan.CurrentStep()
	require.True(t, ok)
	require.Equal(t, domain.StepAwaitCommitment, step.Kind)

	plan.Advance()
	require.Equal(t, domain.RoutingPlanStateCompleted, plan.State)
	require.True(t, plan.IsDone())

	_, ok = plan.CurrentStep()
	require.False(t, ok)
}
