package application

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/internal/infrastructure/storage/db/inmemory"
	"github.com/gcert-network/gcert-daemon/pkg/commitment"
	"github.com/gcert-network/gcert-daemon/pkg/keyring"
	"github.com/gcert-network/gcert-daemon/pkg/registry"
)

type stubRegistry struct {
	mtx           sync.Mutex
	submitted     map[string]*registry.Transaction
	defaultStatus registry.TxStatus
}

func newStubRegistry(defaultStatus registry.TxStatus) *stubRegistry {
	return &stubRegistry{
		submitted:     make(map[string]*registry.Transaction),
		defaultStatus: defaultStatus,
	}
}

func (s *stubRegistry) SubmitTransaction(_ context.Context, tx *registry.Transaction) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.submitted[tx.ID()] = tx
	return nil
}

func (s *stubRegistry) GetTransactionStatus(
	_ context.Context, _ string,
) (registry.TxStatus, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.defaultStatus, nil
}

func (s *stubRegistry) setDefaultStatus(status registry.TxStatus) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.defaultStatus = status
}

func (s *stubRegistry) transactions() []*registry.Transaction {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	txs := make([]*registry.Transaction, 0, len(s.submitted))
	for _, tx := range s.submitted {
		txs = append(txs, tx)
	}
	return txs
}

type captureNotifier struct {
	mtx           sync.Mutex
	notifications []DepositNotification
}

func (n *captureNotifier) NotifySliceDeposited(
	_ context.Context, _ *domain.Endpoint, notification DepositNotification,
) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.notifications = append(n.notifications, notification)
	return nil
}

func (n *captureNotifier) captured() []DepositNotification {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	return append([]DepositNotification(nil), n.notifications...)
}

type testEnv struct {
	db       *inmemory.DbManager
	svc      WalletService
	relay    *OutboxRelay
	registry *stubRegistry
	remote   *captureNotifier
	params   *commitment.Params
	keys     *keyring.Keyring
	endpoint *domain.Endpoint
}

const testEnvOwner = "owner-1"

func newTestEnv(t *testing.T, maxAttempts int) *testEnv {
	t.Helper()

	db := inmemory.NewDbManager()
	keys, err := keyring.NewFromSeed(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	params := commitment.NewParams()

	svc := NewWalletService(db, keys, params)
	stub := newStubRegistry(registry.StatusCommitted{})
	orch := NewOrchestrator(db, stub, keys, params, maxAttempts, 0)

	remote := &captureNotifier{}
	relay := NewOutboxRelay(db, time.Second, 50)
	relay.RegisterHandler(
		domain.OutboxTypeResumeRoutingPlan, ResumeRoutingPlanHandler(orch),
	)
	relay.RegisterHandler(
		domain.OutboxTypeNotifyReceiver,
		NotifyReceiverHandler(db, remote, remote),
	)

	endpoint, err := svc.CreateWalletEndpoint(context.Background(), testEnvOwner)
	require.NoError(t, err)

	return &testEnv{
		db:       db,
		svc:      svc,
		relay:    relay,
		registry: stub,
		remote:   remote,
		params:   params,
		keys:     keys,
		endpoint: endpoint,
	}
}

func (e *testEnv) seedCertificate(t *testing.T, id string, certType int) {
	t.Helper()
	require.NoError(t, e.db.CertificateRepository().InsertCertificate(
		context.Background(),
		domain.NewCertificate(testRegistry, id, 0, 3600, "DK1", certType, []domain.Attribute{
			{Key: "assetId", Value: "sha256:beef", Hashed: true},
		}),
	))
}

func (e *testEnv) seedSlice(t *testing.T, certificateID string, quantity uint64) domain.Slice {
	t.Helper()
	ctx := context.Background()

	value, err := commitment.New(e.params, quantity)
	require.NoError(t, err)
	position, err := e.db.EndpointRepository().NextPosition(ctx, e.endpoint.ID)
	require.NoError(t, err)

	s := domain.NewSlice(
		testEnvOwner, e.endpoint.ID, position, testRegistry, certificateID,
		quantity, value.BlindingFactor,
	)
	require.NoError(t, e.db.SliceRepository().AddSlices(ctx, []domain.Slice{*s}))
	return *s
}

func (e *testEnv) runUntilDone(t *testing.T, planID uuid.UUID) *domain.RoutingPlan {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, e.relay.DispatchPending(ctx))
		plan, err := e.svc.GetRoutingPlan(ctx, planID)
		require.NoError(t, err)
		if plan.IsDone() {
			// One extra round flushes notifications the last step enqueued.
			require.NoError(t, e.relay.DispatchPending(ctx))
			return plan
		}
	}
	t.Fatalf("routing plan %s did not reach a terminal state", planID)
	return nil
}

func (e *testEnv) sliceStates(t *testing.T, certificateID string) []domain.Slice {
	t.Helper()
	slices, err := e.db.SliceRepository().GetSlicesForCertificate(
		context.Background(), testEnvOwner, testRegistry, certificateID,
		[]int{
			domain.SliceStateReceivedPending, domain.SliceStateAvailable,
			domain.SliceStateReserved, domain.SliceStateRegistering,
			domain.SliceStateSliced, domain.SliceStateClaimed,
			domain.SliceStateTransferred,
		},
	)
	require.NoError(t, err)
	return slices
}

func TestClaimCertificateEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedCertificate(t, testProdCert, domain.CertificateTypeProduction)
	env.seedCertificate(t, testConsCert, domain.CertificateTypeConsumption)
	prodSlice := env.seedSlice(t, testProdCert, 125)
	env.seedSlice(t, testConsCert, 150)

	planID, err := env.svc.ClaimCertificate(ctx, ClaimCertificateRequest{
		Owner:                    testEnvOwner,
		Registry:                 testRegistry,
		ProductionCertificateID:  testProdCert,
		ConsumptionCertificateID: testConsCert,
		Quantity:                 125,
	})
	require.NoError(t, err)

	plan := env.runUntilDone(t, planID)
	require.Equal(t, domain.RoutingPlanStateCompleted, plan.State)

	// The production slice matched exactly and is spent.
	stored, err := env.db.SliceRepository().GetSlice(ctx, prodSlice.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SliceStateClaimed, stored.State)

	// The consumption slice was split in a claimed part and a remainder.
	balance, err := env.svc.GetBalance(ctx, testEnvOwner, testRegistry, testConsCert)
	require.NoError(t, err)
	require.Equal(t, uint64(25), balance.Available)
	require.Equal(t, uint64(25), balance.Total)

	prodBalance, err := env.svc.GetBalance(ctx, testEnvOwner, testRegistry, testProdCert)
	require.NoError(t, err)
	require.Zero(t, prodBalance.Total)

	var claimID uuid.UUID
	for _, step := range plan.Steps {
		if step.Kind == domain.StepFinalizeClaim {
			claimID = step.ClaimID
		}
	}
	claim, err := env.db.ClaimRepository().GetClaim(ctx, claimID)
	require.NoError(t, err)
	require.True(t, claim.IsClaimed())
	require.Equal(t, uint64(125), claim.Quantity)

	// One split plus one registry transaction per claimed slice.
	txs := env.registry.transactions()
	require.Len(t, txs, 3)

	streamID := domain.StreamID(testRegistry, testConsCert)
	for _, tx := range txs {
		require.True(t, keyring.VerifySignature(tx.PublicKey, tx.SigningPayload(), tx.Signature))

		if tx.Type != registry.EventSliced {
			continue
		}
		var event slicedEvent
		require.NoError(t, json.Unmarshal(tx.Payload, &event))
		require.Len(t, event.Parts, 2)

		proof := &commitment.SplitProof{
			Source:   event.SourceCommitment,
			StreamID: streamID,
			Nonce:    event.EqualityNonce,
			Response: event.EqualityResponse,
		}
		for _, part := range event.Parts {
			proof.Parts = append(proof.Parts, &commitment.CommittedValue{
				Commitment: part.Commitment,
			})
			require.True(t, commitment.VerifyRange(env.params, part.RangeProof))
		}
		require.True(t, commitment.VerifySplit(env.params, proof))
	}
}

func TestClaimRejectionCompensates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.registry.setDefaultStatus(registry.StatusFailed{Message: "double spend"})
	env.seedCertificate(t, testProdCert, domain.CertificateTypeProduction)
	env.seedCertificate(t, testConsCert, domain.CertificateTypeConsumption)
	prodSlice := env.seedSlice(t, testProdCert, 200)
	consSlice := env.seedSlice(t, testConsCert, 300)

	planID, err := env.svc.ClaimCertificate(ctx, ClaimCertificateRequest{
		Owner:                    testEnvOwner,
		Registry:                 testRegistry,
		ProductionCertificateID:  testProdCert,
		ConsumptionCertificateID: testConsCert,
		Quantity:                 150,
	})
	require.NoError(t, err)

	plan := env.runUntilDone(t, planID)
	require.Equal(t, domain.RoutingPlanStateCompensated, plan.State)
	require.Contains(t, plan.FailureMessage, "double spend")

	// Both reserved slices are back, whole and available, and the part
	// slices that never reached the registry are gone.
	prodSlices := env.sliceStates(t, testProdCert)
	require.Len(t, prodSlices, 1)
	require.Equal(t, prodSlice.ID, prodSlices[0].ID)
	require.Equal(t, domain.SliceStateAvailable, prodSlices[0].State)
	require.Equal(t, uint64(200), prodSlices[0].Quantity)

	consSlices := env.sliceStates(t, testConsCert)
	require.Len(t, consSlices, 1)
	require.Equal(t, consSlice.ID, consSlices[0].ID)
	require.Equal(t, domain.SliceStateAvailable, consSlices[0].State)
	require.Equal(t, uint64(300), consSlices[0].Quantity)

	for _, step := range plan.Steps {
		if step.Kind != domain.StepFinalizeClaim {
			continue
		}
		claim, err := env.db.ClaimRepository().GetClaim(ctx, step.ClaimID)
		require.NoError(t, err)
		require.True(t, claim.IsRejected())
	}
}

func TestClaimSuspendsWhileRegistryPending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.registry.setDefaultStatus(registry.StatusPending{})
	env.seedCertificate(t, testProdCert, domain.CertificateTypeProduction)
	env.seedCertificate(t, testConsCert, domain.CertificateTypeConsumption)
	env.seedSlice(t, testProdCert, 125)
	env.seedSlice(t, testConsCert, 125)

	planID, err := env.svc.ClaimCertificate(ctx, ClaimCertificateRequest{
		Owner:                    testEnvOwner,
		Registry:                 testRegistry,
		ProductionCertificateID:  testProdCert,
		ConsumptionCertificateID: testConsCert,
		Quantity:                 125,
	})
	require.NoError(t, err)

	require.NoError(t, env.relay.DispatchPending(ctx))
	plan, err := env.svc.GetRoutingPlan(ctx, planID)
	require.NoError(t, err)
	require.Equal(t, domain.RoutingPlanStateExecuting, plan.State)
	require.NotZero(t, plan.Attempts)

	// Once the registry commits, the next resume completes the plan.
	env.registry.setDefaultStatus(registry.StatusCommitted{})
	plan = env.runUntilDone(t, planID)
	require.Equal(t, domain.RoutingPlanStateCompleted, plan.State)
}

func TestPlanFaultsAfterTooManyAttempts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, 2)
	env.registry.setDefaultStatus(registry.StatusPending{})
	env.seedCertificate(t, testProdCert, domain.CertificateTypeProduction)
	env.seedCertificate(t, testConsCert, domain.CertificateTypeConsumption)
	env.seedSlice(t, testProdCert, 125)
	env.seedSlice(t, testConsCert, 125)

	planID, err := env.svc.ClaimCertificate(ctx, ClaimCertificateRequest{
		Owner:                    testEnvOwner,
		Registry:                 testRegistry,
		ProductionCertificateID:  testProdCert,
		ConsumptionCertificateID: testConsCert,
		Quantity:                 125,
	})
	require.NoError(t, err)

	plan := env.runUntilDone(t, planID)
	require.Equal(t, domain.RoutingPlanStateFaulted, plan.State)
	require.Contains(t, plan.FailureMessage, "too many attempts")
}

func TestClaimValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedCertificate(t, testProdCert, domain.CertificateTypeProduction)
	env.seedCertificate(t, testConsCert, domain.CertificateTypeConsumption)
	env.seedSlice(t, testProdCert, 100)
	env.seedSlice(t, testConsCert, 100)

	t.Run("unknown_certificate", func(t *testing.T) {
		_, err := env.svc.ClaimCertificate(ctx, ClaimCertificateRequest{
			Owner: testEnvOwner, Registry: testRegistry,
			ProductionCertificateID:  "missing",
			ConsumptionCertificateID: testConsCert,
			Quantity:                 50,
		})
		require.EqualError(t, err, domain.ErrCertificateNotFound.Error())
	})

	t.Run("swapped_certificate_types", func(t *testing.T) {
		_, err := env.svc.ClaimCertificate(ctx, ClaimCertificateRequest{
			Owner: testEnvOwner, Registry: testRegistry,
			ProductionCertificateID:  testConsCert,
			ConsumptionCertificateID: testProdCert,
			Quantity:                 50,
		})
		require.EqualError(t, err, ErrNotProductionCertificate.Error())
	})

	t.Run("insufficient_quantity", func(t *testing.T) {
		_, err := env.svc.ClaimCertificate(ctx, ClaimCertificateRequest{
			Owner: testEnvOwner, Registry: testRegistry,
			ProductionCertificateID:  testProdCert,
			ConsumptionCertificateID: testConsCert,
			Quantity:                 500,
		})
		require.EqualError(t, err, domain.ErrInsufficientQuantity.Error())
		require.False(t, IsTransient(err))
	})
}

func TestTransferCertificateEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, 10)
	env.seedCertificate(t, testProdCert, domain.CertificateTypeProduction)
	sourceSlice := env.seedSlice(t, testProdCert, 150)

	require.NoError(t, env.db.CertificateRepository().InsertWalletAttribute(
		ctx, domain.WalletAttribute{
			Owner:         testEnvOwner,
			Registry:      testRegistry,
			CertificateID: testProdCert,
			Key:           "assetId",
			Value:         "gsrn-5700",
			Salt:          []byte{0x05, 0x06},
		},
	))

	receiverKeys, err := keyring.NewFromSeed(bytes.Repeat([]byte{0x24}, 32))
	require.NoError(t, err)
	receiverRoot, err := receiverKeys.EndpointPublicKey(0)
	require.NoError(t, err)
	receiver, err := env.svc.RegisterExternalEndpoint(
		ctx, "partner-wallet", receiverRoot, "https://partner.example.com/hook",
	)
	require.NoError(t, err)

	planID, err := env.svc.TransferCertificate(ctx, TransferCertificateRequest{
		Owner:              testEnvOwner,
		Registry:           testRegistry,
		CertificateID:      testProdCert,
		Quantity:           100,
		ReceiverEndpointID: receiver.ID,
		DiscloseAttributes: []string{"assetId"},
	})
	require.NoError(t, err)

	plan := env.runUntilDone(t, planID)
	require.Equal(t, domain.RoutingPlanStateCompleted, plan.State)

	stored, err := env.db.SliceRepository().GetSlice(ctx, sourceSlice.ID)
	require.NoError(t, err)
	require.Equal(t, domain.SliceStateSliced, stored.State)

	balance, err := env.svc.GetBalance(ctx, testEnvOwner, testRegistry, testProdCert)
	require.NoError(t, err)
	require.Equal(t, uint64(50), balance.Available)
	require.Equal(t, uint64(50), balance.Total)

	notifications := env.remote.captured()
	require.Len(t, notifications, 1)
	notification := notifications[0]
	require.Equal(t, uint64(100), notification.Quantity)
	require.Equal(t, testRegistry, notification.Registry)
	require.Equal(t, testProdCert, notification.CertificateID)

	// The receiver can derive the addressed one-time key and open the
	// commitment with the notified blinding factor.
	expectedKey, err := keyring.OneTimePublicKey(receiverRoot, notification.Position)
	require.NoError(t, err)
	require.Equal(t, expectedKey, notification.PublicKey)
	opened, err := commitment.Commit(env.params, notification.Quantity, notification.BlindingFactor)
	require.NoError(t, err)
	require.Equal(t, notification.Commitment, opened)

	require.NotNil(t, notification.Certificate)
	require.Equal(t, "DK1", notification.Certificate.GridArea)
	require.Len(t, notification.Attributes, 1)
	require.Equal(t, "gsrn-5700", notification.Attributes[0].Value)
}

func TestReceiveAndVerifySlice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t, 10)

	value, err := commitment.New(env.params, 80)
	require.NoError(t, err)

	req := ReceiveSliceRequest{
		EndpointID:     env.endpoint.ID,
		Position:       7,
		Registry:       testRegistry,
		CertificateID:  testProdCert,
		Quantity:       80,
		BlindingFactor: value.BlindingFactor,
		Commitment:     value.Commitment,
		Certificate: &CertificateInfo{
			Start: 0, End: 3600, GridArea: "DK1",
			Type: domain.CertificateTypeProduction,
		},
		Attributes: []DisclosedAttribute{
			{Key: "assetId", Value: "gsrn-5700", Salt: []byte{0x07}},
		},
	}

	sliceID, err := env.svc.ReceiveSlice(ctx, req)
	require.NoError(t, err)

	stored, err := env.db.SliceRepository().GetSlice(ctx, sliceID)
	require.NoError(t, err)
	require.Equal(t, domain.SliceStateReceivedPending, stored.State)

	// The deposit is not spendable until verified.
	balance, err := env.svc.GetBalance(ctx, testEnvOwner, testRegistry, testProdCert)
	require.NoError(t, err)
	require.Zero(t, balance.Total)

	require.NoError(t, env.svc.VerifyReceivedSlice(ctx, sliceID))
	balance, err = env.svc.GetBalance(ctx, testEnvOwner, testRegistry, testProdCert)
	require.NoError(t, err)
	require.Equal(t, uint64(80), balance.Available)

	attrs, err := env.db.CertificateRepository().GetWalletAttributes(
		ctx, testEnvOwner, testRegistry, testProdCert,
	)
	require.NoError(t, err)
	require.Len(t, attrs, 1)

	t.Run("duplicate_position", func(t *testing.T) {
		_, err := env.svc.ReceiveSlice(ctx, req)
		require.EqualError(t, err, domain.ErrPositionAlreadyTaken.Error())
	})

	t.Run("invalid_blinding_factor", func(t *testing.T) {
		bad := req
		bad.Position = 8
		bad.BlindingFactor = make([]byte, 33)
		badID, err := env.svc.ReceiveSlice(ctx, bad)
		require.NoError(t, err)

		err = env.svc.VerifyReceivedSlice(ctx, badID)
		require.EqualError(t, err, ErrInvalidDeposit.Error())
		require.False(t, IsTransient(err))
	})

	t.Run("forged_quantity", func(t *testing.T) {
		// A well-formed blinding factor is not enough: the commitment must
		// open to the notified quantity.
		bad := req
		bad.Position = 9
		bad.Quantity = 8000
		badID, err := env.svc.ReceiveSlice(ctx, bad)
		require.NoError(t, err)

		err = env.svc.VerifyReceivedSlice(ctx, badID)
		require.EqualError(t, err, ErrInvalidDeposit.Error())
		require.False(t, IsTransient(err))

		balance, err := env.svc.GetBalance(ctx, testEnvOwner, testRegistry, testProdCert)
		require.NoError(t, err)
		require.Equal(t, uint64(80), balance.Available)
	})

	t.Run("zero_quantity", func(t *testing.T) {
		zero, err := commitment.New(env.params, 0)
		require.NoError(t, err)

		bad := req
		bad.Position = 10
		bad.Quantity = 0
		bad.BlindingFactor = zero.BlindingFactor
		bad.Commitment = zero.Commitment
		badID, err := env.svc.ReceiveSlice(ctx, bad)
		require.NoError(t, err)

		err = env.svc.VerifyReceivedSlice(ctx, badID)
		require.EqualError(t, err, ErrInvalidDeposit.Error())
	})
}
