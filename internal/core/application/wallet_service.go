package application

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/thanhpk/randstr"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/internal/core/ports"
	"github.com/gcert-network/gcert-daemon/pkg/commitment"
	"github.com/gcert-network/gcert-daemon/pkg/keyring"
)

// WalletService is the command surface of the wallet: endpoint management,
// deposits, balances and the claim and transfer commands that spawn routing
// plans. Claim and transfer only reserve and plan synchronously; the plan
// itself executes asynchronously through the outbox.
type WalletService interface {
	CreateWalletEndpoint(ctx context.Context, owner string) (*domain.Endpoint, error)
	RegisterExternalEndpoint(
		ctx context.Context, reference, publicKey, remoteURL string,
	) (*domain.Endpoint, error)
	ListEndpoints(ctx context.Context, owner string) ([]domain.Endpoint, error)

	ClaimCertificate(ctx context.Context, req ClaimCertificateRequest) (uuid.UUID, error)
	TransferCertificate(ctx context.Context, req TransferCertificateRequest) (uuid.UUID, error)
	GetRoutingPlan(ctx context.Context, planID uuid.UUID) (*domain.RoutingPlan, error)

	ReceiveSlice(ctx context.Context, req ReceiveSliceRequest) (uuid.UUID, error)
	VerifyReceivedSlice(ctx context.Context, sliceID uuid.UUID) error

	GetBalance(
		ctx context.Context, owner, registryName, certificateID string,
	) (*Balance, error)
}

type walletService struct {
	repoManager ports.DbManager
	keys        *keyring.Keyring
	params      *commitment.Params
}

// NewWalletService returns the wallet command service.
func NewWalletService(
	repoManager ports.DbManager, keys *keyring.Keyring, params *commitment.Params,
) WalletService {
	return &walletService{
		repoManager: repoManager,
		keys:        keys,
		params:      params,
	}
}

func (s *walletService) CreateWalletEndpoint(
	ctx context.Context, owner string,
) (*domain.Endpoint, error) {
	v, err := s.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			account, err := s.repoManager.EndpointRepository().NextAccount(ctx)
			if err != nil {
				return nil, err
			}
			publicKey, err := s.keys.EndpointPublicKey(account)
			if err != nil {
				return nil, err
			}

			endpoint := domain.NewWalletEndpoint(owner, account, publicKey)
			if err := s.repoManager.EndpointRepository().AddEndpoint(ctx, endpoint); err != nil {
				return nil, err
			}
			return endpoint, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return v.(*domain.Endpoint), nil
}

func (s *walletService) RegisterExternalEndpoint(
	ctx context.Context, reference, publicKey, remoteURL string,
) (*domain.Endpoint, error) {
	// Deriving position 0 validates the key root without consuming any
	// position, counters live in the endpoint row.
	if _, err := keyring.OneTimePublicKey(publicKey, 0); err != nil {
		return nil, err
	}

	secret := randstr.Hex(32)
	endpoint := domain.NewExternalEndpoint(reference, publicKey, remoteURL, secret)

	if _, err := s.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			return nil, s.repoManager.EndpointRepository().AddEndpoint(ctx, endpoint)
		},
	); err != nil {
		return nil, err
	}
	return endpoint, nil
}

func (s *walletService) ListEndpoints(
	ctx context.Context, owner string,
) ([]domain.Endpoint, error) {
	v, err := s.repoManager.RunTransaction(
		ctx, true,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.EndpointRepository().GetEndpointsByOwner(ctx, owner)
		},
	)
	if err != nil {
		return nil, err
	}
	return v.([]domain.Endpoint), nil
}

func (s *walletService) ClaimCertificate(
	ctx context.Context, req ClaimCertificateRequest,
) (uuid.UUID, error) {
	v, err := s.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			certRepo := s.repoManager.CertificateRepository()

			prodCert, err := certRepo.GetCertificate(
				ctx, req.Registry, req.ProductionCertificateID,
			)
			if err != nil {
				return nil, err
			}
			if !prodCert.IsProduction() {
				return nil, ErrNotProductionCertificate
			}
			if prodCert.Withdrawn {
				return nil, domain.ErrCertificateWithdrawn
			}

			consCert, err := certRepo.GetCertificate(
				ctx, req.Registry, req.ConsumptionCertificateID,
			)
			if err != nil {
				return nil, err
			}
			if !consCert.IsConsumption() {
				return nil, ErrNotConsumptionCertificate
			}
			if consCert.Withdrawn {
				return nil, domain.ErrCertificateWithdrawn
			}

			plan := domain.NewRoutingPlan(req.Owner)

			production, err := ReserveQuantity(
				ctx, s.repoManager.SliceRepository(), plan.ID,
				req.Owner, req.Registry, req.ProductionCertificateID, req.Quantity,
			)
			if err != nil {
				return nil, err
			}
			consumption, err := ReserveQuantity(
				ctx, s.repoManager.SliceRepository(), plan.ID,
				req.Owner, req.Registry, req.ConsumptionCertificateID, req.Quantity,
			)
			if err != nil {
				return nil, err
			}

			ops, err := PlanClaim(req.Quantity, production, consumption)
			if err != nil {
				return nil, err
			}

			claims := expandOperations(plan, ops, uuid.Nil, nil)
			for _, claim := range claims {
				if err := s.repoManager.ClaimRepository().AddClaim(ctx, claim); err != nil {
					return nil, err
				}
			}

			if _, err := plan.Start(); err != nil {
				return nil, err
			}
			if err := s.repoManager.RoutingPlanRepository().AddRoutingPlan(ctx, plan); err != nil {
				return nil, err
			}
			if err := s.enqueueResume(ctx, plan.ID); err != nil {
				return nil, err
			}

			log.Debugf(
				"claim of %d on %s/%s planned as routing plan %s (%d steps)",
				req.Quantity, req.Registry, req.ProductionCertificateID,
				plan.ID, len(plan.Steps),
			)
			return plan.ID, nil
		},
	)
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

func (s *walletService) TransferCertificate(
	ctx context.Context, req TransferCertificateRequest,
) (uuid.UUID, error) {
	v, err := s.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			cert, err := s.repoManager.CertificateRepository().GetCertificate(
				ctx, req.Registry, req.CertificateID,
			)
			if err != nil {
				return nil, err
			}
			if cert.Withdrawn {
				return nil, domain.ErrCertificateWithdrawn
			}

			if _, err := s.repoManager.EndpointRepository().GetEndpoint(
				ctx, req.ReceiverEndpointID,
			); err != nil {
				return nil, err
			}

			plan := domain.NewRoutingPlan(req.Owner)

			sources, err := ReserveQuantity(
				ctx, s.repoManager.SliceRepository(), plan.ID,
				req.Owner, req.Registry, req.CertificateID, req.Quantity,
			)
			if err != nil {
				return nil, err
			}

			ops, err := PlanTransfer(req.Quantity, sources)
			if err != nil {
				return nil, err
			}

			expandOperations(plan, ops, req.ReceiverEndpointID, req.DiscloseAttributes)

			if _, err := plan.Start(); err != nil {
				return nil, err
			}
			if err := s.repoManager.RoutingPlanRepository().AddRoutingPlan(ctx, plan); err != nil {
				return nil, err
			}
			if err := s.enqueueResume(ctx, plan.ID); err != nil {
				return nil, err
			}

			log.Debugf(
				"transfer of %d on %s/%s planned as routing plan %s (%d steps)",
				req.Quantity, req.Registry, req.CertificateID, plan.ID, len(plan.Steps),
			)
			return plan.ID, nil
		},
	)
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

func (s *walletService) GetRoutingPlan(
	ctx context.Context, planID uuid.UUID,
) (*domain.RoutingPlan, error) {
	v, err := s.repoManager.RunTransaction(
		ctx, true,
		func(ctx context.Context) (interface{}, error) {
			return s.repoManager.RoutingPlanRepository().GetRoutingPlan(ctx, planID)
		},
	)
	if err != nil {
		return nil, err
	}
	return v.(*domain.RoutingPlan), nil
}

func (s *walletService) ReceiveSlice(
	ctx context.Context, req ReceiveSliceRequest,
) (uuid.UUID, error) {
	v, err := s.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			endpoint, err := s.repoManager.EndpointRepository().GetEndpoint(
				ctx, req.EndpointID,
			)
			if err != nil {
				return nil, err
			}
			if endpoint.IsRemote() {
				return nil, ErrNotWalletEndpoint
			}

			certRepo := s.repoManager.CertificateRepository()
			if req.Certificate != nil {
				attrs := make([]domain.Attribute, 0, len(req.Certificate.Attributes))
				for _, a := range req.Certificate.Attributes {
					attrs = append(attrs, domain.Attribute{
						Key: a.Key, Value: a.Value, Hashed: a.Hashed,
					})
				}
				if err := certRepo.InsertCertificate(ctx, domain.NewCertificate(
					req.Registry, req.CertificateID,
					req.Certificate.Start, req.Certificate.End,
					req.Certificate.GridArea, req.Certificate.Type, attrs,
				)); err != nil {
					return nil, err
				}
			} else if _, err := certRepo.GetCertificate(
				ctx, req.Registry, req.CertificateID,
			); err != nil {
				return nil, err
			}

			slice := domain.NewReceivedSlice(
				endpoint.Owner, endpoint.ID, req.Position,
				req.Registry, req.CertificateID, req.Quantity,
				req.BlindingFactor, req.Commitment,
			)
			if err := s.repoManager.SliceRepository().AddSlices(
				ctx, []domain.Slice{*slice},
			); err != nil {
				return nil, err
			}

			for _, attr := range req.Attributes {
				if err := certRepo.InsertWalletAttribute(ctx, domain.WalletAttribute{
					Owner:         endpoint.Owner,
					Registry:      req.Registry,
					CertificateID: req.CertificateID,
					Key:           attr.Key,
					Value:         attr.Value,
					Salt:          attr.Salt,
				}); err != nil {
					return nil, err
				}
			}

			return slice.ID, nil
		},
	)
	if err != nil {
		return uuid.Nil, err
	}
	return v.(uuid.UUID), nil
}

func (s *walletService) VerifyReceivedSlice(ctx context.Context, sliceID uuid.UUID) error {
	_, err := s.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			return nil, s.repoManager.SliceRepository().UpdateSlice(
				ctx, sliceID,
				func(slice *domain.Slice) (*domain.Slice, error) {
					if slice.IsAvailable() {
						return slice, nil
					}
					if slice.Quantity == 0 {
						return nil, ErrInvalidDeposit
					}
					// The depositor's claimed commitment must open to
					// exactly the notified (quantity, blinding factor).
					expected, err := commitment.Commit(
						s.params, slice.Quantity, slice.RandomR,
					)
					if err != nil || !bytes.Equal(expected, slice.Commitment) {
						return nil, ErrInvalidDeposit
					}
					if _, err := slice.Verify(); err != nil {
						return nil, err
					}
					return slice, nil
				},
			)
		},
	)
	return err
}

func (s *walletService) GetBalance(
	ctx context.Context, owner, registryName, certificateID string,
) (*Balance, error) {
	v, err := s.repoManager.RunTransaction(
		ctx, true,
		func(ctx context.Context) (interface{}, error) {
			slices, err := s.repoManager.SliceRepository().GetSlicesForCertificate(
				ctx, owner, registryName, certificateID,
				[]int{
					domain.SliceStateAvailable,
					domain.SliceStateReserved,
					domain.SliceStateRegistering,
				},
			)
			if err != nil {
				return nil, err
			}

			balance := &Balance{}
			for i := range slices {
				switch slices[i].State {
				case domain.SliceStateAvailable:
					balance.Available += slices[i].Quantity
				case domain.SliceStateReserved:
					balance.Reserved += slices[i].Quantity
				case domain.SliceStateRegistering:
					balance.Settling += slices[i].Quantity
				}
				balance.Total += slices[i].Quantity
			}
			return balance, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return v.(*Balance), nil
}

func (s *walletService) enqueueResume(ctx context.Context, planID uuid.UUID) error {
	payload, err := json.Marshal(ResumeRoutingPlanPayload{PlanID: planID})
	if err != nil {
		return err
	}
	return s.repoManager.OutboxRepository().AddMessage(
		ctx, domain.NewOutboxMessage(domain.OutboxTypeResumeRoutingPlan, payload),
	)
}
