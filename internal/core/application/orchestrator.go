package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/internal/core/ports"
	"github.com/gcert-network/gcert-daemon/pkg/commitment"
	"github.com/gcert-network/gcert-daemon/pkg/keyring"
	"github.com/gcert-network/gcert-daemon/pkg/registry"
)

// Orchestrator drives routing plans to a terminal state. Every step runs in
// its own local transaction so that a crash between steps never loses or
// duplicates work: re-executing the current step is always safe.
type Orchestrator interface {
	// ExecutePlan runs the plan from its cursor until it completes, suspends
	// waiting for the registry, compensates, or faults. Resuming a suspended
	// or half-compensated plan goes through ExecutePlan again.
	ExecutePlan(ctx context.Context, planID uuid.UUID) error
}

type orchestrator struct {
	repoManager ports.DbManager
	registrySvc registry.Service
	keys        *keyring.Keyring
	params      *commitment.Params
	maxAttempts int
	retryDelay  time.Duration
}

// NewOrchestrator returns the routing plan executor.
func NewOrchestrator(
	repoManager ports.DbManager, registrySvc registry.Service,
	keys *keyring.Keyring, params *commitment.Params,
	maxAttempts int, retryDelay time.Duration,
) Orchestrator {
	return &orchestrator{
		repoManager: repoManager,
		registrySvc: registrySvc,
		keys:        keys,
		params:      params,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// expandOperations appends the durable steps implementing the reconciled
// operations to the plan and returns the claim rows to insert alongside it.
// Registry interactions always expand to a register, submit, await, finalize
// sequence sharing one transaction slot.
func expandOperations(
	plan *domain.RoutingPlan, ops []Operation,
	receiverEndpointID uuid.UUID, disclose []string,
) []*domain.Claim {
	claims := make([]*domain.Claim, 0)

	for _, op := range ops {
		switch o := op.(type) {
		case SplitOperation:
			slot := plan.AllocateTxSlot()
			parts := make([]domain.PlannedPart, 0, len(o.Parts))
			for _, part := range o.Parts {
				parts = append(parts, domain.PlannedPart{
					SliceID:  part.Slice.ID,
					Quantity: part.Slice.Quantity,
					Role:     part.Role,
				})
			}
			plan.AppendStep(domain.Step{
				Kind: domain.StepRegisterSplit, SourceSliceID: o.Source.ID,
				Parts: parts, TxSlot: slot,
			})
			plan.AppendStep(domain.Step{Kind: domain.StepSubmitTransaction, TxSlot: slot})
			plan.AppendStep(domain.Step{Kind: domain.StepAwaitCommitment, TxSlot: slot})
			plan.AppendStep(domain.Step{
				Kind: domain.StepFinalizeSplit, SourceSliceID: o.Source.ID,
				Parts: parts, TxSlot: slot,
			})

		case ClaimOperation:
			claim := domain.NewClaim(o.Production.ID, o.Consumption.ID, o.Production.Quantity)
			claims = append(claims, claim)

			for _, sliceID := range []uuid.UUID{o.Production.ID, o.Consumption.ID} {
				slot := plan.AllocateTxSlot()
				plan.AppendStep(domain.Step{
					Kind: domain.StepRegisterClaim, ClaimID: claim.ID,
					SliceID: sliceID, TxSlot: slot,
				})
				plan.AppendStep(domain.Step{Kind: domain.StepSubmitTransaction, TxSlot: slot})
				plan.AppendStep(domain.Step{Kind: domain.StepAwaitCommitment, TxSlot: slot})
			}
			plan.AppendStep(domain.Step{
				Kind: domain.StepFinalizeClaim, ClaimID: claim.ID,
				ProductionSliceID:  o.Production.ID,
				ConsumptionSliceID: o.Consumption.ID,
			})

		case TransferOperation:
			slot := plan.AllocateTxSlot()
			plan.AppendStep(domain.Step{
				Kind: domain.StepRegisterTransfer, SliceID: o.Slice.ID,
				ReceiverEndpointID: receiverEndpointID, Disclose: disclose,
				TxSlot: slot,
			})
			plan.AppendStep(domain.Step{Kind: domain.StepSubmitTransaction, TxSlot: slot})
			plan.AppendStep(domain.Step{Kind: domain.StepAwaitCommitment, TxSlot: slot})
			plan.AppendStep(domain.Step{
				Kind: domain.StepFinalizeTransfer, SliceID: o.Slice.ID,
				ReceiverEndpointID: receiverEndpointID, Disclose: disclose,
				TxSlot: slot,
			})

		case ReleaseOperation:
			plan.AppendStep(domain.Step{
				Kind: domain.StepReleaseRemainder, SliceID: o.Slice.ID,
			})
		}
	}

	return claims
}

func (o *orchestrator) ExecutePlan(ctx context.Context, planID uuid.UUID) error {
	for {
		state, err := o.planState(ctx, planID)
		if err != nil {
			return err
		}

		switch state {
		case domain.RoutingPlanStateExecuting:
			err = o.executeStep(ctx, planID)
		case domain.RoutingPlanStateCompensating:
			err = o.compensate(ctx, planID)
		default:
			return nil
		}

		if err != nil {
			stop, handleErr := o.handleFailure(ctx, planID, err)
			if handleErr != nil {
				return handleErr
			}
			if stop {
				return nil
			}
		}
	}
}

func (o *orchestrator) planState(ctx context.Context, planID uuid.UUID) (int, error) {
	v, err := o.repoManager.RunTransaction(
		ctx, true,
		func(ctx context.Context) (interface{}, error) {
			plan, err := o.repoManager.RoutingPlanRepository().GetRoutingPlan(ctx, planID)
			if err != nil {
				return nil, err
			}
			return plan.State, nil
		},
	)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// executeStep runs the current step and advances the cursor, all in one
// local transaction. Failing the step discards every side effect.
func (o *orchestrator) executeStep(ctx context.Context, planID uuid.UUID) error {
	_, err := o.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			return nil, o.repoManager.RoutingPlanRepository().UpdateRoutingPlan(
				ctx, planID,
				func(plan *domain.RoutingPlan) (*domain.RoutingPlan, error) {
					step, ok := plan.CurrentStep()
					if !ok {
						plan.Advance()
						return plan, nil
					}
					log.Debugf(
						"routing plan %s: executing step %d (kind %d)",
						planID, plan.Cursor, step.Kind,
					)
					if err := o.runStep(ctx, plan, step); err != nil {
						return nil, err
					}
					plan.Advance()
					return plan, nil
				},
			)
		},
	)
	return err
}

func (o *orchestrator) runStep(
	ctx context.Context, plan *domain.RoutingPlan, step *domain.Step,
) error {
	switch step.Kind {
	case domain.StepRegisterSplit:
		return o.registerSplit(ctx, plan, step)
	case domain.StepSubmitTransaction:
		return o.submitTransaction(ctx, plan, step)
	case domain.StepAwaitCommitment:
		return o.awaitCommitment(ctx, plan, step)
	case domain.StepFinalizeSplit:
		return o.finalizeSplit(ctx, step)
	case domain.StepRegisterClaim:
		return o.registerClaim(ctx, plan, step)
	case domain.StepFinalizeClaim:
		return o.finalizeClaim(ctx, step)
	case domain.StepRegisterTransfer:
		return o.registerTransfer(ctx, plan, step)
	case domain.StepFinalizeTransfer:
		return o.finalizeTransfer(ctx, plan, step)
	case domain.StepReleaseRemainder:
		return o.releaseSliceIfHeld(ctx, step.SliceID)
	}
	return permanent(fmt.Errorf("unknown step kind %d", step.Kind))
}

func (o *orchestrator) registerSplit(
	ctx context.Context, plan *domain.RoutingPlan, step *domain.Step,
) error {
	sliceRepo := o.repoManager.SliceRepository()
	endpointRepo := o.repoManager.EndpointRepository()

	source, err := sliceRepo.GetSlice(ctx, step.SourceSliceID)
	if err != nil {
		return err
	}
	endpoint, err := endpointRepo.GetEndpoint(ctx, source.EndpointID)
	if err != nil {
		return err
	}

	streamID := domain.StreamID(source.Registry, source.CertificateID)
	sourceCommitment, err := commitment.Commit(o.params, source.Quantity, source.RandomR)
	if err != nil {
		return permanent(err)
	}

	quantities := make([]uint64, len(step.Parts))
	for i, part := range step.Parts {
		quantities[i] = part.Quantity
	}
	proof, err := commitment.Split(
		o.params,
		&commitment.CommittedValue{
			Quantity:       source.Quantity,
			BlindingFactor: source.RandomR,
			Commitment:     sourceCommitment,
		},
		quantities, streamID,
	)
	if err != nil {
		return permanent(err)
	}

	event := slicedEvent{
		SourceCommitment: sourceCommitment,
		EqualityNonce:    proof.Nonce,
		EqualityResponse: proof.Response,
	}
	newSlices := make([]domain.Slice, 0, len(step.Parts))
	for i, part := range step.Parts {
		value := proof.Parts[i]

		position, err := endpointRepo.NextPosition(ctx, endpoint.ID)
		if err != nil {
			return err
		}
		partKey, err := keyring.OneTimePublicKey(endpoint.PublicKey, position)
		if err != nil {
			return permanent(err)
		}
		rangeProof, err := commitment.ProveRange(
			o.params, value.Quantity, value.BlindingFactor, streamID,
		)
		if err != nil {
			return permanent(err)
		}

		event.Parts = append(event.Parts, slicedEventPart{
			Commitment: value.Commitment,
			PublicKey:  partKey,
			RangeProof: rangeProof,
		})

		planID := plan.ID
		newSlices = append(newSlices, domain.Slice{
			ID:            part.SliceID,
			Owner:         source.Owner,
			EndpointID:    endpoint.ID,
			Position:      position,
			Registry:      source.Registry,
			CertificateID: source.CertificateID,
			Quantity:      value.Quantity,
			RandomR:       value.BlindingFactor,
			State:         domain.SliceStateRegistering,
			LockedBy:      &planID,
			CreatedAt:     time.Now().UnixNano(),
		})
	}

	if err := sliceRepo.AddSlices(ctx, newSlices); err != nil {
		return err
	}
	if err := o.bringToRegistering(ctx, source.ID, plan.ID); err != nil {
		return err
	}

	tx, err := o.signTransaction(source, endpoint, registry.EventSliced, streamID, event)
	if err != nil {
		return err
	}
	plan.SetTransaction(step.TxSlot, tx)
	return nil
}

func (o *orchestrator) submitTransaction(
	ctx context.Context, plan *domain.RoutingPlan, step *domain.Step,
) error {
	tx := plan.TransactionAt(step.TxSlot)
	if tx == nil {
		return permanent(fmt.Errorf("no signed transaction in slot %d", step.TxSlot))
	}
	return o.registrySvc.SubmitTransaction(ctx, tx)
}

func (o *orchestrator) awaitCommitment(
	ctx context.Context, plan *domain.RoutingPlan, step *domain.Step,
) error {
	tx := plan.TransactionAt(step.TxSlot)
	if tx == nil {
		return permanent(fmt.Errorf("no signed transaction in slot %d", step.TxSlot))
	}

	status, err := o.registrySvc.GetTransactionStatus(ctx, tx.ID())
	if err != nil {
		return err
	}

	switch s := status.(type) {
	case registry.StatusCommitted:
		return nil
	case registry.StatusPending, registry.StatusUnknown:
		return ErrStillProcessing
	case registry.StatusFailed:
		return registryRejectedError{message: s.Message}
	}
	return permanent(fmt.Errorf("unhandled transaction status %T", status))
}

// finalizeSplit spends the source and frees the remainder parts. Parts
// destined to a claim or transfer later in the plan keep their Registering
// state and their lock until their own transaction settles.
func (o *orchestrator) finalizeSplit(ctx context.Context, step *domain.Step) error {
	if err := o.markSliceSpent(ctx, step.SourceSliceID, (*domain.Slice).MarkSliced); err != nil {
		return err
	}
	for _, part := range step.Parts {
		if part.Role != domain.PartRoleRemainder {
			continue
		}
		if err := o.releaseSliceIfHeld(ctx, part.SliceID); err != nil {
			return err
		}
	}
	return nil
}

func (o *orchestrator) registerClaim(
	ctx context.Context, plan *domain.RoutingPlan, step *domain.Step,
) error {
	sliceRepo := o.repoManager.SliceRepository()

	claim, err := o.repoManager.ClaimRepository().GetClaim(ctx, step.ClaimID)
	if err != nil {
		return err
	}
	slice, err := sliceRepo.GetSlice(ctx, step.SliceID)
	if err != nil {
		return err
	}

	counterpartID := claim.ConsumptionSliceID
	if step.SliceID == claim.ConsumptionSliceID {
		counterpartID = claim.ProductionSliceID
	}
	counterpart, err := sliceRepo.GetSlice(ctx, counterpartID)
	if err != nil {
		return err
	}

	endpoint, err := o.repoManager.EndpointRepository().GetEndpoint(ctx, slice.EndpointID)
	if err != nil {
		return err
	}

	if err := o.bringToRegistering(ctx, slice.ID, plan.ID); err != nil {
		return err
	}

	streamID := domain.StreamID(slice.Registry, slice.CertificateID)
	c, err := commitment.Commit(o.params, slice.Quantity, slice.RandomR)
	if err != nil {
		return permanent(err)
	}

	event := claimedEvent{
		ClaimID:             claim.ID,
		Commitment:          c,
		CounterpartStreamID: domain.StreamID(counterpart.Registry, counterpart.CertificateID),
	}
	tx, err := o.signTransaction(slice, endpoint, registry.EventClaimed, streamID, event)
	if err != nil {
		return err
	}
	plan.SetTransaction(step.TxSlot, tx)
	return nil
}

func (o *orchestrator) finalizeClaim(ctx context.Context, step *domain.Step) error {
	for _, sliceID := range []uuid.UUID{step.ProductionSliceID, step.ConsumptionSliceID} {
		if err := o.markSliceSpent(ctx, sliceID, (*domain.Slice).MarkClaimed); err != nil {
			return err
		}
	}
	return o.repoManager.ClaimRepository().UpdateClaim(
		ctx, step.ClaimID,
		func(c *domain.Claim) (*domain.Claim, error) {
			if _, err := c.Confirm(); err != nil {
				return nil, permanent(err)
			}
			return c, nil
		},
	)
}

func (o *orchestrator) registerTransfer(
	ctx context.Context, plan *domain.RoutingPlan, step *domain.Step,
) error {
	sliceRepo := o.repoManager.SliceRepository()
	endpointRepo := o.repoManager.EndpointRepository()

	slice, err := sliceRepo.GetSlice(ctx, step.SliceID)
	if err != nil {
		return err
	}
	endpoint, err := endpointRepo.GetEndpoint(ctx, slice.EndpointID)
	if err != nil {
		return err
	}
	receiver, err := endpointRepo.GetEndpoint(ctx, step.ReceiverEndpointID)
	if err != nil {
		return err
	}

	position, err := endpointRepo.NextPosition(ctx, receiver.ID)
	if err != nil {
		return err
	}
	// Remembered for the finalize step, which rebuilds the deposit
	// notification from the receiver's one-time key.
	step.ReceiverPosition = position

	receiverKey, err := keyring.OneTimePublicKey(receiver.PublicKey, position)
	if err != nil {
		return permanent(err)
	}

	if err := o.bringToRegistering(ctx, slice.ID, plan.ID); err != nil {
		return err
	}

	streamID := domain.StreamID(slice.Registry, slice.CertificateID)
	c, err := commitment.Commit(o.params, slice.Quantity, slice.RandomR)
	if err != nil {
		return permanent(err)
	}

	event := transferredEvent{Commitment: c, NewPublicKey: receiverKey}
	tx, err := o.signTransaction(slice, endpoint, registry.EventTransferred, streamID, event)
	if err != nil {
		return err
	}
	plan.SetTransaction(step.TxSlot, tx)
	return nil
}

func (o *orchestrator) finalizeTransfer(
	ctx context.Context, plan *domain.RoutingPlan, step *domain.Step,
) error {
	sliceRepo := o.repoManager.SliceRepository()

	slice, err := sliceRepo.GetSlice(ctx, step.SliceID)
	if err != nil {
		return err
	}
	receiver, err := o.repoManager.EndpointRepository().GetEndpoint(ctx, step.ReceiverEndpointID)
	if err != nil {
		return err
	}
	receiverKey, err := keyring.OneTimePublicKey(receiver.PublicKey, step.ReceiverPosition)
	if err != nil {
		return permanent(err)
	}

	if err := o.markSliceSpent(ctx, slice.ID, (*domain.Slice).MarkTransferred); err != nil {
		return err
	}

	c, err := commitment.Commit(o.params, slice.Quantity, slice.RandomR)
	if err != nil {
		return permanent(err)
	}
	notification := DepositNotification{
		PublicKey:      receiverKey,
		Position:       step.ReceiverPosition,
		Registry:       slice.Registry,
		CertificateID:  slice.CertificateID,
		Quantity:       slice.Quantity,
		BlindingFactor: slice.RandomR,
		Commitment:     c,
	}

	certRepo := o.repoManager.CertificateRepository()
	cert, err := certRepo.GetCertificate(ctx, slice.Registry, slice.CertificateID)
	if err == nil {
		notification.Certificate = certificateInfo(cert)
	} else if !errors.Is(err, domain.ErrCertificateNotFound) {
		return err
	}

	if len(step.Disclose) > 0 {
		attrs, err := certRepo.GetWalletAttributes(
			ctx, slice.Owner, slice.Registry, slice.CertificateID,
		)
		if err != nil {
			return err
		}
		for _, attr := range attrs {
			for _, key := range step.Disclose {
				if attr.Key != key {
					continue
				}
				notification.Attributes = append(notification.Attributes, DisclosedAttribute{
					Key:   attr.Key,
					Value: attr.Value,
					Salt:  attr.Salt,
				})
			}
		}
	}

	payload, err := json.Marshal(NotifyReceiverPayload{
		EndpointID:   receiver.ID,
		Notification: notification,
	})
	if err != nil {
		return permanent(err)
	}
	return o.repoManager.OutboxRepository().AddMessage(
		ctx, domain.NewOutboxMessage(domain.OutboxTypeNotifyReceiver, payload),
	)
}

func (o *orchestrator) signTransaction(
	slice *domain.Slice, endpoint *domain.Endpoint,
	eventType registry.EventType, streamID []byte, event interface{},
) (*registry.Transaction, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, permanent(err)
	}
	priv, err := o.keys.OneTimePrivateKey(endpoint.Account, slice.Position)
	if err != nil {
		return nil, permanent(err)
	}

	tx := &registry.Transaction{
		Registry:  slice.Registry,
		StreamID:  streamID,
		Type:      eventType,
		Payload:   payload,
		PublicKey: priv.PubKey().SerializeCompressed(),
	}
	tx.Signature = o.keys.Sign(priv, tx.SigningPayload())
	return tx, nil
}

func (o *orchestrator) bringToRegistering(
	ctx context.Context, sliceID, planID uuid.UUID,
) error {
	return o.repoManager.SliceRepository().UpdateSlice(
		ctx, sliceID,
		func(s *domain.Slice) (*domain.Slice, error) {
			if _, err := s.Register(planID); err != nil {
				return nil, permanent(err)
			}
			return s, nil
		},
	)
}

func (o *orchestrator) markSliceSpent(
	ctx context.Context, sliceID uuid.UUID,
	transition func(*domain.Slice) (bool, error),
) error {
	return o.repoManager.SliceRepository().UpdateSlice(
		ctx, sliceID,
		func(s *domain.Slice) (*domain.Slice, error) {
			if _, err := transition(s); err != nil {
				return nil, permanent(err)
			}
			return s, nil
		},
	)
}

func (o *orchestrator) releaseSliceIfHeld(ctx context.Context, sliceID uuid.UUID) error {
	err := o.repoManager.SliceRepository().UpdateSlice(
		ctx, sliceID,
		func(s *domain.Slice) (*domain.Slice, error) {
			if s.State != domain.SliceStateReserved &&
				s.State != domain.SliceStateRegistering {
				return s, nil
			}
			if _, err := s.Release(); err != nil {
				return nil, err
			}
			return s, nil
		},
	)
	if errors.Is(err, domain.ErrSliceNotFound) {
		return nil
	}
	return err
}

// handleFailure decides what a failed step means for the plan: a registry
// rejection starts compensation, a permanent error faults the plan, and
// anything transient suspends it with a delayed resume message, counting
// attempts against the configured cap.
func (o *orchestrator) handleFailure(
	ctx context.Context, planID uuid.UUID, stepErr error,
) (bool, error) {
	var rejected registryRejectedError
	if errors.As(stepErr, &rejected) {
		log.WithError(stepErr).Warnf("routing plan %s: starting compensation", planID)
		_, err := o.repoManager.RunTransaction(
			ctx, false,
			func(ctx context.Context) (interface{}, error) {
				return nil, o.repoManager.RoutingPlanRepository().UpdateRoutingPlan(
					ctx, planID,
					func(plan *domain.RoutingPlan) (*domain.RoutingPlan, error) {
						plan.BeginCompensation(stepErr.Error())
						return plan, nil
					},
				)
			},
		)
		return false, err
	}

	if !IsTransient(stepErr) {
		log.WithError(stepErr).Errorf("routing plan %s: faulted", planID)
		_, err := o.repoManager.RunTransaction(
			ctx, false,
			func(ctx context.Context) (interface{}, error) {
				return nil, o.repoManager.RoutingPlanRepository().UpdateRoutingPlan(
					ctx, planID,
					func(plan *domain.RoutingPlan) (*domain.RoutingPlan, error) {
						plan.Fault(stepErr.Error())
						return plan, nil
					},
				)
			},
		)
		return true, err
	}

	if !errors.Is(stepErr, ErrStillProcessing) {
		log.WithError(stepErr).Debugf("routing plan %s: suspending", planID)
	}

	_, err := o.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			return nil, o.repoManager.RoutingPlanRepository().UpdateRoutingPlan(
				ctx, planID,
				func(plan *domain.RoutingPlan) (*domain.RoutingPlan, error) {
					if plan.RecordAttempt() >= o.maxAttempts {
						plan.Fault(fmt.Sprintf("too many attempts: %v", stepErr))
						return plan, nil
					}

					payload, err := json.Marshal(ResumeRoutingPlanPayload{PlanID: planID})
					if err != nil {
						return nil, err
					}
					if err := o.repoManager.OutboxRepository().AddMessage(
						ctx, domain.NewDelayedOutboxMessage(
							domain.OutboxTypeResumeRoutingPlan, payload, o.retryDelay,
						),
					); err != nil {
						return nil, err
					}
					return plan, nil
				},
			)
		},
	)
	return true, err
}

// compensate unwinds a rejected plan in one local transaction: claims are
// rejected, reservations released, and part slices that never reached the
// registry removed. Splits the registry already committed stay committed;
// their claim-bound parts simply return to Available.
func (o *orchestrator) compensate(ctx context.Context, planID uuid.UUID) error {
	_, err := o.repoManager.RunTransaction(
		ctx, false,
		func(ctx context.Context) (interface{}, error) {
			return nil, o.repoManager.RoutingPlanRepository().UpdateRoutingPlan(
				ctx, planID,
				func(plan *domain.RoutingPlan) (*domain.RoutingPlan, error) {
					if plan.State != domain.RoutingPlanStateCompensating {
						return plan, nil
					}
					if err := o.unwind(ctx, plan); err != nil {
						return nil, err
					}
					plan.CompleteCompensation()
					log.Infof("routing plan %s: compensated", planID)
					return plan, nil
				},
			)
		},
	)
	return err
}

func (o *orchestrator) unwind(ctx context.Context, plan *domain.RoutingPlan) error {
	committedSlot := func(slot int) bool {
		for i, step := range plan.Steps {
			if step.Kind == domain.StepAwaitCommitment && step.TxSlot == slot {
				return i < plan.Cursor
			}
		}
		return false
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]
		executed := i < plan.Cursor

		switch step.Kind {
		case domain.StepRegisterSplit:
			if !executed {
				if err := o.releaseSliceIfHeld(ctx, step.SourceSliceID); err != nil {
					return err
				}
				continue
			}
			if committedSlot(step.TxSlot) {
				// The split is final on the registry: spend the source and
				// free every part for future commands.
				if err := o.finalizeSplit(ctx, step); err != nil {
					return err
				}
				for _, part := range step.Parts {
					if err := o.releaseSliceIfHeld(ctx, part.SliceID); err != nil {
						return err
					}
				}
				continue
			}
			// The split never committed: the part rows are local-only.
			partIDs := make([]uuid.UUID, 0, len(step.Parts))
			for _, part := range step.Parts {
				partIDs = append(partIDs, part.SliceID)
			}
			if err := o.repoManager.SliceRepository().RemoveSlices(ctx, partIDs); err != nil {
				return err
			}
			if err := o.releaseSliceIfHeld(ctx, step.SourceSliceID); err != nil {
				return err
			}

		case domain.StepRegisterClaim:
			if err := o.releaseSliceIfHeld(ctx, step.SliceID); err != nil {
				return err
			}

		case domain.StepFinalizeClaim:
			if err := o.rejectClaimIfCreated(ctx, step.ClaimID); err != nil {
				return err
			}

		case domain.StepRegisterTransfer:
			if executed && committedSlot(step.TxSlot) {
				// The registry moved the slice: deliver it regardless of the
				// rejection that sank the rest of the plan.
				if err := o.finalizeTransfer(ctx, plan, step); err != nil {
					return err
				}
				continue
			}
			if err := o.releaseSliceIfHeld(ctx, step.SliceID); err != nil {
				return err
			}

		case domain.StepReleaseRemainder:
			if err := o.releaseSliceIfHeld(ctx, step.SliceID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *orchestrator) rejectClaimIfCreated(ctx context.Context, claimID uuid.UUID) error {
	err := o.repoManager.ClaimRepository().UpdateClaim(
		ctx, claimID,
		func(c *domain.Claim) (*domain.Claim, error) {
			if c.State != domain.ClaimStateCreated {
				return c, nil
			}
			if _, err := c.Reject(); err != nil {
				return nil, err
			}
			return c, nil
		},
	)
	if errors.Is(err, domain.ErrClaimNotFound) {
		return nil
	}
	return err
}

func certificateInfo(cert *domain.Certificate) *CertificateInfo {
	info := &CertificateInfo{
		Start:    cert.Start,
		End:      cert.End,
		GridArea: cert.GridArea,
		Type:     cert.Type,
	}
	for _, attr := range cert.Attributes {
		info.Attributes = append(info.Attributes, AttributeInfo{
			Key:    attr.Key,
			Value:  attr.Value,
			Hashed: attr.Hashed,
		})
	}
	return info
}
