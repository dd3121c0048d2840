package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/gcert-network/gcert-daemon/pkg/registry"
)

// StepKind discriminates the kinds of routing plan steps. The plan is a
// statically built list of step descriptors interpreted by a single
// executor; there is no runtime activity registration.
type StepKind int

const (
	// StepRegisterSplit persists the new part slices in Registering state,
	// brings the source to Registering and signs the split transaction,
	// all in one local transaction.
	StepRegisterSplit StepKind = iota
	// StepSubmitTransaction submits a previously signed transaction to the
	// registry. Safe to re-execute thanks to content-hashed ids.
	StepSubmitTransaction
	// StepAwaitCommitment polls the registry for the transaction status.
	// A pending status suspends the plan rather than blocking it.
	StepAwaitCommitment
	// StepFinalizeSplit brings the source to Sliced and the parts to their
	// post-split states after the registry committed.
	StepFinalizeSplit
	// StepRegisterClaim signs the claim transaction for one slice and
	// brings it to Registering.
	StepRegisterClaim
	// StepFinalizeClaim brings both slices to Claimed and the claim to
	// Claimed after both registry transactions committed.
	StepFinalizeClaim
	// StepRegisterTransfer signs the transfer transaction addressing the
	// receiver's next one-time key and brings the source to Registering.
	StepRegisterTransfer
	// StepFinalizeTransfer brings the source to Transferred and enqueues
	// the receiver notification through the outbox.
	StepFinalizeTransfer
	// StepReleaseRemainder returns an unused reserved slice to Available.
	// Local only, no registry interaction.
	StepReleaseRemainder
)

const (
	// PartRoleClaim marks a split part that stays reserved for a claim
	// step later in the same plan.
	PartRoleClaim = iota
	// PartRoleRemainder marks a split part that becomes Available as soon
	// as the split is finalized.
	PartRoleRemainder
	// PartRoleTransfer marks a split part that a transfer step will move
	// to the receiving endpoint.
	PartRoleTransfer
)

// PlannedPart is a slice that a split step will mint, with the id assigned
// up front by the reconciler.
type PlannedPart struct {
	SliceID  uuid.UUID
	Quantity uint64
	Role     int
}

// Step is one durable step of a routing plan. The Kind field selects which
// of the remaining fields are meaningful; the whole descriptor must
// round-trip through the store, which is why it is a flat tagged struct
// rather than an interface.
type Step struct {
	Kind               StepKind
	SourceSliceID      uuid.UUID
	Parts              []PlannedPart
	ClaimID            uuid.UUID
	ProductionSliceID  uuid.UUID
	ConsumptionSliceID uuid.UUID
	SliceID            uuid.UUID
	Quantity           uint64
	ReceiverEndpointID uuid.UUID
	ReceiverPosition   uint32
	Disclose           []string
	TxSlot             int
}

// RoutingPlan is the saga executing one claim or transfer command: an
// ordered, resumable sequence of durable steps. Within one plan steps run
// strictly in sequence; across plans there is no ordering and the
// reservation locks are the only protection against races.
type RoutingPlan struct {
	ID             uuid.UUID
	Owner          string
	State          int
	Cursor         int
	Attempts       int
	Steps          []Step
	Transactions   []*registry.Transaction
	FailureMessage string
	CreatedAt      int64
}

// NewRoutingPlan returns an empty plan in Building state.
func NewRoutingPlan(owner string) *RoutingPlan {
	return &RoutingPlan{
		ID:        uuid.New(),
		Owner:     owner,
		State:     RoutingPlanStateBuilding,
		CreatedAt: time.Now().UnixNano(),
	}
}

// AppendStep adds a step while the plan is being built.
func (p *RoutingPlan) AppendStep(step Step) {
	p.Steps = append(p.Steps, step)
}

// AllocateTxSlot reserves a slot for a transaction that a register step
// will sign later, and returns its index.
func (p *RoutingPlan) AllocateTxSlot() int {
	p.Transactions = append(p.Transactions, nil)
	return len(p.Transactions) - 1
}

// SetTransaction stores the signed transaction for the given slot.
func (p *RoutingPlan) SetTransaction(slot int, tx *registry.Transaction) {
	p.Transactions[slot] = tx
}

// TransactionAt returns the signed transaction at the given slot, or nil.
func (p *RoutingPlan) TransactionAt(slot int) *registry.Transaction {
	if slot < 0 || slot >= len(p.Transactions) {
		return nil
	}
	return p.Transactions[slot]
}

// Start brings the plan from Building to Executing.
func (p *RoutingPlan) Start() (bool, error) {
	if p.State == RoutingPlanStateExecuting {
		return true, nil
	}
	if p.State != RoutingPlanStateBuilding {
		return false, ErrRoutingPlanNotExecuting
	}
	p.State = RoutingPlanStateExecuting
	return true, nil
}

// CurrentStep returns the step the cursor points at, if any.
func (p *RoutingPlan) CurrentStep() (*Step, bool) {
	if p.Cursor < 0 || p.Cursor >= len(p.Steps) {
		return nil, false
	}
	return &p.Steps[p.Cursor], true
}

// Advance moves the cursor past the current step and resets the attempt
// counter. When the last step completes the plan becomes Completed.
func (p *RoutingPlan) Advance() {
	p.Cursor++
	p.Attempts = 0
	if p.Cursor >= len(p.Steps) && p.State == RoutingPlanStateExecuting {
		p.State = RoutingPlanStateCompleted
	}
}

// RecordAttempt counts a transient failure of the current step and returns
// the number of attempts so far.
func (p *RoutingPlan) RecordAttempt() int {
	p.Attempts++
	return p.Attempts
}

// BeginCompensation moves the plan to Compensating, remembering why.
func (p *RoutingPlan) BeginCompensation(message string) {
	p.State = RoutingPlanStateCompensating
	p.FailureMessage = message
}

// CompleteCompensation moves the plan to its terminal Compensated state.
func (p *RoutingPlan) CompleteCompensation() {
	p.State = RoutingPlanStateCompensated
}

// Fault moves the plan to the terminal Faulted state. Reserved for
// invariant violations and exhausted retries.
func (p *RoutingPlan) Fault(message string) {
	p.State = RoutingPlanStateFaulted
	p.FailureMessage = message
}

// IsDone returns whether the plan reached a terminal state.
func (p *RoutingPlan) IsDone() bool {
	return p.State == RoutingPlanStateCompleted ||
		p.State == RoutingPlanStateCompensated ||
		p.State == RoutingPlanStateFaulted
}
