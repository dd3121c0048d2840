package domain

const (
	// SliceStateReceivedPending is the state of a slice deposited by a
	// counterparty and not yet verified against its commitment.
	SliceStateReceivedPending = iota
	// SliceStateAvailable is the state of a settled slice that can be
	// reserved for a claim or transfer.
	SliceStateAvailable
	// SliceStateReserved is the state of a slice locked by an in-flight
	// routing plan. It only exists for the duration of one attempt and is
	// never a terminal state.
	SliceStateReserved
	// SliceStateRegistering is the state of a slice whose ownership
	// transition has been signed and possibly submitted to the registry but
	// not yet committed.
	SliceStateRegistering
	// SliceStateSliced is the terminal state of a slice that has been split
	// into smaller slices.
	SliceStateSliced
	// SliceStateClaimed is the terminal state of a slice retired by a claim.
	SliceStateClaimed
	// SliceStateTransferred is the terminal state of a slice moved to
	// another endpoint.
	SliceStateTransferred
)

const (
	// ClaimStateCreated ...
	ClaimStateCreated = iota
	// ClaimStateClaimed ...
	ClaimStateClaimed
	// ClaimStateRejected ...
	ClaimStateRejected
)

const (
	// CertificateTypeProduction ...
	CertificateTypeProduction = iota
	// CertificateTypeConsumption ...
	CertificateTypeConsumption
)

const (
	// EndpointKindWallet is an endpoint whose keys are derived from this
	// wallet's HD master key.
	EndpointKindWallet = iota
	// EndpointKindExternal is a counterparty endpoint known only by its
	// public key root and its notification URL.
	EndpointKindExternal
)

const (
	// RoutingPlanStateBuilding ...
	RoutingPlanStateBuilding = iota
	// RoutingPlanStateExecuting ...
	RoutingPlanStateExecuting
	// RoutingPlanStateCompleted ...
	RoutingPlanStateCompleted
	// RoutingPlanStateCompensating ...
	RoutingPlanStateCompensating
	// RoutingPlanStateCompensated ...
	RoutingPlanStateCompensated
	// RoutingPlanStateFaulted ...
	RoutingPlanStateFaulted
)
