package domain

import "errors"

var (
	// ErrInsufficientQuantity is thrown when the owner's settled quantity
	// for a certificate cannot cover the requested one. Permanent, the
	// triggering command must not be retried.
	ErrInsufficientQuantity = errors.New("insufficient quantity available for certificate")
	// ErrQuantityNotYetAvailable is thrown when enough quantity exists but
	// part of it is still awaiting registry confirmation. Transient, the
	// triggering command should be redelivered later.
	ErrQuantityNotYetAvailable = errors.New("quantity not yet available to reserve")
	// ErrCertificateNotFound ...
	ErrCertificateNotFound = errors.New("certificate not found")
	// ErrCertificateWithdrawn ...
	ErrCertificateWithdrawn = errors.New("certificate has been withdrawn")
	// ErrSliceNotFound ...
	ErrSliceNotFound = errors.New("slice not found")
	// ErrSliceNotAvailable is thrown when trying to reserve a slice that is
	// not in the Available state.
	ErrSliceNotAvailable = errors.New("slice is not available")
	// ErrSliceNotReserved is thrown when a state transition requires the
	// slice to be reserved by the acting routing plan.
	ErrSliceNotReserved = errors.New("slice is not reserved")
	// ErrSliceNotRegistering is thrown when finalizing or compensating a
	// slice that never reached the Registering state.
	ErrSliceNotRegistering = errors.New("slice is not registering")
	// ErrSliceReservedByOther is thrown when a routing plan tries to act on
	// a slice locked by a different plan.
	ErrSliceReservedByOther = errors.New("slice is reserved by another routing plan")
	// ErrSliceNotPendingVerification ...
	ErrSliceNotPendingVerification = errors.New("slice is not pending verification")
	// ErrPositionAlreadyTaken is thrown when inserting a slice at an
	// (endpoint, position) pair that is already in use. Positions are never
	// reused.
	ErrPositionAlreadyTaken = errors.New("endpoint position is already taken")
	// ErrClaimNotFound ...
	ErrClaimNotFound = errors.New("claim not found")
	// ErrClaimNotCreated is thrown when confirming or rejecting a claim
	// that is already in a terminal state different from the target one.
	ErrClaimNotCreated = errors.New("claim is not in created state")
	// ErrEndpointNotFound ...
	ErrEndpointNotFound = errors.New("endpoint not found")
	// ErrRoutingPlanNotFound ...
	ErrRoutingPlanNotFound = errors.New("routing plan not found")
	// ErrRoutingPlanNotExecuting ...
	ErrRoutingPlanNotExecuting = errors.New("routing plan is not executing")
)
