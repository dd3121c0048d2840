package application

import (
	"errors"
	"fmt"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

var (
	// ErrStillProcessing suspends a routing plan waiting for the registry to
	// commit a transaction. It is transient and the plan is resumed through
	// the outbox.
	ErrStillProcessing = errors.New("registry transaction is still processing")
	// ErrIncompletePlan means the reconciled operations do not cover the
	// requested quantity. The reservation guarantees enough quantity, so
	// hitting this is a programming error.
	ErrIncompletePlan = errors.New("operations do not cover the requested quantity")
	// ErrNullQuantity is returned for zero-quantity commands.
	ErrNullQuantity = errors.New("quantity must be positive")
	// ErrNotProductionCertificate is returned when claiming against a
	// certificate that is not a production certificate.
	ErrNotProductionCertificate = errors.New("certificate is not a production certificate")
	// ErrNotConsumptionCertificate is returned when claiming against a
	// certificate that is not a consumption certificate.
	ErrNotConsumptionCertificate = errors.New("certificate is not a consumption certificate")
	// ErrNotWalletEndpoint is returned when depositing to an endpoint not
	// backed by one of this wallet's HD accounts.
	ErrNotWalletEndpoint = errors.New("endpoint is not a wallet endpoint")
	// ErrInvalidDeposit is returned when a received slice does not open the
	// commitment it claims to.
	ErrInvalidDeposit = errors.New("deposit does not open its commitment")
)

// permanentError marks an error that retrying cannot fix, typically an
// invariant violation. The orchestrator faults the plan instead of
// rescheduling it.
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

// registryRejectedError carries the registry's reason for rejecting a
// transaction and triggers the compensation path.
type registryRejectedError struct {
	message string
}

func (e registryRejectedError) Error() string {
	return fmt.Sprintf("registry rejected transaction: %s", e.message)
}

var permanentErrors = []error{
	domain.ErrInsufficientQuantity,
	domain.ErrCertificateNotFound,
	domain.ErrCertificateWithdrawn,
	domain.ErrEndpointNotFound,
	domain.ErrPositionAlreadyTaken,
	ErrIncompletePlan,
	ErrNullQuantity,
	ErrNotProductionCertificate,
	ErrNotConsumptionCertificate,
	ErrNotWalletEndpoint,
	ErrInvalidDeposit,
}

// IsTransient reports whether the caller should redeliver the failed
// command. Validation and invariant errors are permanent; everything else,
// including storage commit conflicts and registry connectivity errors, is
// worth retrying.
func IsTransient(err error) bool {
	var pe permanentError
	if errors.As(err, &pe) {
		return false
	}
	var re registryRejectedError
	if errors.As(err, &re) {
		return false
	}
	for _, known := range permanentErrors {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}
