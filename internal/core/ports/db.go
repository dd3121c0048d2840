package ports

import (
	"context"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

// DbManager gives access to the repositories and to the transactions they
// run in. Every saga step opens exactly one transaction through
// RunTransaction; repositories read the transaction from the context and
// never commit on their own.
type DbManager interface {
	CertificateRepository() domain.CertificateRepository
	SliceRepository() domain.SliceRepository
	ClaimRepository() domain.ClaimRepository
	EndpointRepository() domain.EndpointRepository
	OutboxRepository() domain.OutboxRepository
	RoutingPlanRepository() domain.RoutingPlanRepository

	Close()

	NewTransaction() Transaction
	// RunTransaction runs the handler inside a single transaction,
	// committing on success and discarding on error. A commit conflict
	// with a concurrent transaction is returned as-is and is safe to
	// retry.
	RunTransaction(
		ctx context.Context,
		readOnly bool,
		handler func(ctx context.Context) (interface{}, error),
	) (interface{}, error)
}

// Transaction interface defines the method to commit or discard a database transaction.
type Transaction interface {
	Commit() error
	Discard()
}
