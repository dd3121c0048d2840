package inmemory

import (
	"context"
	"sync"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/internal/core/ports"
)

// DbManager is the in-memory storage backend. Transactions are serialized
// with one big lock, which gives the same isolation the badger backend gets
// from serializable snapshot isolation, minus rollback: a failed handler
// may leave partial writes behind. Good enough for tests and dry runs.
type DbManager struct {
	mtx sync.Mutex

	certificateRepository *certificateRepository
	sliceRepository       *sliceRepository
	claimRepository       *claimRepository
	endpointRepository    *endpointRepository
	outboxRepository      *outboxRepository
	routingPlanRepository *routingPlanRepository
}

// NewDbManager returns an empty in-memory backend.
func NewDbManager() *DbManager {
	return &DbManager{
		certificateRepository: newCertificateRepository(),
		sliceRepository:       newSliceRepository(),
		claimRepository:       newClaimRepository(),
		endpointRepository:    newEndpointRepository(),
		outboxRepository:      newOutboxRepository(),
		routingPlanRepository: newRoutingPlanRepository(),
	}
}

func (d *DbManager) CertificateRepository() domain.CertificateRepository {
	return d.certificateRepository
}

func (d *DbManager) SliceRepository() domain.SliceRepository {
	return d.sliceRepository
}

func (d *DbManager) ClaimRepository() domain.ClaimRepository {
	return d.claimRepository
}

func (d *DbManager) EndpointRepository() domain.EndpointRepository {
	return d.endpointRepository
}

func (d *DbManager) OutboxRepository() domain.OutboxRepository {
	return d.outboxRepository
}

func (d *DbManager) RoutingPlanRepository() domain.RoutingPlanRepository {
	return d.routingPlanRepository
}

func (d *DbManager) Close() {}

func (d *DbManager) NewTransaction() ports.Transaction {
	return &transaction{}
}

func (d *DbManager) RunTransaction(
	ctx context.Context, readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return handler(ctx)
}

type transaction struct{}

func (t *transaction) Commit() error { return nil }
func (t *transaction) Discard()      {}
