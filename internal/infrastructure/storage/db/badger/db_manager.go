package dbbadger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"
	"github.com/timshannon/badgerhold/v4"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/internal/core/ports"
)

// DbManager is the badger storage backend. A single badgerhold store holds
// every aggregate; badger's serializable snapshot isolation turns concurrent
// writes to the same slice into commit conflicts, which callers treat as
// transient and retry.
type DbManager struct {
	store *badgerhold.Store

	certificateRepository domain.CertificateRepository
	sliceRepository       domain.SliceRepository
	claimRepository       domain.ClaimRepository
	endpointRepository    domain.EndpointRepository
	outboxRepository      domain.OutboxRepository
	routingPlanRepository domain.RoutingPlanRepository
}

// NewDbManager opens (or creates if not exists) the badger store on disk.
// It expects a base data dir and an optional logger.
func NewDbManager(baseDbDir string, logger badger.Logger) (*DbManager, error) {
	store, err := createDb(fmt.Sprintf("%s/wallet", baseDbDir), logger)
	if err != nil {
		return nil, fmt.Errorf("opening wallet db: %w", err)
	}

	d := &DbManager{store: store}
	d.certificateRepository = newCertificateRepositoryImpl(d)
	d.sliceRepository = newSliceRepositoryImpl(d)
	d.claimRepository = newClaimRepositoryImpl(d)
	d.endpointRepository = newEndpointRepositoryImpl(d)
	d.outboxRepository = newOutboxRepositoryImpl(d)
	d.routingPlanRepository = newRoutingPlanRepositoryImpl(d)
	return d, nil
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

func (d *DbManager) Close() {
	d.store.Close()
}

// NewTransaction implements the DbManager interface.
func (d *DbManager) NewTransaction() ports.Transaction {
	return d.store.Badger().NewTransaction(true)
}

// RunTransaction runs the handler in a badger transaction injected in the
// context under the "tx" key, where the repositories pick it up. A commit
// conflict surfaces as badger.ErrConflict and is safe to retry.
func (d *DbManager) RunTransaction(
	ctx context.Context, readOnly bool,
	handler func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	tx := d.store.Badger().NewTransaction(!readOnly)
	defer tx.Discard()

	res, err := handler(context.WithValue(ctx, "tx", tx))
	if err != nil {
		return nil, err
	}

	if !readOnly {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (d *DbManager) getTx(ctx context.Context) *badger.Txn {
	if v := ctx.Value("tx"); v != nil {
		return v.(*badger.Txn)
	}
	return nil
}

// JSONEncode is a custom JSON based encoder for badger.
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)
	if err := en.Encode(value); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger.
func JSONDecode(data []byte, value interface{}) error {
	de := json.NewDecoder(bytes.NewReader(data))
	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	return badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
