package registry

import "context"

// TxStatus is the closed set of outcomes a transaction status lookup can
// produce. Handling code switches exhaustively over the concrete types
// instead of branching on errors.
type TxStatus interface {
	isTxStatus()
}

// StatusPending means the registry has the transaction but has not committed
// it yet. Callers should poll again later.
type StatusPending struct{}

// StatusCommitted means the registry committed the transaction; the
// ownership transition is final.
type StatusCommitted struct{}

// StatusFailed means the registry rejected the transaction. The message
// carries the registry's reason.
type StatusFailed struct {
	Message string
}

// StatusUnknown means the registry does not know the transaction id, either
// because the submission never arrived or because it is still propagating.
type StatusUnknown struct{}

func (StatusPending) isTxStatus()   {}
func (StatusCommitted) isTxStatus() {}
func (StatusFailed) isTxStatus()    {}
func (StatusUnknown) isTxStatus()   {}

// Service is the wire contract of the external certificate registry. The
// registry is the single source of truth for committed ownership
// transitions; both calls are idempotent since transactions are keyed by
// their content hash.
type Service interface {
	SubmitTransaction(ctx context.Context, tx *Transaction) error
	GetTransactionStatus(ctx context.Context, txID string) (TxStatus, error)
}
