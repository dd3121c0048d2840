package domain

import "context"

// CertificateRepository is the storage contract for certificates and the
// selectively disclosed attributes of hashed certificate attributes. All
// mutating methods run inside the transaction carried by the context; the
// repository never commits on its own.
type CertificateRepository interface {
	// InsertCertificate stores the certificate if no certificate exists
	// yet for its (registry, id) pair, otherwise it is a no-op.
	InsertCertificate(ctx context.Context, certificate *Certificate) error
	// GetCertificate returns the certificate for the given stream
	// coordinates, or ErrCertificateNotFound.
	GetCertificate(ctx context.Context, registry, certificateID string) (*Certificate, error)
	// UpdateCertificate applies updateFn to the stored certificate.
	UpdateCertificate(
		ctx context.Context, registry, certificateID string,
		updateFn func(*Certificate) (*Certificate, error),
	) error
	// InsertWalletAttribute stores a disclosed attribute value.
	InsertWalletAttribute(ctx context.Context, attribute WalletAttribute) error
	// GetWalletAttributes lists the attributes disclosed to the owner for
	// the given certificate.
	GetWalletAttributes(
		ctx context.Context, owner, registry, certificateID string,
	) ([]WalletAttribute, error)
}
