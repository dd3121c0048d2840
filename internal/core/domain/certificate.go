package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Attribute is an immutable certificate attribute. Hashed attributes carry
// only a salted digest on the public stream; the clear value is disclosed
// selectively through WalletAttribute rows.
type Attribute struct {
	Key    string
	Value  string
	Hashed bool
}

// Certificate is the immutable projection of a registry certificate stream.
// It is created on the first slice deposited for the stream and never
// mutated afterwards, except for the withdrawn flag.
type Certificate struct {
	Registry   string
	ID         string
	Start      int64
	End        int64
	GridArea   string
	Type       int
	Attributes []Attribute
	Withdrawn  bool
}

// NewCertificate returns a certificate for the given stream coordinates.
func NewCertificate(
	registry, id string, start, end int64, gridArea string, certType int,
	attributes []Attribute,
) *Certificate {
	return &Certificate{
		Registry:   registry,
		ID:         id,
		Start:      start,
		End:        end,
		GridArea:   gridArea,
		Type:       certType,
		Attributes: attributes,
	}
}

// StreamID returns the 32-byte identifier of the certificate stream,
// binding cryptographic proofs to this certificate.
func (c *Certificate) StreamID() []byte {
	return StreamID(c.Registry, c.ID)
}

// Withdraw marks the certificate as withdrawn by its issuer.
func (c *Certificate) Withdraw() {
	c.Withdrawn = true
}

// IsProduction returns whether the certificate is a production certificate.
func (c *Certificate) IsProduction() bool {
	return c.Type == CertificateTypeProduction
}

// IsConsumption returns whether the certificate is a consumption certificate.
func (c *Certificate) IsConsumption() bool {
	return c.Type == CertificateTypeConsumption
}

// StreamID computes the stream identifier for a (registry, certificate id)
// pair without loading the certificate.
func StreamID(registry, certificateID string) []byte {
	return chainhash.HashB([]byte(fmt.Sprintf("%s/%s", registry, certificateID)))
}

// WalletAttribute stores the clear value and salt of a hashed certificate
// attribute, keyed by the owner it was disclosed to.
type WalletAttribute struct {
	Owner         string
	Registry      string
	CertificateID string
	Key           string
	Value         string
	Salt          []byte
}
