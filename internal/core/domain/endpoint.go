package domain

import "github.com/google/uuid"

// Endpoint is a deposit target for slices: either one of this wallet's own
// HD accounts or a registered counterparty. Each endpoint owns a private,
// append-only counter of the next derivation position; positions are
// allocated strictly serially and never reused, since they derive one-time
// keys.
type Endpoint struct {
	ID           uuid.UUID
	Owner        string
	Kind         int
	Account      uint32
	PublicKey    string
	RemoteURL    string
	Secret       string
	NextPosition uint32
}

// NewWalletEndpoint returns an endpoint backed by the wallet's HD account.
func NewWalletEndpoint(owner string, account uint32, publicKey string) *Endpoint {
	return &Endpoint{
		ID:        uuid.New(),
		Owner:     owner,
		Kind:      EndpointKindWallet,
		Account:   account,
		PublicKey: publicKey,
	}
}

// NewExternalEndpoint returns a counterparty endpoint reachable at the
// given notification URL and authenticated with the shared secret.
func NewExternalEndpoint(reference, publicKey, remoteURL, secret string) *Endpoint {
	return &Endpoint{
		ID:        uuid.New(),
		Owner:     reference,
		Kind:      EndpointKindExternal,
		PublicKey: publicKey,
		RemoteURL: remoteURL,
		Secret:    secret,
	}
}

// IsRemote returns whether deposits to this endpoint must be notified to a
// counterparty wallet.
func (e *Endpoint) IsRemote() bool {
	return e.Kind == EndpointKindExternal
}
