package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/pkg/commitment"
)

// ClaimCertificateRequest asks the wallet to retire a quantity of a
// production certificate against the same quantity of a consumption
// certificate.
type ClaimCertificateRequest struct {
	Owner                    string
	Registry                 string
	ProductionCertificateID  string
	ConsumptionCertificateID string
	Quantity                 uint64
}

// TransferCertificateRequest asks the wallet to move a quantity of a
// certificate to a receiving endpoint, optionally disclosing the clear
// values of the named hashed attributes.
type TransferCertificateRequest struct {
	Owner              string
	Registry           string
	CertificateID      string
	Quantity           uint64
	ReceiverEndpointID uuid.UUID
	DiscloseAttributes []string
}

// CertificateInfo carries the immutable stream metadata a deposit
// notification needs so the receiving wallet can create the certificate
// projection on first contact.
type CertificateInfo struct {
	Start      int64           `json:"start"`
	End        int64           `json:"end"`
	GridArea   string          `json:"gridArea"`
	Type       int             `json:"type"`
	Attributes []AttributeInfo `json:"attributes,omitempty"`
}

// AttributeInfo is one certificate attribute on the wire.
type AttributeInfo struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Hashed bool   `json:"hashed"`
}

// DisclosedAttribute reveals the clear value and salt of a hashed
// certificate attribute to the receiving wallet.
type DisclosedAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Salt  []byte `json:"salt"`
}

// DepositNotification tells a receiving wallet that a slice was addressed
// to one of its one-time keys. It carries the commitment opening, so it must
// only ever travel over the endpoint's authenticated channel.
type DepositNotification struct {
	PublicKey      []byte               `json:"publicKey"`
	Position       uint32               `json:"position"`
	Registry       string               `json:"registry"`
	CertificateID  string               `json:"certificateId"`
	Quantity       uint64               `json:"quantity"`
	BlindingFactor []byte               `json:"blindingFactor"`
	Commitment     []byte               `json:"commitment"`
	Certificate    *CertificateInfo     `json:"certificate,omitempty"`
	Attributes     []DisclosedAttribute `json:"attributes,omitempty"`
}

// ReceiveSliceRequest deposits a slice notified by a counterparty, or by
// this wallet itself for internal transfers, into a wallet endpoint.
type ReceiveSliceRequest struct {
	EndpointID     uuid.UUID
	Position       uint32
	Registry       string
	CertificateID  string
	Quantity       uint64
	BlindingFactor []byte
	Commitment     []byte
	Certificate    *CertificateInfo
	Attributes     []DisclosedAttribute
}

// Balance aggregates the owner's quantity for one certificate by lifecycle
// stage. Total covers the three stages and excludes deposits still pending
// verification.
type Balance struct {
	Available uint64
	Reserved  uint64
	Settling  uint64
	Total     uint64
}

// SliceNotifier delivers a deposit notification to a receiving endpoint.
// Remote endpoints are notified over their webhook URL, wallet endpoints
// in-process.
type SliceNotifier interface {
	NotifySliceDeposited(
		ctx context.Context, endpoint *domain.Endpoint,
		notification DepositNotification,
	) error
}

// ResumeRoutingPlanPayload is the outbox payload resuming a suspended plan.
type ResumeRoutingPlanPayload struct {
	PlanID uuid.UUID `json:"planId"`
}

// NotifyReceiverPayload is the outbox payload delivering a deposit to its
// receiving endpoint.
type NotifyReceiverPayload struct {
	EndpointID   uuid.UUID           `json:"endpointId"`
	Notification DepositNotification `json:"notification"`
}

// slicedEvent is the registry payload of an EventSliced transaction. It
// carries only public material: the commitments, the equality proof showing
// the parts preserve the source quantity and one range proof per part.
type slicedEvent struct {
	SourceCommitment []byte            `json:"sourceCommitment"`
	Parts            []slicedEventPart `json:"parts"`
	EqualityNonce    []byte            `json:"equalityNonce"`
	EqualityResponse []byte            `json:"equalityResponse"`
}

type slicedEventPart struct {
	Commitment []byte                 `json:"commitment"`
	PublicKey  []byte                 `json:"publicKey"`
	RangeProof *commitment.RangeProof `json:"rangeProof"`
}

// claimedEvent is the registry payload of an EventClaimed transaction,
// binding the slice to its claim and to the counterpart certificate stream.
type claimedEvent struct {
	ClaimID             uuid.UUID `json:"claimId"`
	Commitment          []byte    `json:"commitment"`
	CounterpartStreamID []byte    `json:"counterpartStreamId"`
}

// transferredEvent is the registry payload of an EventTransferred
// transaction. The commitment is unchanged; only the owning one-time key
// moves.
type transferredEvent struct {
	Commitment   []byte `json:"commitment"`
	NewPublicKey []byte `json:"newPublicKey"`
}
