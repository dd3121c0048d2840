package notifier

import (
	"context"

	"github.com/gcert-network/gcert-daemon/internal/core/application"
	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type localNotifier struct {
	walletSvc application.WalletService
}

// NewLocalNotifier returns a notifier that deposits slices addressed to
// this wallet's own endpoints directly, without a network round trip.
// Deposits are verified right away since the opening comes from a plan
// this wallet executed itself.
func NewLocalNotifier(walletSvc application.WalletService) application.SliceNotifier {
	return &localNotifier{walletSvc: walletSvc}
}

func (n *localNotifier) NotifySliceDeposited(
	ctx context.Context, endpoint *domain.Endpoint,
	notification application.DepositNotification,
) error {
	sliceID, err := n.walletSvc.ReceiveSlice(ctx, application.ReceiveSliceRequest{
		EndpointID:     endpoint.ID,
		Position:       notification.Position,
		Registry:       notification.Registry,
		CertificateID:  notification.CertificateID,
		Quantity:       notification.Quantity,
		BlindingFactor: notification.BlindingFactor,
		Commitment:     notification.Commitment,
		Certificate:    notification.Certificate,
		Attributes:     notification.Attributes,
	})
	if err != nil {
		return err
	}
	return n.walletSvc.VerifyReceivedSlice(ctx, sliceID)
}
