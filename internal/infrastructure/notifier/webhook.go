package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sony/gobreaker"

	"github.com/gcert-network/gcert-daemon/internal/core/application"
	"github.com/gcert-network/gcert-daemon/internal/core/domain"
	"github.com/gcert-network/gcert-daemon/pkg/circuitbreaker"
)

const defaultRequestTimeout = 15 * time.Second

type webhookNotifier struct {
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

// NewWebhookNotifier returns a notifier that POSTs deposit notifications
// to the remote endpoint's webhook URL, authenticated with a JWT bearer
// token signed with the shared endpoint secret.
func NewWebhookNotifier(requestTimeout time.Duration) application.SliceNotifier {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &webhookNotifier{
		httpClient: &http.Client{Timeout: requestTimeout},
		cb:         circuitbreaker.NewCircuitBreaker("receiver wallet"),
	}
}

func (n *webhookNotifier) NotifySliceDeposited(
	ctx context.Context, endpoint *domain.Endpoint,
	notification application.DepositNotification,
) error {
	if !endpoint.IsRemote() {
		return fmt.Errorf("endpoint %s has no webhook url", endpoint.ID)
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	_, err = n.cb.Execute(func() (interface{}, error) {
		return nil, n.doRequest(ctx, endpoint, payload)
	})
	return err
}

func (n *webhookNotifier) doRequest(
	ctx context.Context, endpoint *domain.Endpoint, payload []byte,
) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint.RemoteURL, bytes.NewReader(payload),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if endpoint.Secret != "" {
		token := jwt.New(jwt.SigningMethodHS256)
		tokenString, err := token.SignedString([]byte(endpoint.Secret))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", tokenString))
	}

	res, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// Receivers reply 201 on first delivery and 200 on redeliveries, both
	// mean the deposit landed.
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf(
			"receiver wallet replied with status %d: %s", res.StatusCode, string(body),
		)
	}
	return nil
}
