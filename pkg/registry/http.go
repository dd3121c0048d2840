package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/gcert-network/gcert-daemon/pkg/circuitbreaker"
)

const defaultRequestTimeout = 15 * time.Second

type httpService struct {
	apiURL      string
	client      *http.Client
	cb          *gobreaker.CircuitBreaker
	rateLimiter ratelimit.Limiter
}

// NewHTTPService returns a registry Service talking to the registry's HTTP
// gateway. Requests go through a circuit breaker, and status polling is
// rate limited to the given number of requests per second.
func NewHTTPService(apiURL string, pollRequestsPerSecond int) (Service, error) {
	if len(apiURL) <= 0 {
		return nil, ErrNullAPIURL
	}
	if pollRequestsPerSecond <= 0 {
		pollRequestsPerSecond = 1
	}

	return &httpService{
		apiURL:      strings.TrimSuffix(apiURL, "/"),
		client:      &http.Client{Timeout: defaultRequestTimeout},
		cb:          circuitbreaker.NewCircuitBreaker("registry"),
		rateLimiter: ratelimit.New(pollRequestsPerSecond),
	}, nil
}

func (s *httpService) SubmitTransaction(ctx context.Context, tx *Transaction) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/transactions", s.apiURL)
	_, err = s.cb.Execute(func() (interface{}, error) {
		status, resp, err := s.doRequest(ctx, http.MethodPost, url, string(body))
		if err != nil {
			return nil, err
		}
		// StatusConflict means the content-hashed id is already known to
		// the registry, which is exactly what an idempotent resubmission
		// looks like.
		if status != http.StatusOK && status != http.StatusAccepted &&
			status != http.StatusConflict {
			return nil, fmt.Errorf("registry returned %d: %s", status, resp)
		}
		return nil, nil
	})
	return err
}

func (s *httpService) GetTransactionStatus(
	ctx context.Context, txID string,
) (TxStatus, error) {
	s.rateLimiter.Take()

	url := fmt.Sprintf("%s/v1/transactions/%s/status", s.apiURL, txID)
	res, err := s.cb.Execute(func() (interface{}, error) {
		status, resp, err := s.doRequest(ctx, http.MethodGet, url, "")
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return StatusUnknown{}, nil
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("registry returned %d: %s", status, resp)
		}

		var payload struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(resp), &payload); err != nil {
			return nil, err
		}

		switch payload.Status {
		case "pending":
			return StatusPending{}, nil
		case "committed":
			return StatusCommitted{}, nil
		case "failed":
			return StatusFailed{Message: payload.Message}, nil
		default:
			return nil, fmt.Errorf("registry returned unknown status %q", payload.Status)
		}
	})
	if err != nil {
		return nil, err
	}
	return res.(TxStatus), nil
}

func (s *httpService) doRequest(
	ctx context.Context, method, url, body string,
) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer res.Body.Close()

	buf, err := io.ReadAll(res.Body)
	if err != nil {
		return -1, "", err
	}
	return res.StatusCode, string(buf), nil
}
