package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/beautymarket/backend/internal/breaker"
)

// Broker is the narrow contract the service needs from the external
// identity-verification provider.
type Broker interface {
	Prepare(ctx context.Context, verificationID string, customer CustomerInfo, minAge int, carrierOnly, title string) (token string, err error)
	FetchResult(ctx context.Context, verificationID string) (BrokerResult, error)
}

// HTTPBroker is the production Broker, wrapped in its own circuit breaker so
// a broker outage cannot exhaust connections meant for other collaborators.
type HTTPBroker struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *breaker.Manager
}

// NewHTTPBroker creates a broker HTTPBroker.
func NewHTTPBroker(baseURL, apiKey string, timeout time.Duration, breakerMgr *breaker.Manager) *HTTPBroker {
	return &HTTPBroker{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: timeout}, breaker: breakerMgr}
}

type prepareRequest struct {
	VerificationID string `json:"verification_id"`
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	MinAge         int    `json:"min_age,omitempty"`
	CarrierOnly    string `json:"carrier_only,omitempty"`
	Title          string `json:"title,omitempty"`
}

type prepareResponse struct {
	Token string `json:"token"`
}

func (b *HTTPBroker) Prepare(ctx context.Context, verificationID string, customer CustomerInfo, minAge int, carrierOnly, title string) (string, error) {
	result, err := b.breaker.Execute(breaker.ServiceIdentityBroker, func() (any, error) {
		body, err := json.Marshal(prepareRequest{
			VerificationID: verificationID,
			Name:           customer.Name,
			Phone:          customer.Phone,
			MinAge:         minAge,
			CarrierOnly:    carrierOnly,
			Title:          title,
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling broker prepare request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/verifications", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("building broker request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+b.apiKey)

		resp, err := b.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling identity broker: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("broker returned %d", resp.StatusCode)
		}

		var pr prepareResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
			return nil, fmt.Errorf("decoding broker prepare response: %w", err)
		}
		return pr.Token, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (b *HTTPBroker) FetchResult(ctx context.Context, verificationID string) (BrokerResult, error) {
	result, err := b.breaker.Execute(breaker.ServiceIdentityBroker, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/verifications/"+verificationID, nil)
		if err != nil {
			return nil, fmt.Errorf("building broker fetch request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+b.apiKey)

		resp, err := b.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling identity broker: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("broker returned %d", resp.StatusCode)
		}

		var br BrokerResult
		if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
			return nil, fmt.Errorf("decoding broker result: %w", err)
		}
		return br, nil
	})
	if err != nil {
		return BrokerResult{}, err
	}
	return result.(BrokerResult), nil
}
