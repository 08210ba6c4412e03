package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/beautymarket/backend/internal/breaker"
)

// Client is the narrow contract the orchestrator needs from a payment
// gateway (PortOne/Danal-shaped): start a checkout, issue a refund. Webhook
// delivery runs the other direction and is handled by Verify/Handler, not
// this interface.
type Client interface {
	Initiate(ctx context.Context, req InitiateGatewayRequest) (ClientParameters, error)
	Refund(ctx context.Context, gatewayTxID string, amount int64) error
}

// InitiateGatewayRequest is the outbound checkout-start request.
type InitiateGatewayRequest struct {
	PaymentID string
	Amount    int64
	Method    string
}

// HTTPClient is the production Client, wrapped in a circuit breaker so a
// gateway outage cannot exhaust connections meant for other collaborators.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *breaker.Manager
}

// NewHTTPClient creates a gateway HTTPClient.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, breakerMgr *breaker.Manager) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		breaker: breakerMgr,
	}
}

func (c *HTTPClient) Initiate(ctx context.Context, req InitiateGatewayRequest) (ClientParameters, error) {
	result, err := c.breaker.Execute(breaker.ServicePaymentGateway, func() (any, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("marshaling gateway request: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("building gateway request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("calling gateway: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
		}

		var params ClientParameters
		if err := json.NewDecoder(resp.Body).Decode(&params); err != nil {
			return nil, fmt.Errorf("decoding gateway response: %w", err)
		}
		return params, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(ClientParameters), nil
}

func (c *HTTPClient) Refund(ctx context.Context, gatewayTxID string, amount int64) error {
	_, err := c.breaker.Execute(breaker.ServicePaymentGateway, func() (any, error) {
		body, err := json.Marshal(map[string]any{"gateway_tx_id": gatewayTxID, "amount": amount})
		if err != nil {
			return nil, fmt.Errorf("marshaling refund request: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/refunds", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("building refund request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("calling gateway refund: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("gateway refund returned %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}
