package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/beautymarket/backend/internal/breaker"
)

// SendStatus classifies a provider send outcome for retry purposes.
type SendStatus string

const (
	SendOK            SendStatus = "ok"
	SendInvalidToken  SendStatus = "invalid_token"
	SendRateLimited   SendStatus = "rate_limited"
	SendTimeout       SendStatus = "timeout"
	SendServerError   SendStatus = "5xx"
	SendPermanentFail SendStatus = "permanent"
)

// Retryable reports whether a SendStatus is worth retrying with backoff.
func (s SendStatus) Retryable() bool {
	switch s {
	case SendRateLimited, SendTimeout, SendServerError:
		return true
	default:
		return false
	}
}

// Provider is the narrow contract the dispatcher needs from a push
// gateway (FCM-shaped): send one message to one token.
type Provider interface {
	Send(ctx context.Context, token, title, body string) (SendStatus, error)
}

// HTTPProvider is the production Provider, wrapped in its own circuit
// breaker so a gateway outage cannot exhaust connections meant for other
// collaborators.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *breaker.Manager
}

// NewHTTPProvider creates a push-gateway HTTPProvider.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, breakerMgr *breaker.Manager) *HTTPProvider {
	return &HTTPProvider{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: timeout}, breaker: breakerMgr}
}

type sendRequest struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (p *HTTPProvider) Send(ctx context.Context, token, title, body string) (SendStatus, error) {
	result, err := p.breaker.Execute(breaker.ServicePushGateway, func() (any, error) {
		payload, err := json.Marshal(sendRequest{Token: token, Title: title, Body: body})
		if err != nil {
			return nil, fmt.Errorf("marshaling push request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/send", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("building push request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return SendTimeout, nil
			}
			return nil, fmt.Errorf("calling push gateway: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			return SendOK, nil
		case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
			return SendInvalidToken, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return SendRateLimited, nil
		case resp.StatusCode >= 500:
			return SendServerError, nil
		default:
			return SendPermanentFail, nil
		}
	})
	if err != nil {
		return SendServerError, err
	}
	return result.(SendStatus), nil
}
