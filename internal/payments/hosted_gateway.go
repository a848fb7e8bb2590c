package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HostedGatewayConfig configures HostedGateway.
type HostedGatewayConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// HostedGateway talks to a redirect-style checkout provider over its JSON API.
type HostedGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHostedGateway validates cfg and builds the adapter.
func NewHostedGateway(cfg HostedGatewayConfig) (*HostedGateway, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("hosted gateway: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("hosted gateway: invalid base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HostedGateway{baseURL: base, apiKey: cfg.APIKey, client: client}, nil
}

type hostedSessionRequest struct {
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Customer     Customer          `json:"customer"`
	RedirectURLs hostedRedirects   `json:"redirect_urls"`
	WebhookURL   string            `json:"webhook_url,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

type hostedRedirects struct {
	Success string `json:"success"`
	Cancel  string `json:"cancel"`
}

type hostedSessionResponse struct {
	Token       string            `json:"token"`
	CheckoutURL string            `json:"checkout_url"`
	State       string            `json:"state"`
	Metadata    map[string]string `json:"metadata"`
}

// CreateSession opens a checkout session for the order.
func (g *HostedGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	body := hostedSessionRequest{
		Amount:   ToMinorUnits(req.Amount),
		Currency: strings.ToUpper(req.Currency),
		Customer: req.Customer,
		RedirectURLs: hostedRedirects{
			Success: req.SuccessURL,
			Cancel:  req.CancelURL,
		},
		WebhookURL: req.WebhookURL,
		Metadata: map[string]string{
			"order_id":     req.OrderID,
			"order_number": req.OrderNumber,
		},
	}

	var resp hostedSessionResponse
	if err := g.do(ctx, "create session", http.MethodPost, "/v1/checkout/sessions", body, &resp); err != nil {
		return Session{}, err
	}
	if resp.Token == "" || resp.CheckoutURL == "" {
		return Session{}, &GatewayError{Op: "create session", Message: "response is missing token or checkout url"}
	}
	return Session{Token: resp.Token, CheckoutURL: resp.CheckoutURL}, nil
}

// VerifySession fetches the current state of a session.
func (g *HostedGateway) VerifySession(ctx context.Context, token string) (SessionState, error) {
	if strings.TrimSpace(token) == "" {
		return "", &GatewayError{Op: "verify session", Message: "session token is empty"}
	}
	var resp hostedSessionResponse
	path := "/v1/checkout/sessions/" + url.PathEscape(token)
	if err := g.do(ctx, "verify session", http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return ParseState(resp.State), nil
}

func (g *HostedGateway) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return &GatewayError{Op: op, StatusCode: httpResp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &GatewayError{Op: op, StatusCode: httpResp.StatusCode, Message: "malformed response body"}
	}
	return nil
}
