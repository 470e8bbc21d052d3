package onepipe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/korehq/korebank/internal/pkg/env"
)

const (
	defaultBaseURL      = "https://api.dev.onepipe.io"
	defaultTransactPath = "/v2/transact"

	transactTimeout = 30 * time.Second
)

// Client calls the provider's transact endpoint. It injects the request
// reference and Signature header and normalizes transport and status-code
// failures into typed errors. The API key and client secret never appear in
// error messages or logs.
type Client struct {
	BaseURL      string
	TransactPath string
	APIKey       string
	ClientSecret string
	WebhookURL   string
	BillerCode   string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from ONEPIPE_* environment configuration.
// A missing API key or client secret is a construction-time failure.
func NewClientFromEnv() (*Client, error) {
	c := &Client{
		BaseURL:      strings.TrimRight(env.GetEnv("ONEPIPE_BASE_URL", defaultBaseURL), "/"),
		TransactPath: env.GetEnv("ONEPIPE_TRANSACT_PATH", defaultTransactPath),
		APIKey:       strings.TrimSpace(env.GetEnv("ONEPIPE_API_KEY", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("ONEPIPE_CLIENT_SECRET", "")),
		WebhookURL:   strings.TrimSpace(env.GetEnv("ONEPIPE_WEBHOOK_URL", "")),
		BillerCode:   strings.TrimSpace(env.GetEnv("ONEPIPE_BILLER_CODE", "")),
		HTTPClient: &http.Client{
			Timeout: transactTimeout,
		},
	}
	if c.APIKey == "" || c.ClientSecret == "" {
		return nil, fmt.Errorf("%w: ONEPIPE_API_KEY and ONEPIPE_CLIENT_SECRET are required", ErrMissingConfig)
	}
	return c, nil
}

// TransactResult carries the request reference actually sent and the parsed
// response body. Response is a decoded JSON document (map or list); when the
// provider returns a non-JSON body it is the raw text instead.
type TransactResult struct {
	RequestRef string
	Response   any
}

// Transact posts a payload to the transact endpoint. A missing request_ref is
// generated here; a missing transaction.mock_mode defaults to "inspect".
func (c *Client) Transact(ctx context.Context, p *Payload) (*TransactResult, error) {
	if c.APIKey == "" || c.ClientSecret == "" {
		return nil, ErrMissingConfig
	}

	if p.RequestRef == "" {
		p.RequestRef = newRef()
	}
	if p.Transaction != nil && p.Transaction.MockMode == "" {
		p.Transaction.MockMode = "inspect"
	}

	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	signature, err := Sign(p.RequestRef, c.ClientSecret)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(c.BaseURL, "/") + c.TransactPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Signature", signature)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		// Transport failure: no status code was obtained. Keep the transport
		// error text but never the credentials.
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Malformed JSON bodies are tolerated; fall back to the raw text.
		decoded = string(raw)
	}

	return &TransactResult{RequestRef: p.RequestRef, Response: decoded}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: transactTimeout}
}
