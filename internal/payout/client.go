// Package payout submits withdrawals to the external mobile-money processor
// and drives them to completion.
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// ErrPayoutNotFound is returned when the processor has no record of the
// requested reference.
var ErrPayoutNotFound = errors.New("payout: not found")

// RejectedError means the processor refused the payout outright. Retrying
// the same request will not help.
type RejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payout rejected (%d): %s", e.StatusCode, e.Reason)
}

// SubmitRequest is one payout submission. ClientRequestID is the
// idempotency key: resubmitting with the same ID returns the original
// payout instead of creating a second one.
type SubmitRequest struct {
	ClientRequestID uuid.UUID
	Amount          int64
	Currency        string
	PhoneNumber     string
	AccountName     string
}

// Result is the processor's view of a payout.
type Result struct {
	ProcessorRef string
	Status       string
	FailureReason string
}

// Client defines the contract for talking to the payout processor.
type Client interface {
	SubmitPayout(ctx context.Context, req SubmitRequest) (*Result, error)
	GetPayout(ctx context.Context, processorRef string) (*Result, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient constructs an HTTP-backed processor client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse processor url: %w", err)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
		logger: logger,
	}, nil
}

type submitPayload struct {
	ClientRequestID string `json:"client_request_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	PhoneNumber     string `json:"phone_number"`
	AccountName     string `json:"account_name"`
}

type payoutResponse struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	Message       string `json:"message,omitempty"`
}

// SubmitPayout submits the payout, retrying transient failures with
// exponential backoff. The submission is safe to retry because the
// processor deduplicates on ClientRequestID.
func (c *HTTPClient) SubmitPayout(ctx context.Context, req SubmitRequest) (*Result, error) {
	body, err := json.Marshal(submitPayload{
		ClientRequestID: req.ClientRequestID.String(),
		Amount:          req.Amount,
		Currency:        req.Currency,
		PhoneNumber:     req.PhoneNumber,
		AccountName:     req.AccountName,
	})
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "/v1/payouts"})
	var result *Result
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Idempotency-Key", req.ClientRequestID.String())
		c.setAuth(httpReq)

		resp, err := c.client.Do(httpReq)
		if err != nil {
			// Network errors are retryable.
			return fmt.Errorf("submit payout: %w", err)
		}
		defer resp.Body.Close()

		result, err = c.decode(resp)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	c.logger.Info("payout submitted",
		"client_request_id", req.ClientRequestID,
		"processor_ref", result.ProcessorRef,
		"status", result.Status,
	)
	return result, nil
}

// GetPayout fetches the processor's current view of a payout.
func (c *HTTPClient) GetPayout(ctx context.Context, processorRef string) (*Result, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "/v1/payouts/" + processorRef})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get payout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPayoutNotFound
	}
	return c.decode(resp)
}

func (c *HTTPClient) setAuth(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

// decode maps the response: 2xx parses the payout, 429/5xx are retryable,
// any other 4xx is a permanent rejection.
func (c *HTTPClient) decode(resp *http.Response) (*Result, error) {
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("processor returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		reason := strings.TrimSpace(string(raw))
		var payload payoutResponse
		if json.Unmarshal(raw, &payload) == nil {
			if payload.FailureReason != "" {
				reason = payload.FailureReason
			} else if payload.Message != "" {
				reason = payload.Message
			}
		}
		return nil, backoff.Permanent(&RejectedError{StatusCode: resp.StatusCode, Reason: reason})
	}

	var payload payoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode processor response: %w", err))
	}
	if payload.Reference == "" {
		return nil, backoff.Permanent(fmt.Errorf("processor response missing reference"))
	}
	return &Result{
		ProcessorRef:  payload.Reference,
		Status:        payload.Status,
		FailureReason: payload.FailureReason,
	}, nil
}
