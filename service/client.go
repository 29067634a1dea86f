package service

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

	"parking-terminal-cli/model"
)

const (
	defaultBaseURL     = "http://localhost:3000/api/v1"
	defaultMaxAttempts = 3
	defaultRetryBase   = 200 * time.Millisecond
	defaultRetryCap    = 1200 * time.Millisecond
)

// Client wraps HTTP access to the parking backend API.
//
// Lookups (GETs) retry transient failures with a bounded exponential delay.
// Mutations (check-in, check-out) are sent exactly once: the server moves
// occupancy counts and money on those calls, and a blind retry could double
// a check-in. Recovery there is the operator's decision.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxAttempts int
	retryBase   time.Duration
	retryCap    time.Duration
}

// APIError is returned when the backend responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Status     string
	Endpoint   string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e == nil {
		return "parking api error"
	}
	if e.Message != "" {
		return fmt.Sprintf("parking api error: %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("parking api error: %s: %s", e.Status, e.Body)
}

// IsNotFound reports whether the error represents a 404 from the API.
func IsNotFound(err error) bool {
	return statusIs(err, http.StatusNotFound)
}

// IsConflict reports whether the error represents a 409 from the API,
// which check-in uses to signal "already checked in".
func IsConflict(err error) bool {
	return statusIs(err, http.StatusConflict)
}

// ErrorMessage extracts the server-supplied message from an API error, or
// falls back to the given default for anything else.
func ErrorMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func statusIs(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == code
	}
	return false
}

// NewClient creates a new API client. If httpClient is nil, a default client
// is used. An empty baseURL falls back to the local development server.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 12 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
		retryCap:    defaultRetryCap,
	}
}

// GetGates returns every gate known to the facility.
func (c *Client) GetGates(ctx context.Context) ([]model.Gate, error) {
	endpoint := fmt.Sprintf("%s/master/gates", c.baseURL)

	var gates []model.Gate
	if err := c.getJSON(ctx, endpoint, &gates); err != nil {
		return nil, err
	}
	return gates, nil
}

// GetZonesByGate fetches the zones served by a gate, the seed for the local
// zone store.
func (c *Client) GetZonesByGate(ctx context.Context, gateID string) ([]model.Zone, error) {
	if gateID == "" {
		return nil, errors.New("gate id is required")
	}
	endpoint := fmt.Sprintf("%s/master/zones?gateId=%s", c.baseURL, url.QueryEscape(gateID))

	var zones []model.Zone
	if err := c.getJSON(ctx, endpoint, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

// GetSubscription fetches a subscription by id for per-session verification.
func (c *Client) GetSubscription(ctx context.Context, id string) (model.Subscription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Subscription{}, errors.New("subscription id is required")
	}
	endpoint := fmt.Sprintf("%s/subscriptions/%s", c.baseURL, url.PathEscape(id))

	var sub model.Subscription
	if err := c.getJSON(ctx, endpoint, &sub); err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

// GetTicket fetches a ticket by id.
func (c *Client) GetTicket(ctx context.Context, id string) (model.Ticket, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Ticket{}, errors.New("ticket id is required")
	}
	endpoint := fmt.Sprintf("%s/tickets/%s", c.baseURL, url.PathEscape(id))

	var ticket model.Ticket
	if err := c.getJSON(ctx, endpoint, &ticket); err != nil {
		return model.Ticket{}, err
	}
	return ticket, nil
}

// Checkin submits a check-in. A 409 means the subscription is already
// checked in; detect it with IsConflict.
func (c *Client) Checkin(ctx context.Context, req model.CheckinRequest) (model.CheckinResponse, error) {
	endpoint := fmt.Sprintf("%s/tickets/checkin", c.baseURL)

	var res model.CheckinResponse
	if err := c.postJSON(ctx, endpoint, req, &res); err != nil {
		return model.CheckinResponse{}, err
	}
	return res, nil
}

// Checkout closes a ticket and returns the server-computed billing result.
func (c *Client) Checkout(ctx context.Context, req model.CheckoutRequest) (model.CheckoutResult, error) {
	if req.TicketId == "" {
		return model.CheckoutResult{}, errors.New("ticket id is required")
	}
	endpoint := fmt.Sprintf("%s/tickets/checkout", c.baseURL)

	var res model.CheckoutResult
	if err := c.postJSON(ctx, endpoint, req, &res); err != nil {
		return model.CheckoutResult{}, err
	}
	return res, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	maxAttempts := c.maxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		res, err := c.httpClient.Do(req)
		if err != nil {
			if c.shouldRetryNetworkError(err) && attempt < maxAttempts {
				if waitErr := c.waitRetry(ctx, attempt); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("request failed: %w", err)
		}

		apiErr := errorFromResponse(res, endpoint)
		if apiErr != nil {
			if c.shouldRetryStatus(apiErr.StatusCode) && attempt < maxAttempts {
				if waitErr := c.waitRetry(ctx, attempt); waitErr != nil {
					return waitErr
				}
				continue
			}
			return apiErr
		}

		return decodeBody(res, endpoint, out)
	}

	return errors.New("request failed after retries")
}

// postJSON performs exactly one attempt; see the Client doc comment.
func (c *Client) postJSON(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if apiErr := errorFromResponse(res, endpoint); apiErr != nil {
		return apiErr
	}
	return decodeBody(res, endpoint, out)
}

// errorFromResponse drains and closes the body on non-2xx responses,
// pulling out the backend's {"message": ...} envelope when present.
func errorFromResponse(res *http.Response, endpoint string) *APIError {
	if res.StatusCode >= http.StatusOK && res.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(res.Body, 8<<10))
	_ = res.Body.Close()

	apiErr := &APIError{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Endpoint:   endpoint,
		Body:       strings.TrimSpace(string(snippet)),
	}
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(snippet, &envelope); err == nil {
		apiErr.Message = envelope.Message
	}
	return apiErr
}

func decodeBody(res *http.Response, endpoint string, out any) error {
	dec := json.NewDecoder(res.Body)
	err := dec.Decode(out)
	_ = res.Body.Close()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) shouldRetryStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func (c *Client) shouldRetryNetworkError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) waitRetry(ctx context.Context, attempt int) error {
	delay := c.retryDelay(attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) retryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := c.retryBase
	if base <= 0 {
		base = defaultRetryBase
	}
	cap := c.retryCap
	if cap <= 0 {
		cap = defaultRetryCap
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= cap/2 {
			return cap
		}
		delay *= 2
	}
	if delay > cap {
		return cap
	}
	return delay
}
