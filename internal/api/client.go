// Package api is the HTTP client for the campus backend: the event
// collections, user lookups, payments, and batch registration. Paths are an
// implementation detail of the backend; the contract the rest of this repo
// depends on is the response shapes in types.go.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxResponseSize caps response bodies so a misbehaving backend cannot
// exhaust memory.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client talks to the campus backend over HTTP+JSON.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithToken sets the bearer token attached to every request. The token is
// opaque; session issuance is the auth service's business.
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues one request and decodes the JSON response into out. Non-2xx
// responses are surfaced as errors carrying the backend's error envelope
// when it sent one.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, envelope.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// UpcomingEvents fetches the generic upcoming-events feed for a role.
func (c *Client) UpcomingEvents(ctx context.Context, role string) ([]GenericEvent, error) {
	path := "/events/upcoming"
	if role = strings.TrimSpace(role); role != "" {
		path += "?role=" + url.QueryEscape(role)
	}
	var events []GenericEvent
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Workshops fetches the workshops collection.
func (c *Client) Workshops(ctx context.Context) ([]Workshop, error) {
	var workshops []Workshop
	if err := c.do(ctx, http.MethodGet, "/workshops", nil, &workshops); err != nil {
		return nil, err
	}
	return workshops, nil
}

// Trips fetches the trips collection.
func (c *Client) Trips(ctx context.Context) ([]Trip, error) {
	var trips []Trip
	if err := c.do(ctx, http.MethodGet, "/trips", nil, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// Bazaars fetches the bazaars collection.
func (c *Client) Bazaars(ctx context.Context) ([]Bazaar, error) {
	var bazaars []Bazaar
	if err := c.do(ctx, http.MethodGet, "/bazaars", nil, &bazaars); err != nil {
		return nil, err
	}
	return bazaars, nil
}

// AcceptedVendorApplications fetches a bazaar's accepted vendor applications.
func (c *Client) AcceptedVendorApplications(ctx context.Context, bazaarID string) ([]VendorApplication, error) {
	var apps []VendorApplication
	path := "/bazaars/" + url.PathEscape(bazaarID) + "/vendor-applications?status=accepted"
	if err := c.do(ctx, http.MethodGet, path, nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// VendorProfile fetches one vendor's profile.
func (c *Client) VendorProfile(ctx context.Context, vendorID string) (*VendorProfile, error) {
	var profile VendorProfile
	if err := c.do(ctx, http.MethodGet, "/vendors/"+url.PathEscape(vendorID), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// AcceptedBoothApplications fetches a bazaar's accepted booth applications.
func (c *Client) AcceptedBoothApplications(ctx context.Context, bazaarID string) ([]BoothApplication, error) {
	var apps []BoothApplication
	path := "/bazaars/" + url.PathEscape(bazaarID) + "/booth-applications?status=accepted"
	if err := c.do(ctx, http.MethodGet, path, nil, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// UserProfile fetches one user record, used to resolve professor display
// names and wallet balances.
func (c *Client) UserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreatePaymentIntent asks the payments backend for a card payment intent.
func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	var intent PaymentIntent
	if err := c.do(ctx, http.MethodPost, "/payments/intents", req, &intent); err != nil {
		return nil, err
	}
	if intent.ClientSecret == "" {
		return nil, fmt.Errorf("payment intent response missing client secret")
	}
	return &intent, nil
}

// BatchRegister submits the whole cart as one registration request. Per-item
// atomicity and partial-success semantics are the backend's responsibility;
// the caller reconciles the response.
func (c *Client) BatchRegister(ctx context.Context, req BatchRegisterRequest) (*BatchRegisterResponse, error) {
	var resp BatchRegisterResponse
	if err := c.do(ctx, http.MethodPost, "/registrations/batch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelRegistration cancels a single registration and returns the refunded
// user state.
func (c *Client) CancelRegistration(ctx context.Context, registrationID string) (*CancelResponse, error) {
	var resp CancelResponse
	path := "/registrations/" + url.PathEscape(registrationID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
