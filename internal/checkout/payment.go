package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Method is how a checkout attempt is paid for.
type Method string

const (
	// MethodNone is used for zero-cost carts; no payment step runs.
	MethodNone Method = "none"
	// MethodWallet debits the user's campus wallet.
	MethodWallet Method = "wallet"
	// MethodCard charges an external card through the payment provider.
	MethodCard Method = "card"
)

// CardConfirmer confirms a card charge against the external payment
// provider using the client secret from a payment intent. The provider is
// an opaque collaborator; its errors are surfaced to the user verbatim.
type CardConfirmer interface {
	ConfirmCard(ctx context.Context, clientSecret string) (confirmationID string, err error)
}

// ProviderConfirmer confirms card charges over the provider's HTTP API.
type ProviderConfirmer struct {
	baseURL    string
	httpClient *http.Client
}

// NewProviderConfirmer creates a confirmer for the provider at baseURL.
func NewProviderConfirmer(baseURL string, httpClient *http.Client) *ProviderConfirmer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &ProviderConfirmer{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// ConfirmCard implements CardConfirmer. A declined charge comes back as an
// error carrying the provider's own message.
func (p *ProviderConfirmer) ConfirmCard(ctx context.Context, clientSecret string) (string, error) {
	payload, err := json.Marshal(map[string]string{"clientSecret": clientSecret})
	if err != nil {
		return "", fmt.Errorf("encode confirmation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/confirm", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build confirmation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("confirm card: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read confirmation response: %w", err)
	}

	var body struct {
		ConfirmationID string `json:"confirmationId"`
		Error          string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("decode confirmation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || body.Error != "" {
		if body.Error != "" {
			// The provider's message goes to the user as-is.
			return "", fmt.Errorf("%s", body.Error)
		}
		return "", fmt.Errorf("card confirmation failed with status %d", resp.StatusCode)
	}
	if body.ConfirmationID == "" {
		return "", fmt.Errorf("card confirmation returned no confirmation id")
	}
	return body.ConfirmationID, nil
}
