// Package speedapi is a client for the Speed Lightning payment API.
// Without an API key it runs in simulation mode: sends succeed
// immediately and are flagged simulated, so the rest of the system
// behaves identically whether or not a live payment network is
// reachable.
package speedapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/logger"
)

const simulatedBalance = 1_000_000 // sats

// Client talks to the Speed API.
type Client struct {
	apiURL    string
	apiKey    string
	simulated bool
	client    *http.Client
}

// NewClient creates a Speed API client. Simulation mode is forced when
// no API key is configured.
func NewClient(apiURL, apiKey string, simulate bool) *Client {
	c := &Client{
		apiURL:    apiURL,
		apiKey:    apiKey,
		simulated: simulate || apiKey == "",
		client:    &http.Client{Timeout: 10 * time.Second},
	}
	if c.simulated {
		logger.Info("speed API running in simulation mode")
	}
	return c
}

// PaymentResult is the outcome of one send attempt. Transport and API
// failures are captured in Err rather than returned as errors: a
// selection always completes with a recordable outcome.
type PaymentResult struct {
	Success       bool   `json:"success"`
	Simulated     bool   `json:"simulated,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Amount        int64  `json:"amount"`
	Recipient     string `json:"recipient"`
	Description   string `json:"description,omitempty"`
	Fee           int64  `json:"fee,omitempty"`
	Err           string `json:"error,omitempty"`
}

// BalanceResult is the wallet balance in sats.
type BalanceResult struct {
	Amount    int64  `json:"balance"`
	Simulated bool   `json:"simulated,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Status describes the client's mode for diagnostics.
type Status struct {
	Simulated bool   `json:"simulated"`
	APIURL    string `json:"api_url"`
	HasAPIKey bool   `json:"has_api_key"`
}

// Status reports the client's current mode.
func (c *Client) Status() Status {
	return Status{
		Simulated: c.simulated,
		APIURL:    c.apiURL,
		HasAPIKey: c.apiKey != "",
	}
}

type sendRequest struct {
	Recipient   string `json:"recipient"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type sendResponse struct {
	ID  string `json:"id"`
	Fee int64  `json:"fee"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

// Send attempts to pay amount sats to recipient.
func (c *Client) Send(ctx context.Context, recipient string, amount int64, description string) PaymentResult {
	result := PaymentResult{
		Amount:      amount,
		Recipient:   recipient,
		Description: description,
	}

	if c.simulated {
		logger.Infof("simulated payment: %d sats to %s (%s)", amount, recipient, description)
		result.Success = true
		result.Simulated = true
		return result
	}

	body, err := json.Marshal(sendRequest{Recipient: recipient, Amount: amount, Description: description})
	if err != nil {
		result.Err = err.Error()
		return result
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/payments/send", bytes.NewReader(body))
	if err != nil {
		logger.Errorf("speed API send failed: %v", err)
		result.Err = err.Error()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Err = fmt.Sprintf("speed API returned %s", resp.Status)
		return result
	}

	var decoded sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		result.Err = err.Error()
		return result
	}

	result.Success = true
	result.TransactionID = decoded.ID
	result.Fee = decoded.Fee
	return result
}

// Balance fetches the wallet balance.
func (c *Client) Balance(ctx context.Context) BalanceResult {
	if c.simulated {
		return BalanceResult{Amount: simulatedBalance, Simulated: true}
	}

	resp, err := c.do(ctx, http.MethodGet, "/v1/wallet/balance", nil)
	if err != nil {
		logger.Errorf("speed API balance failed: %v", err)
		return BalanceResult{Err: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return BalanceResult{Err: fmt.Sprintf("speed API returned %s", resp.Status)}
	}

	var decoded balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return BalanceResult{Err: err.Error()}
	}
	return BalanceResult{Amount: decoded.Balance}
}

func (c *Client) do(ctx context.Context, method, path string, body *bytes.Reader) (*http.Response, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.apiURL+path, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}
