// Package paystack wraps the payment gateway's REST API: transaction
// initialization, mobile-money charges and transaction verification, plus
// webhook signature checking. Amounts cross this boundary in minor units.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/onpointsoft-solutions/shulegram/internal/apperr"
)

const DefaultBaseURL = "https://api.paystack.co"

// Client is the gateway HTTP client. Construct it once at startup and
// inject it; nothing here is package-level state.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      httpClient,
	}
}

type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	Channels    []string
	CallbackURL string
	Metadata    map[string]interface{}
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type ChargeRequest struct {
	Email       string
	AmountMinor int64
	Reference   string
	Phone       string
	Provider    string
	Metadata    map[string]interface{}
}

// Charge statuses the gateway reports for a mobile-money charge.
const (
	ChargeSuccess    = "success"
	ChargeFailed     = "failed"
	ChargePayOffline = "pay_offline"
	ChargeSendOTP    = "send_otp"
	ChargePending    = "pending"
)

type ChargeResponse struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	DisplayText string `json:"display_text"`
	Message     string `json:"message"`
}

// Pending reports whether the charge is waiting on the payer (STK prompt
// or OTP) rather than settled or declined.
func (r *ChargeResponse) Pending() bool {
	switch r.Status {
	case ChargePayOffline, ChargeSendOTP, ChargePending:
		return true
	}
	return false
}

type VerifyResponse struct {
	Status          string   `json:"status"`
	AmountMinor     int64    `json:"amount"`
	PaidAt          string   `json:"paid_at"`
	Channel         string   `json:"channel"`
	GatewayResponse string   `json:"gateway_response"`
	Metadata        Metadata `json:"metadata"`
}

// PaidAtTime parses the gateway's paid_at stamp; the zero time is returned
// when the field is absent or unparseable.
func (r *VerifyResponse) PaidAtTime() time.Time {
	if r.PaidAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, r.PaidAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// InitializeTransaction opens a hosted checkout for the reference and
// returns the authorization URL the client is redirected to.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	body := map[string]interface{}{
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"reference": req.Reference,
	}
	if len(req.Channels) > 0 {
		body["channels"] = req.Channels
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if req.Metadata != nil {
		body["metadata"] = req.Metadata
	}

	var out InitializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChargeMobileMoney pushes a mobile-money debit prompt (STK push for
// M-Pesa) to the payer's handset.
func (c *Client) ChargeMobileMoney(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	body := map[string]interface{}{
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"reference": req.Reference,
		"mobile_money": map[string]string{
			"phone":    req.Phone,
			"provider": req.Provider,
		},
	}
	if req.Metadata != nil {
		body["metadata"] = req.Metadata
	}

	var out ChargeResponse
	if err := c.do(ctx, http.MethodPost, "/charge", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTransaction fetches the gateway's record of a transaction. This is
// the polling leg of reconciliation; webhooks are the pushed leg.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// apiEnvelope is the gateway's uniform response wrapper. The outer status
// flag discriminates success; message carries the decline reason.
type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode gateway request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindGatewayUnavailable, "payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperr.Newf(apperr.KindGatewayAuth, "payment gateway rejected credentials (status %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return apperr.Newf(apperr.KindGatewayUnavailable, "payment gateway error (status %d)", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(apperr.KindGatewayUnavailable, "read gateway response", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= 300 {
			return apperr.Newf(apperr.KindGatewayUnavailable, "payment gateway returned status %d", resp.StatusCode)
		}
		return apperr.Wrap(apperr.KindGatewayUnavailable, "decode gateway response", err)
	}

	if resp.StatusCode >= 300 || !envelope.Status {
		message := envelope.Message
		if message == "" {
			message = fmt.Sprintf("gateway declined the request (status %d)", resp.StatusCode)
		}
		return apperr.New(apperr.KindGatewayRejected, message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return apperr.Wrap(apperr.KindGatewayUnavailable, "decode gateway response data", err)
		}
	}
	return nil
}
