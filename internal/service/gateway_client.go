package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/logging"
	"github.com/vtuapp/vtu-backend/internal/service/purchase"
)

// GatewayClient talks to the data-bundle vendor. Requests are signed with
// HMAC-SHA256 over the JSON body; responses are interpreted only as a boolean
// outcome plus an opaque payload.
type GatewayClient struct {
	baseURL    string
	apiKey     string
	secret     string
	vendorID   string
	httpClient *http.Client
}

func NewGatewayClient(baseURL, apiKey, secret, vendorID string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		secret:   secret,
		vendorID: vendorID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

var serviceIDByNetwork = map[domain.Network]string{
	domain.NetworkMTN:     "mtn-data",
	domain.NetworkAirtel:  "airtel-data",
	domain.NetworkGlo:     "glo-data",
	domain.Network9Mobile: "9mobile-data",
}

type gatewayPurchasePayload struct {
	RequestID     string `json:"request_id"`
	ServiceID     string `json:"serviceID"`
	BillersCode   string `json:"billersCode"`
	VariationCode string `json:"variation_code"`
	Amount        int64  `json:"amount"`
}

type gatewayOutcome struct {
	OK bool `json:"ok"`
}

func (c *GatewayClient) PurchaseData(ctx context.Context, req purchase.GatewayRequest) (*purchase.GatewayResult, error) {
	serviceID, ok := serviceIDByNetwork[req.Network]
	if !ok {
		return nil, fmt.Errorf("PurchaseData: unsupported network %q", req.Network)
	}

	payload := gatewayPurchasePayload{
		RequestID:     req.Reference,
		ServiceID:     serviceID,
		BillersCode:   req.Phone,
		VariationCode: req.GatewayPlanID,
	}

	raw, err := c.post(ctx, "/v1/pay", payload)
	if err != nil {
		return nil, fmt.Errorf("PurchaseData: %w", err)
	}

	var outcome gatewayOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return nil, fmt.Errorf("PurchaseData: parse response: %w", err)
	}

	return &purchase.GatewayResult{Succeeded: outcome.OK, Raw: raw}, nil
}

// RequeryStatus is the gateway's view of a previously dispatched order.
type RequeryStatus string

const (
	RequeryDelivered RequeryStatus = "delivered"
	RequeryFailed    RequeryStatus = "failed"
	RequeryPending   RequeryStatus = "pending"
)

type RequeryResult struct {
	Status RequeryStatus
	Raw    json.RawMessage
}

type gatewayRequeryPayload struct {
	RequestID string `json:"request_id"`
}

type gatewayRequeryOutcome struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// RequeryPurchase asks the gateway for the terminal state of an order by its
// request reference. Used by the reconciler for transactions left pending.
func (c *GatewayClient) RequeryPurchase(ctx context.Context, reference string) (*RequeryResult, error) {
	raw, err := c.post(ctx, "/v1/requery", gatewayRequeryPayload{RequestID: reference})
	if err != nil {
		return nil, fmt.Errorf("RequeryPurchase: %w", err)
	}

	var outcome gatewayRequeryOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return nil, fmt.Errorf("RequeryPurchase: parse response: %w", err)
	}

	status := RequeryStatus(outcome.Status)
	switch status {
	case RequeryDelivered, RequeryFailed, RequeryPending:
	default:
		return nil, fmt.Errorf("RequeryPurchase: unknown status %q", outcome.Status)
	}

	return &RequeryResult{Status: status, Raw: raw}, nil
}

func (c *GatewayClient) post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("post: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("post: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("x-signature", c.sign(body))
	httpReq.Header.Set("x-vendor-id", c.vendorID)

	log := logging.FromContext(ctx)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("gateway response received",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("post: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("post: unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	return raw, nil
}

func (c *GatewayClient) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
