package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/logging"
)

// PayvesselClient provisions static virtual bank accounts that fund wallets
// through the inbound payment webhook.
type PayvesselClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	businessID string
	httpClient *http.Client
}

func NewPayvesselClient(baseURL, apiKey, apiSecret, businessID string) *PayvesselClient {
	return &PayvesselClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		businessID: businessID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type reservedAccountRequest struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	PhoneNumber string   `json:"phoneNumber"`
	BankCode    []string `json:"bankcode"`
	AccountType string   `json:"account_type"`
	BusinessID  string   `json:"businessid"`
	BVN         string   `json:"bvn,omitempty"`
	NIN         string   `json:"nin,omitempty"`
}

type reservedAccountResponse struct {
	Banks []struct {
		BankName          string `json:"bankName"`
		AccountNumber     string `json:"accountNumber"`
		AccountName       string `json:"accountName"`
		AccountType       string `json:"account_type"`
		TrackingReference string `json:"trackingReference"`
	} `json:"banks"`
}

// ProvisionAccounts requests static reserved accounts for the user. The
// provider requires a BVN or NIN on file before it will issue one.
func (c *PayvesselClient) ProvisionAccounts(ctx context.Context, user *domain.User) ([]domain.VirtualAccount, error) {
	if user.BVN == nil && user.NIN == nil {
		return nil, domain.ErrIdentityRequired
	}

	req := reservedAccountRequest{
		Email:       user.Email,
		Name:        strings.ToUpper(user.Name),
		PhoneNumber: user.Phone,
		BankCode:    []string{"999991", "120001"},
		AccountType: "STATIC",
		BusinessID:  c.businessID,
	}
	if user.BVN != nil {
		req.BVN = *user.BVN
	}
	if user.NIN != nil {
		req.NIN = *user.NIN
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("ProvisionAccounts: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/pms/api/external/request/customerReservedAccount/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ProvisionAccounts: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)
	httpReq.Header.Set("api-secret", "Bearer "+c.apiSecret)

	log := logging.FromContext(ctx)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ProvisionAccounts: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("ProvisionAccounts: read response: %w", err)
	}

	log.Info("reserved account response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("ProvisionAccounts: unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed reservedAccountResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("ProvisionAccounts: parse response: %w", err)
	}
	if len(parsed.Banks) == 0 {
		return nil, fmt.Errorf("ProvisionAccounts: provider returned no accounts")
	}

	accounts := make([]domain.VirtualAccount, 0, len(parsed.Banks))
	for _, b := range parsed.Banks {
		accountType := b.AccountType
		if accountType == "" {
			accountType = "STATIC"
		}
		accounts = append(accounts, domain.VirtualAccount{
			ID:                uuid.New(),
			UserID:            user.ID,
			BankName:          b.BankName,
			AccountNumber:     b.AccountNumber,
			AccountName:       b.AccountName,
			AccountType:       accountType,
			TrackingReference: b.TrackingReference,
			Provider:          "payvessel",
		})
	}
	return accounts, nil
}
