package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/service"
)

const testWebhookSecret = "test-secret-key"

type mockCreditService struct {
	applied []service.CreditEvent
	txn     *domain.Transaction
	fresh   bool
	err     error
}

func (m *mockCreditService) Apply(_ context.Context, ev service.CreditEvent) (*domain.Transaction, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	m.applied = append(m.applied, ev)
	return m.txn, m.fresh, nil
}

func signPayload(body, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func validWebhookBody() string {
	return `{"transaction":{"reference":"TX1","accountNumber":"1234567890"},"order":{"settlement_amount":"486.75","amount":"500.00"}}`
}

func creditedTxn() *domain.Transaction {
	return &domain.Transaction{
		ID:        uuid.New(),
		Reference: "TX1",
		Kind:      domain.TransactionKindCredit,
		Status:    domain.TransactionStatusSuccess,
		CreatedAt: time.Now().UTC(),
	}
}

func postWebhook(h *WebhookHandler, body, signature, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/payvessel/webhook", strings.NewReader(body))
	req.RemoteAddr = "10.0.0.9:44321"
	if signature != "" {
		req.Header.Set("Payvessel-Http-Signature", signature)
	}
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	h.ReceivePaymentWebhook(rec, req)
	return rec
}

func TestVerifyHMAC(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      `{"transaction":{"reference":"TX1"}}`,
			signature: signPayload(`{"transaction":{"reference":"TX1"}}`, testWebhookSecret),
			want:      true,
		},
		{
			name:      "wrong signature",
			body:      `{"transaction":{"reference":"TX1"}}`,
			signature: "deadbeef",
			want:      false,
		},
		{
			name:      "missing signature",
			body:      `{"transaction":{"reference":"TX1"}}`,
			signature: "",
			want:      false,
		},
		{
			name:      "tampered byte",
			body:      `{"transaction":{"reference":"TX2"}}`,
			signature: signPayload(`{"transaction":{"reference":"TX1"}}`, testWebhookSecret),
			want:      false,
		},
		{
			name:      "wrong secret",
			body:      `{"transaction":{"reference":"TX1"}}`,
			signature: signPayload(`{"transaction":{"reference":"TX1"}}`, "other-secret"),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verifyHMAC([]byte(tt.body), tt.signature, testWebhookSecret))
		})
	}
}

func TestReceivePaymentWebhook_Credits(t *testing.T) {
	credits := &mockCreditService{txn: creditedTxn(), fresh: true}
	h := NewWebhookHandler(credits, testWebhookSecret, nil)

	body := validWebhookBody()
	rec := postWebhook(h, body, signPayload(body, testWebhookSecret), "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, credits.applied, 1)

	ev := credits.applied[0]
	assert.Equal(t, "TX1", ev.Reference)
	assert.Equal(t, "1234567890", ev.AccountNumber)
	assert.Equal(t, int64(48675), ev.Amount)
	assert.JSONEq(t, body, string(ev.Raw))
}

func TestReceivePaymentWebhook_FallsBackToGrossAmount(t *testing.T) {
	credits := &mockCreditService{txn: creditedTxn(), fresh: true}
	h := NewWebhookHandler(credits, testWebhookSecret, nil)

	body := `{"transaction":{"reference":"TX1","accountNumber":"1234567890"},"order":{"amount":"500"}}`
	rec := postWebhook(h, body, signPayload(body, testWebhookSecret), "")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, credits.applied, 1)
	assert.Equal(t, int64(50000), credits.applied[0].Amount)
}

func TestReceivePaymentWebhook_DuplicateAck(t *testing.T) {
	credits := &mockCreditService{txn: creditedTxn(), fresh: false}
	h := NewWebhookHandler(credits, testWebhookSecret, nil)

	body := validWebhookBody()
	rec := postWebhook(h, body, signPayload(body, testWebhookSecret), "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestReceivePaymentWebhook_RejectsBadSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature func(body string) string
	}{
		{name: "missing signature", signature: func(string) string { return "" }},
		{name: "garbage signature", signature: func(string) string { return "deadbeef" }},
		{
			name: "signature for different body",
			signature: func(string) string {
				return signPayload(`{"transaction":{"reference":"OTHER"}}`, testWebhookSecret)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credits := &mockCreditService{txn: creditedTxn(), fresh: true}
			h := NewWebhookHandler(credits, testWebhookSecret, nil)

			body := validWebhookBody()
			rec := postWebhook(h, body, tt.signature(body), "")

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, credits.applied)
		})
	}
}

// Flipping one byte of the payload while keeping the original signature must
// reject before any domain logic runs.
func TestReceivePaymentWebhook_TamperedPayload(t *testing.T) {
	credits := &mockCreditService{txn: creditedTxn(), fresh: true}
	h := NewWebhookHandler(credits, testWebhookSecret, nil)

	body := validWebhookBody()
	sig := signPayload(body, testWebhookSecret)
	tampered := strings.Replace(body, `"486.75"`, `"486.76"`, 1)

	rec := postWebhook(h, tampered, sig, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, credits.applied)
}

func TestReceivePaymentWebhook_IPAllowlist(t *testing.T) {
	tests := []struct {
		name         string
		trusted      []string
		forwardedFor string
		wantCode     int
	}{
		{name: "allowlist disabled", trusted: nil, forwardedFor: "203.0.113.7", wantCode: http.StatusOK},
		{name: "trusted source", trusted: []string{"203.0.113.7"}, forwardedFor: "203.0.113.7", wantCode: http.StatusOK},
		{name: "untrusted source", trusted: []string{"203.0.113.7"}, forwardedFor: "198.51.100.1", wantCode: http.StatusUnauthorized},
		{name: "first hop wins", trusted: []string{"203.0.113.7"}, forwardedFor: "198.51.100.1, 203.0.113.7", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			credits := &mockCreditService{txn: creditedTxn(), fresh: true}
			h := NewWebhookHandler(credits, testWebhookSecret, tt.trusted)

			body := validWebhookBody()
			rec := postWebhook(h, body, signPayload(body, testWebhookSecret), tt.forwardedFor)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestReceivePaymentWebhook_MissingFields(t *testing.T) {
	credits := &mockCreditService{txn: creditedTxn(), fresh: true}
	h := NewWebhookHandler(credits, testWebhookSecret, nil)

	body := `{"transaction":{"accountNumber":"1234567890"},"order":{"amount":"500"}}`
	rec := postWebhook(h, body, signPayload(body, testWebhookSecret), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, credits.applied)
}

func TestReceivePaymentWebhook_UnresolvedAccount(t *testing.T) {
	credits := &mockCreditService{err: domain.ErrAccountUnresolved}
	h := NewWebhookHandler(credits, testWebhookSecret, nil)

	body := validWebhookBody()
	rec := postWebhook(h, body, signPayload(body, testWebhookSecret), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettlementKobo(t *testing.T) {
	tests := []struct {
		name       string
		settlement string
		gross      string
		want       int64
		wantErr    bool
	}{
		{name: "decimal naira", settlement: "486.75", want: 48675},
		{name: "whole naira", settlement: "500", want: 50000},
		{name: "gross fallback", settlement: "", gross: "120.5", want: 12050},
		{name: "sub-kobo precision", settlement: "486.755", wantErr: true},
		{name: "not a number", settlement: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := settlementKobo(json.Number(tt.settlement), json.Number(tt.gross))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
