package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/logging"
	"github.com/vtuapp/vtu-backend/internal/service"
)

type creditApplier interface {
	Apply(ctx context.Context, ev service.CreditEvent) (*domain.Transaction, bool, error)
}

// WebhookHandler receives PayVessel payment notifications. The signature is
// HMAC-SHA512 over the exact raw body, so the body must never pass through a
// parsing middleware before it reaches here.
type WebhookHandler struct {
	credits    creditApplier
	secret     string
	trustedIPs []string
}

func NewWebhookHandler(credits creditApplier, secret string, trustedIPs []string) *WebhookHandler {
	return &WebhookHandler{credits: credits, secret: secret, trustedIPs: trustedIPs}
}

type payvesselPayload struct {
	Transaction struct {
		Reference     string `json:"reference"`
		AccountNumber string `json:"accountNumber"`
	} `json:"transaction"`
	Order struct {
		SettlementAmount json.Number `json:"settlement_amount"`
		Amount           json.Number `json:"amount"`
	} `json:"order"`
}

func (p payvesselPayload) validate() []FieldError {
	var errs []FieldError
	if p.Transaction.Reference == "" {
		errs = append(errs, FieldError{Field: "transaction.reference", Message: "required"})
	}
	if p.Transaction.AccountNumber == "" {
		errs = append(errs, FieldError{Field: "transaction.accountNumber", Message: "required"})
	}
	if p.Order.SettlementAmount == "" && p.Order.Amount == "" {
		errs = append(errs, FieldError{Field: "order.settlement_amount", Message: "required"})
	}
	return errs
}

func (h *WebhookHandler) ReceivePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if len(h.trustedIPs) > 0 && !ipAllowed(r, h.trustedIPs) {
		log.Warn("webhook from untrusted address", "remote_addr", r.RemoteAddr)
		RespondAppError(w, ErrIPNotAllowed, nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sig := r.Header.Get("Payvessel-Http-Signature")
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("webhook signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload payvesselPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	amount, err := settlementKobo(payload.Order.SettlementAmount, payload.Order.Amount)
	if err != nil {
		log.Warn("unparseable settlement amount", "error", err)
		RespondValidationError(w, []FieldError{
			{Field: "order.settlement_amount", Message: "must be a positive decimal amount"},
		})
		return
	}

	t, applied, err := h.credits.Apply(r.Context(), service.CreditEvent{
		Reference:     payload.Transaction.Reference,
		Amount:        amount,
		AccountNumber: payload.Transaction.AccountNumber,
		Raw:           body,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	if !applied {
		RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_received"})
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"status":         "credited",
		"transaction_id": t.ID,
	})
}

// settlementKobo converts the provider's decimal naira amount to integer
// kobo, preferring settlement_amount (net of provider fees) over the gross
// order amount.
func settlementKobo(settlement, gross json.Number) (int64, error) {
	n := settlement
	if n == "" {
		n = gross
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, err
	}
	kobo := d.Shift(2)
	if !kobo.IsInteger() {
		return 0, domain.ErrInvalidAmount
	}
	return kobo.IntPart(), nil
}

// ipAllowed trusts the first X-Forwarded-For hop when present, which assumes
// deployment behind a proxy that overwrites the header.
func ipAllowed(r *http.Request, trusted []string) bool {
	remote := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-For"), ",")[0])
	if remote == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			remote = r.RemoteAddr
		} else {
			remote = host
		}
	}
	for _, ip := range trusted {
		if ip == remote {
			return true
		}
	}
	return false
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
