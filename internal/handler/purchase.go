package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vtuapp/vtu-backend/internal/auth"
	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/service/purchase"
)

type purchaser interface {
	Purchase(ctx context.Context, req purchase.Request) (*domain.Transaction, error)
}

type PurchaseHandler struct {
	purchases purchaser
}

func NewPurchaseHandler(purchases purchaser) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

type purchaseRequest struct {
	Network string `json:"network"`
	PlanID  string `json:"plan_id"`
	Phone   string `json:"phone"`
}

func (r purchaseRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Network == "" {
		errs = append(errs, FieldError{Field: "network", Message: "required"})
	} else if !domain.Network(r.Network).IsValid() {
		errs = append(errs, FieldError{Field: "network", Message: "unknown network"})
	}
	if r.PlanID == "" {
		errs = append(errs, FieldError{Field: "plan_id", Message: "required"})
	} else if _, err := uuid.Parse(r.PlanID); err != nil {
		errs = append(errs, FieldError{Field: "plan_id", Message: "must be a valid UUID"})
	}
	if len(r.Phone) < 11 {
		errs = append(errs, FieldError{Field: "phone", Message: "must be a valid phone number"})
	}
	return errs
}

type transactionDTO struct {
	ID           uuid.UUID  `json:"id"`
	Reference    string     `json:"reference"`
	Kind         string     `json:"kind"`
	Channel      string     `json:"channel"`
	Amount       int64      `json:"amount"`
	Status       string     `json:"status"`
	WalletBefore int64      `json:"wallet_before"`
	WalletAfter  int64      `json:"wallet_after"`
	Network      *string    `json:"network,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	PlanID       *uuid.UUID `json:"plan_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:           t.ID,
		Reference:    t.Reference,
		Kind:         string(t.Kind),
		Channel:      t.Channel,
		Amount:       t.Amount,
		Status:       string(t.Status),
		WalletBefore: t.WalletBefore,
		WalletAfter:  t.WalletAfter,
		Network:      t.Network,
		Phone:        t.Phone,
		PlanID:       t.PlanID,
		CreatedAt:    t.CreatedAt,
		SettledAt:    t.SettledAt,
	}
}

type purchaseResponse struct {
	Delivered   bool           `json:"delivered"`
	Transaction transactionDTO `json:"transaction"`
}

// BuyData runs a data purchase for the authenticated user. The response is
// synchronous and always carries the terminal transaction; a gateway failure
// is a well-formed response with delivered=false, not an HTTP error.
func (h *PurchaseHandler) BuyData(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	planID, _ := uuid.Parse(req.PlanID)

	t, err := h.purchases.Purchase(r.Context(), purchase.Request{
		UserID:  principal.UserID,
		Network: domain.Network(req.Network),
		PlanID:  planID,
		Phone:   req.Phone,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, purchaseResponse{
		Delivered:   t.Status == domain.TransactionStatusSuccess,
		Transaction: toTransactionDTO(t),
	})
}
