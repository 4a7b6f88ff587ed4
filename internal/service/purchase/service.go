package purchase

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/vtuapp/vtu-backend/internal/domain"
)

type transactionRepo interface {
	CreatePending(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	Settle(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus, walletAfter int64, raw json.RawMessage) error
}

type userRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	DebitWallet(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64) (int64, error)
}

type planRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DataPlan, error)
}

// GatewayRequest is the provider-facing purchase order. Reference doubles as
// the provider-side idempotency key; the gateway is assumed to dedupe on it.
type GatewayRequest struct {
	Network       domain.Network
	Phone         string
	GatewayPlanID string
	Reference     string
}

// GatewayResult is the only semantics assumed of the provider: a boolean
// outcome plus an opaque payload kept for audit.
type GatewayResult struct {
	Succeeded bool
	Raw       json.RawMessage
}

type gatewayClient interface {
	PurchaseData(ctx context.Context, req GatewayRequest) (*GatewayResult, error)
}

type Service struct {
	txns    transactionRepo
	users   userRepo
	plans   planRepo
	gateway gatewayClient
	db      *sql.DB
}

func NewService(txns transactionRepo, users userRepo, plans planRepo, gateway gatewayClient, db *sql.DB) *Service {
	return &Service{
		txns:    txns,
		users:   users,
		plans:   plans,
		gateway: gateway,
		db:      db,
	}
}

func validatePlan(plan *domain.DataPlan, network domain.Network) error {
	if !plan.Purchasable() {
		return fmt.Errorf("validatePlan: %w", domain.ErrPlanUnavailable)
	}
	if plan.Network != network {
		return fmt.Errorf("validatePlan: %w", domain.ErrNetworkMismatch)
	}
	return nil
}
