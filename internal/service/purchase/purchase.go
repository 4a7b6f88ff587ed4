package purchase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/logging"
)

type Request struct {
	UserID  uuid.UUID
	Network domain.Network
	PlanID  uuid.UUID
	Phone   string
}

// Purchase runs one attempt through the full state machine: validate, persist
// a pending transaction, dispatch to the gateway once, settle. Gateway
// failures and timeouts are absorbed into a failed settlement; the returned
// transaction is always terminal unless storage itself fails.
func (s *Service) Purchase(ctx context.Context, req Request) (*domain.Transaction, error) {
	log := logging.FromContext(ctx)

	plan, err := s.plans.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("Purchase: %w", err)
	}
	if err := validatePlan(plan, req.Network); err != nil {
		return nil, fmt.Errorf("Purchase: %w", err)
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("Purchase: %w", err)
	}

	// Pre-flight only. The commit-time conditional debit in settleSuccess is
	// what actually prevents overdraft under concurrent attempts.
	if user.WalletBalance < plan.Price {
		return nil, fmt.Errorf("Purchase: %w", domain.ErrInsufficientFunds)
	}

	t := buildPendingTransaction(req, plan, user.WalletBalance)

	// Persisted before dispatch so the attempt is auditable even if the
	// process dies while the gateway call is in flight.
	if err := s.txns.CreatePending(ctx, t); err != nil {
		return nil, fmt.Errorf("Purchase: create pending: %w", err)
	}

	result, err := s.gateway.PurchaseData(ctx, GatewayRequest{
		Network:       plan.Network,
		Phone:         req.Phone,
		GatewayPlanID: plan.GatewayPlanID,
		Reference:     t.Reference,
	})
	if err != nil {
		log.Warn("gateway dispatch failed",
			"transaction_id", t.ID,
			"reference", t.Reference,
			"error", err,
		)
		return s.settleFailed(ctx, t, failureRaw(err))
	}
	if !result.Succeeded {
		log.Info("gateway reported failure",
			"transaction_id", t.ID,
			"reference", t.Reference,
		)
		return s.settleFailed(ctx, t, result.Raw)
	}

	settled, err := s.settleSuccess(ctx, t, result.Raw)
	if err != nil {
		return nil, fmt.Errorf("Purchase: %w", err)
	}

	log.Info("data purchase settled",
		"transaction_id", settled.ID,
		"reference", settled.Reference,
		"status", settled.Status,
		"amount", settled.Amount,
		"wallet_after", settled.WalletAfter,
	)

	return settled, nil
}

func buildPendingTransaction(req Request, plan *domain.DataPlan, balance int64) *domain.Transaction {
	now := time.Now().UTC()
	network := string(plan.Network)
	return &domain.Transaction{
		ID:            uuid.New(),
		UserID:        req.UserID,
		Reference:     NewReference(),
		Kind:          domain.TransactionKindPurchase,
		Channel:       domain.ChannelDataGateway,
		Amount:        plan.Price,
		Status:        domain.TransactionStatusPending,
		WalletBefore:  balance,
		WalletAfter:   balance,
		Network:       &network,
		Phone:         &req.Phone,
		PlanID:        &plan.ID,
		GatewayName:   &plan.GatewayName,
		GatewayPlanID: &plan.GatewayPlanID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// NewReference mints a purchase reference, distinct from provider-issued
// credit references.
func NewReference() string {
	return "DATA-" + uuid.NewString()
}

// settleSuccess debits the wallet and marks the transaction successful in one
// database transaction. If funds ran out between pre-flight and commit, the
// purchase settles failed instead; the balance never goes negative.
func (s *Service) settleSuccess(ctx context.Context, t *domain.Transaction, raw json.RawMessage) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settleSuccess: begin tx: %w", err)
	}
	defer tx.Rollback()

	newBalance, err := s.users.DebitWallet(ctx, tx, t.UserID, t.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			logging.FromContext(ctx).Warn("funds spent before settlement, failing purchase",
				"transaction_id", t.ID,
				"reference", t.Reference,
			)
			return s.settleFailed(ctx, t, raw)
		}
		return nil, fmt.Errorf("settleSuccess: %w", err)
	}

	if err := s.txns.Settle(ctx, tx, t.ID, domain.TransactionStatusSuccess, newBalance, raw); err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			// Another settler (the reconciler) got here first; the debit in
			// this transaction rolls back with it.
			return s.txns.GetByID(ctx, t.ID)
		}
		return nil, fmt.Errorf("settleSuccess: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("settleSuccess: commit: %w", err)
	}

	return s.txns.GetByID(ctx, t.ID)
}

// settleFailed marks the transaction failed with the balance untouched.
func (s *Service) settleFailed(ctx context.Context, t *domain.Transaction, raw json.RawMessage) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settleFailed: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.txns.Settle(ctx, tx, t.ID, domain.TransactionStatusFailed, t.WalletBefore, raw); err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			return s.txns.GetByID(ctx, t.ID)
		}
		return nil, fmt.Errorf("settleFailed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("settleFailed: commit: %w", err)
	}

	return s.txns.GetByID(ctx, t.ID)
}

func failureRaw(err error) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"error": err.Error()})
	return raw
}
