package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/logging"
)

type reconcilerTransactionRepo interface {
	GetStalePending(ctx context.Context, maxAge time.Duration, limit int) ([]domain.Transaction, error)
	Settle(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus, walletAfter int64, raw json.RawMessage) error
}

type reconcilerUserRepo interface {
	DebitWallet(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64) (int64, error)
}

type requeryClient interface {
	RequeryPurchase(ctx context.Context, reference string) (*RequeryResult, error)
}

// Reconciler resolves purchases stranded in pending, typically after a crash
// between gateway dispatch and settlement. It requeries the gateway for each
// stale row and settles it the same way the live purchase path would have.
type Reconciler struct {
	txns      reconcilerTransactionRepo
	users     reconcilerUserRepo
	gateway   requeryClient
	db        *sql.DB
	maxAge    time.Duration
	batchSize int
}

func NewReconciler(txns reconcilerTransactionRepo, users reconcilerUserRepo, gateway requeryClient, db *sql.DB, maxAge time.Duration, batchSize int) *Reconciler {
	return &Reconciler{
		txns:      txns,
		users:     users,
		gateway:   gateway,
		db:        db,
		maxAge:    maxAge,
		batchSize: batchSize,
	}
}

// Run processes one batch of stale pending purchases. Rows the gateway still
// reports as pending, and rows whose requery fails, are left for the next run.
func (r *Reconciler) Run(ctx context.Context) error {
	log := logging.FromContext(ctx)

	stale, err := r.txns.GetStalePending(ctx, r.maxAge, r.batchSize)
	if err != nil {
		return fmt.Errorf("Run: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	log.Info("reconciling stale pending purchases", "count", len(stale))

	var settled, skipped int
	for i := range stale {
		t := &stale[i]
		resolved, err := r.reconcile(ctx, t)
		if err != nil {
			skipped++
			log.Error("reconcile failed",
				"transaction_id", t.ID,
				"reference", t.Reference,
				"error", err,
			)
			continue
		}
		if resolved {
			settled++
		} else {
			skipped++
		}
	}

	log.Info("reconcile run complete", "settled", settled, "skipped", skipped)
	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, t *domain.Transaction) (bool, error) {
	result, err := r.gateway.RequeryPurchase(ctx, t.Reference)
	if err != nil {
		return false, fmt.Errorf("reconcile: %w", err)
	}

	log := logging.FromContext(ctx)

	switch result.Status {
	case RequeryDelivered:
		if err := r.settleDelivered(ctx, t, result.Raw); err != nil {
			return false, fmt.Errorf("reconcile: %w", err)
		}
		log.Info("stale purchase settled as success",
			"transaction_id", t.ID, "reference", t.Reference)
		return true, nil

	case RequeryFailed:
		if err := r.settleFailed(ctx, t, result.Raw); err != nil {
			return false, fmt.Errorf("reconcile: %w", err)
		}
		log.Info("stale purchase settled as failed",
			"transaction_id", t.ID, "reference", t.Reference)
		return true, nil

	default:
		log.Info("gateway still reports pending, leaving for next run",
			"transaction_id", t.ID, "reference", t.Reference)
		return false, nil
	}
}

func (r *Reconciler) settleDelivered(ctx context.Context, t *domain.Transaction, raw []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settleDelivered: begin tx: %w", err)
	}
	defer tx.Rollback()

	newBalance, err := r.users.DebitWallet(ctx, tx, t.UserID, t.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			// Delivered but the wallet can no longer cover it. Settle failed
			// so the balance never goes negative; the shortfall is logged for
			// manual follow-up.
			logging.FromContext(ctx).Error("delivered purchase exceeds wallet balance",
				"transaction_id", t.ID, "reference", t.Reference, "amount", t.Amount)
			return r.settleFailed(ctx, t, raw)
		}
		return fmt.Errorf("settleDelivered: %w", err)
	}

	if err := r.txns.Settle(ctx, tx, t.ID, domain.TransactionStatusSuccess, newBalance, raw); err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			return nil
		}
		return fmt.Errorf("settleDelivered: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settleDelivered: commit: %w", err)
	}
	return nil
}

func (r *Reconciler) settleFailed(ctx context.Context, t *domain.Transaction, raw []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settleFailed: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := r.txns.Settle(ctx, tx, t.ID, domain.TransactionStatusFailed, t.WalletBefore, raw); err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			return nil
		}
		return fmt.Errorf("settleFailed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settleFailed: commit: %w", err)
	}
	return nil
}
