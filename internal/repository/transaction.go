package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vtuapp/vtu-backend/internal/domain"
)

const transactionColumns = `id, user_id, reference, kind, channel, amount, status,
	wallet_before, wallet_after, network, phone, plan_id, gateway_name,
	gateway_plan_id, raw, created_at, updated_at, settled_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a transaction inside the caller's database transaction.
// The unique index on reference is the idempotency boundary; violations
// surface as pq error 23505 for the caller to classify.
func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, user_id, reference, kind, channel, amount, status,
			wallet_before, wallet_after, network, phone, plan_id, gateway_name,
			gateway_plan_id, raw, created_at, updated_at, settled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)`,
		t.ID, t.UserID, t.Reference, t.Kind, t.Channel, t.Amount, t.Status,
		t.WalletBefore, t.WalletAfter, t.Network, t.Phone, t.PlanID,
		t.GatewayName, t.GatewayPlanID, rawOrNil(t.Raw),
		t.CreatedAt, t.UpdatedAt, t.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// CreatePending persists a pending PURCHASE row outside any enclosing
// transaction, so the audit trail survives a crash during gateway dispatch.
func (r *TransactionRepository) CreatePending(ctx context.Context, t *domain.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("CreatePending: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := r.Create(ctx, tx, t); err != nil {
		return fmt.Errorf("CreatePending: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("CreatePending: commit: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByReference: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByReference: %w", err)
	}
	return t, nil
}

// Settle moves a pending transaction to a terminal status. The status
// predicate makes settlement exactly-once: a second settle attempt affects
// zero rows and reports domain.ErrAlreadySettled.
func (r *TransactionRepository) Settle(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus, walletAfter int64, raw json.RawMessage) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE transactions
		SET status = $1, wallet_after = $2, raw = COALESCE($3, raw),
			settled_at = now(), updated_at = now()
		WHERE id = $4 AND status = $5`,
		status, walletAfter, rawOrNil(raw), id, domain.TransactionStatusPending,
	)
	if err != nil {
		return fmt.Errorf("Settle: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Settle: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Settle: %w", domain.ErrAlreadySettled)
	}
	return nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByUser: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return txns, total, nil
}

// GetStalePending returns PURCHASE transactions left pending longer than
// maxAge, oldest first. SKIP LOCKED keeps concurrent reconciler runs from
// claiming the same rows.
func (r *TransactionRepository) GetStalePending(ctx context.Context, maxAge time.Duration, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE kind = $1 AND status = $2 AND created_at < now() - $3::interval
		ORDER BY created_at LIMIT $4 FOR UPDATE SKIP LOCKED`,
		domain.TransactionKindPurchase, domain.TransactionStatusPending,
		fmt.Sprintf("%d seconds", int(maxAge.Seconds())), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetStalePending: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("GetStalePending: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetStalePending: rows: %w", err)
	}
	return txns, nil
}

// SumSettled replays the ledger for one user: successful credits minus
// successful purchases. The cached wallet_balance must always equal this.
func (r *TransactionRepository) SumSettled(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN kind = $1 THEN amount ELSE -amount END), 0)
		FROM transactions WHERE user_id = $2 AND status = $3`,
		domain.TransactionKindCredit, userID, domain.TransactionStatusSuccess,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("SumSettled: %w", err)
	}
	return sum, nil
}

// rawOrNil renders the payload as text so the driver does not send jsonb
// parameters in bytea format.
func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var planID uuid.NullUUID
	var raw *[]byte

	err := s.Scan(
		&t.ID, &t.UserID, &t.Reference, &t.Kind, &t.Channel, &t.Amount, &t.Status,
		&t.WalletBefore, &t.WalletAfter, &t.Network, &t.Phone, &planID,
		&t.GatewayName, &t.GatewayPlanID, &raw,
		&t.CreatedAt, &t.UpdatedAt, &t.SettledAt,
	)
	if err != nil {
		return nil, err
	}

	if planID.Valid {
		t.PlanID = &planID.UUID
	}
	if raw != nil {
		t.Raw = *raw
	}

	return &t, nil
}
