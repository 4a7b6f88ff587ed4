package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vtuapp/vtu-backend/internal/domain"
)

const userColumns = `id, name, username, email, phone, password_hash, is_admin,
	wallet_balance, bvn, nin, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (
			id, name, username, email, phone, password_hash, is_admin,
			wallet_balance, bvn, nin, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, user.Name, user.Username, user.Email, user.Phone,
		user.PasswordHash, user.IsAdmin, user.WalletBalance,
		user.BVN, user.NIN, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("Create: %w", domain.ErrUserExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByUsername: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByUsername: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmailOrUsername(ctx context.Context, email, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 OR username = $2`,
		email, username,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByEmailOrUsername: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByEmailOrUsername: %w", err)
	}
	return u, nil
}

// GetByVirtualAccount resolves the owning user of a provider receiving
// account. Unresolvable account numbers map to domain.ErrAccountUnresolved.
func (r *UserRepository) GetByVirtualAccount(ctx context.Context, accountNumber string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		WHERE id = (SELECT user_id FROM virtual_accounts WHERE account_number = $1)`,
		accountNumber,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByVirtualAccount: %w", domain.ErrAccountUnresolved)
		}
		return nil, fmt.Errorf("GetByVirtualAccount: %w", err)
	}
	return u, nil
}

// CreditWallet increments the cached wallet balance inside the caller's
// transaction and returns the new balance. It must commit together with the
// CREDIT transaction row.
func (r *UserRepository) CreditWallet(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64) (int64, error) {
	var newBalance int64
	err := tx.QueryRowContext(ctx,
		`UPDATE users SET wallet_balance = wallet_balance + $1, updated_at = now()
		WHERE id = $2
		RETURNING wallet_balance`,
		amount, userID,
	).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("CreditWallet: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("CreditWallet: %w", err)
	}
	return newBalance, nil
}

// DebitWallet decrements the balance only if sufficient funds remain at
// commit time. The conditional predicate, not the caller's pre-flight check,
// is what keeps the balance non-negative under concurrent purchases.
func (r *UserRepository) DebitWallet(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64) (int64, error) {
	var newBalance int64
	err := tx.QueryRowContext(ctx,
		`UPDATE users SET wallet_balance = wallet_balance - $1, updated_at = now()
		WHERE id = $2 AND wallet_balance >= $1
		RETURNING wallet_balance`,
		amount, userID,
	).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("DebitWallet: %w", domain.ErrInsufficientFunds)
		}
		return 0, fmt.Errorf("DebitWallet: %w", err)
	}
	return newBalance, nil
}

func (r *UserRepository) GetVirtualAccounts(ctx context.Context, userID uuid.UUID) ([]domain.VirtualAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, bank_name, account_number, account_name, account_type,
			tracking_reference, provider, created_at
		FROM virtual_accounts WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetVirtualAccounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.VirtualAccount
	for rows.Next() {
		var a domain.VirtualAccount
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.BankName, &a.AccountNumber, &a.AccountName,
			&a.AccountType, &a.TrackingReference, &a.Provider, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("GetVirtualAccounts: scan: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetVirtualAccounts: rows: %w", err)
	}
	return accounts, nil
}

func (r *UserRepository) CreateVirtualAccounts(ctx context.Context, accounts []domain.VirtualAccount) error {
	for _, a := range accounts {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO virtual_accounts (
				id, user_id, bank_name, account_number, account_name, account_type,
				tracking_reference, provider, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			a.ID, a.UserID, a.BankName, a.AccountNumber, a.AccountName,
			a.AccountType, a.TrackingReference, a.Provider, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("CreateVirtualAccounts: %w", err)
		}
	}
	return nil
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	err := s.Scan(
		&u.ID, &u.Name, &u.Username, &u.Email, &u.Phone, &u.PasswordHash,
		&u.IsAdmin, &u.WalletBalance, &u.BVN, &u.NIN, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
