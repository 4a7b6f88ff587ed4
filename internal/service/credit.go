package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/logging"
)

type creditTransactionRepo interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
}

type creditUserRepo interface {
	GetByVirtualAccount(ctx context.Context, accountNumber string) (*domain.User, error)
	CreditWallet(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64) (int64, error)
}

// CreditService applies provider payment notifications to the ledger.
// Authenticity of the event is the handler's concern; this service owns
// idempotency and atomicity.
type CreditService struct {
	txns  creditTransactionRepo
	users creditUserRepo
	db    *sql.DB
}

func NewCreditService(txns creditTransactionRepo, users creditUserRepo, db *sql.DB) *CreditService {
	return &CreditService{txns: txns, users: users, db: db}
}

type CreditEvent struct {
	Reference     string
	Amount        int64
	AccountNumber string
	Raw           json.RawMessage
}

// Apply credits the beneficiary's wallet exactly once per reference. The
// second return value is false when the event was seen before, which callers
// acknowledge without any state change. The transaction row and the balance
// increment commit together or not at all.
func (s *CreditService) Apply(ctx context.Context, ev CreditEvent) (*domain.Transaction, bool, error) {
	log := logging.FromContext(ctx)

	if ev.Amount <= 0 {
		return nil, false, fmt.Errorf("Apply: %w", domain.ErrInvalidAmount)
	}

	existing, err := s.txns.GetByReference(ctx, ev.Reference)
	if err == nil {
		log.Info("duplicate credit event acknowledged", "reference", ev.Reference)
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("Apply: %w", err)
	}

	user, err := s.users.GetByVirtualAccount(ctx, ev.AccountNumber)
	if err != nil {
		return nil, false, fmt.Errorf("Apply: %w", err)
	}

	t, err := s.applyCredit(ctx, user.ID, ev)
	if err != nil {
		if isDuplicateReference(err) {
			// Redelivery raced us past the lookup. The unique index on
			// reference is the real idempotency authority.
			existing, refetchErr := s.txns.GetByReference(ctx, ev.Reference)
			if refetchErr != nil {
				return nil, false, fmt.Errorf("Apply: %w", refetchErr)
			}
			log.Info("duplicate credit event acknowledged (race)", "reference", ev.Reference)
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("Apply: %w", err)
	}

	log.Info("wallet credited",
		"transaction_id", t.ID,
		"user_id", user.ID,
		"reference", ev.Reference,
		"amount", ev.Amount,
		"wallet_after", t.WalletAfter,
	)

	return t, true, nil
}

func (s *CreditService) applyCredit(ctx context.Context, userID uuid.UUID, ev CreditEvent) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("applyCredit: begin tx: %w", err)
	}
	defer tx.Rollback()

	newBalance, err := s.users.CreditWallet(ctx, tx, userID, ev.Amount)
	if err != nil {
		return nil, fmt.Errorf("applyCredit: %w", err)
	}

	now := time.Now().UTC()
	t := &domain.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		Reference:    ev.Reference,
		Kind:         domain.TransactionKindCredit,
		Channel:      domain.ChannelVirtualAccount,
		Amount:       ev.Amount,
		Status:       domain.TransactionStatusSuccess,
		WalletBefore: newBalance - ev.Amount,
		WalletAfter:  newBalance,
		Raw:          ev.Raw,
		CreatedAt:    now,
		UpdatedAt:    now,
		SettledAt:    &now,
	}

	if err := s.txns.Create(ctx, tx, t); err != nil {
		return nil, fmt.Errorf("applyCredit: create transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("applyCredit: commit: %w", err)
	}

	return t, nil
}

func isDuplicateReference(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
