package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vtuapp/vtu-backend/internal/auth"
	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/logging"
)

type accountUserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetVirtualAccounts(ctx context.Context, userID uuid.UUID) ([]domain.VirtualAccount, error)
	CreateVirtualAccounts(ctx context.Context, accounts []domain.VirtualAccount) error
}

type accountTransactionRepo interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
	SumSettled(ctx context.Context, userID uuid.UUID) (int64, error)
}

type accountProvisioner interface {
	ProvisionAccounts(ctx context.Context, user *domain.User) ([]domain.VirtualAccount, error)
}

type AccountHandler struct {
	users   accountUserRepo
	txns    accountTransactionRepo
	banking accountProvisioner
}

func NewAccountHandler(users accountUserRepo, txns accountTransactionRepo, banking accountProvisioner) *AccountHandler {
	return &AccountHandler{users: users, txns: txns, banking: banking}
}

type virtualAccountDTO struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	AccountType   string `json:"account_type"`
	Provider      string `json:"provider"`
}

func toVirtualAccountDTOs(accounts []domain.VirtualAccount) []virtualAccountDTO {
	out := make([]virtualAccountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, virtualAccountDTO{
			BankName:      a.BankName,
			AccountNumber: a.AccountNumber,
			AccountName:   a.AccountName,
			AccountType:   a.AccountType,
			Provider:      a.Provider,
		})
	}
	return out
}

// ProvisionVirtualAccount creates static receiving accounts for the caller,
// or returns the existing ones. Provisioning is a one-time operation per user.
func (h *AccountHandler) ProvisionVirtualAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	existing, err := h.users.GetVirtualAccounts(r.Context(), principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if len(existing) > 0 {
		RespondSuccess(w, http.StatusOK, map[string]any{
			"accounts": toVirtualAccountDTOs(existing),
		})
		return
	}

	user, err := h.users.GetByID(r.Context(), principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	accounts, err := h.banking.ProvisionAccounts(r.Context(), user)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	now := time.Now().UTC()
	for i := range accounts {
		accounts[i].CreatedAt = now
	}

	if err := h.users.CreateVirtualAccounts(r.Context(), accounts); err != nil {
		RespondDomainError(w, err)
		return
	}

	logging.FromContext(r.Context()).Info("virtual accounts provisioned",
		"user_id", principal.UserID, "count", len(accounts))

	RespondSuccess(w, http.StatusCreated, map[string]any{
		"accounts": toVirtualAccountDTOs(accounts),
	})
}

func (h *AccountHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	user, err := h.users.GetByID(r.Context(), principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"wallet_balance": user.WalletBalance,
	})
}

func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	txns, total, err := h.txns.ListByUser(r.Context(), principal.UserID, limit, offset)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	out := make([]transactionDTO, 0, len(txns))
	for i := range txns {
		out = append(out, toTransactionDTO(&txns[i]))
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"transactions": out,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// AuditWallet replays the caller's settled ledger entries and compares the
// result to the cached balance. The two must always agree; a mismatch means
// the ledger invariant was violated and needs operator attention.
func (h *AccountHandler) AuditWallet(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	user, err := h.users.GetByID(r.Context(), principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	ledgerSum, err := h.txns.SumSettled(r.Context(), principal.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	consistent := ledgerSum == user.WalletBalance
	if !consistent {
		logging.FromContext(r.Context()).Error("wallet balance diverged from ledger",
			"user_id", principal.UserID,
			"wallet_balance", user.WalletBalance,
			"ledger_sum", ledgerSum,
		)
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"wallet_balance": user.WalletBalance,
		"ledger_sum":     ledgerSum,
		"consistent":     consistent,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
