package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vtuapp/vtu-backend/internal/domain"
)

func SeedUser(t *testing.T, db *sql.DB, walletBalance int64) uuid.UUID {
	t.Helper()

	id := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	suffix := id.String()[:8]
	_, err = db.Exec(
		`INSERT INTO users (id, name, username, email, phone, password_hash, wallet_balance)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, "Test User", "user_"+suffix, suffix+"@example.com", "08011112222",
		string(hash), walletBalance,
	)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func SeedVirtualAccount(t *testing.T, db *sql.DB, userID uuid.UUID, accountNumber string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO virtual_accounts (id, user_id, bank_name, account_number, account_name,
			account_type, tracking_reference, provider)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), userID, "9PSB", accountNumber, "TEST USER", "STATIC",
		"trk-"+accountNumber, "payvessel",
	)
	if err != nil {
		t.Fatalf("seed virtual account: %v", err)
	}
}

type PlanOpts struct {
	Network       domain.Network
	Price         int64
	GatewayStatus bool
	IsActive      bool
}

func SeedDataPlan(t *testing.T, db *sql.DB, opts PlanOpts) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO data_plans (id, network, plan_name, data_size_label, price, validity_days,
			data_type, plan_type, gateway_name, gateway_plan_id, gateway_status, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, opts.Network, "Plan "+id.String()[:8], "1GB", opts.Price, 30,
		domain.DataTypeSME, domain.PlanTypeMonthly, "DEFAULT", "var-"+id.String()[:8],
		opts.GatewayStatus, opts.IsActive,
	)
	if err != nil {
		t.Fatalf("seed data plan: %v", err)
	}
	return id
}

func SeedPendingPurchase(t *testing.T, db *sql.DB, userID uuid.UUID, reference string, amount, walletBefore int64, age time.Duration) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO transactions (id, user_id, reference, kind, channel, amount, status,
			wallet_before, wallet_after, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		id, userID, reference, domain.TransactionKindPurchase, domain.ChannelDataGateway,
		amount, domain.TransactionStatusPending, walletBefore, walletBefore,
		time.Now().UTC().Add(-age),
	)
	if err != nil {
		t.Fatalf("seed pending purchase: %v", err)
	}
	return id
}

func GetWalletBalance(t *testing.T, db *sql.DB, userID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	if err := db.QueryRow(
		`SELECT wallet_balance FROM users WHERE id = $1`, userID,
	).Scan(&balance); err != nil {
		t.Fatalf("get wallet balance: %v", err)
	}
	return balance
}

func CountTransactions(t *testing.T, db *sql.DB, userID uuid.UUID) int {
	t.Helper()

	var count int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID,
	).Scan(&count); err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return count
}

func GetTransactionStatus(t *testing.T, db *sql.DB, id uuid.UUID) (string, int64) {
	t.Helper()

	var status string
	var walletAfter int64
	if err := db.QueryRow(
		`SELECT status, wallet_after FROM transactions WHERE id = $1`, id,
	).Scan(&status, &walletAfter); err != nil {
		t.Fatalf("get transaction status: %v", err)
	}
	return status, walletAfter
}
