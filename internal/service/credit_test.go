package service_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/repository"
	"github.com/vtuapp/vtu-backend/internal/service"
	"github.com/vtuapp/vtu-backend/internal/testutil"
)

func setupCreditService(t *testing.T, db *sql.DB) *service.CreditService {
	t.Helper()
	return service.NewCreditService(
		repository.NewTransactionRepository(db),
		repository.NewUserRepository(db),
		db,
	)
}

func TestCreditApply_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupCreditService(t, db)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 0)
	testutil.SeedVirtualAccount(t, db, userID, "1234567890")

	txn, applied, err := svc.Apply(ctx, service.CreditEvent{
		Reference:     "TX1",
		Amount:        500,
		AccountNumber: "1234567890",
		Raw:           []byte(`{"transaction":{"reference":"TX1"}}`),
	})

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.TransactionKindCredit, txn.Kind)
	assert.Equal(t, domain.TransactionStatusSuccess, txn.Status)
	assert.Equal(t, int64(500), txn.Amount)
	assert.Equal(t, int64(0), txn.WalletBefore)
	assert.Equal(t, int64(500), txn.WalletAfter)

	assert.Equal(t, int64(500), testutil.GetWalletBalance(t, db, userID))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, userID))
}

func TestCreditApply_Replay_IsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupCreditService(t, db)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 0)
	testutil.SeedVirtualAccount(t, db, userID, "1234567890")

	ev := service.CreditEvent{
		Reference:     "TX1",
		Amount:        500,
		AccountNumber: "1234567890",
	}

	_, applied, err := svc.Apply(ctx, ev)
	require.NoError(t, err)
	require.True(t, applied)

	for i := 0; i < 5; i++ {
		txn, applied, err := svc.Apply(ctx, ev)
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, "TX1", txn.Reference)
	}

	assert.Equal(t, int64(500), testutil.GetWalletBalance(t, db, userID))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, userID))
}

func TestCreditApply_ConcurrentReplay_CreditsOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupCreditService(t, db)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 0)
	testutil.SeedVirtualAccount(t, db, userID, "1234567890")

	ev := service.CreditEvent{
		Reference:     "TX-RACE",
		Amount:        750,
		AccountNumber: "1234567890",
	}

	const deliveries = 8
	var wg sync.WaitGroup
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.Apply(ctx, ev)
		}(i)
	}
	wg.Wait()

	for i := 0; i < deliveries; i++ {
		require.NoError(t, errs[i])
	}

	assert.Equal(t, int64(750), testutil.GetWalletBalance(t, db, userID))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, userID))
}

func TestCreditApply_UnknownAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupCreditService(t, db)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 0)

	_, _, err := svc.Apply(ctx, service.CreditEvent{
		Reference:     "TX2",
		Amount:        500,
		AccountNumber: "0000000000",
	})

	require.ErrorIs(t, err, domain.ErrAccountUnresolved)
	assert.Equal(t, 0, testutil.CountTransactions(t, db, userID))
	assert.Equal(t, int64(0), testutil.GetWalletBalance(t, db, userID))
}

func TestCreditApply_NonPositiveAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupCreditService(t, db)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 0)
	testutil.SeedVirtualAccount(t, db, userID, "1234567890")

	for _, amount := range []int64{0, -100} {
		_, _, err := svc.Apply(ctx, service.CreditEvent{
			Reference:     "TX3",
			Amount:        amount,
			AccountNumber: "1234567890",
		})
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
	}

	assert.Equal(t, 0, testutil.CountTransactions(t, db, userID))
}
