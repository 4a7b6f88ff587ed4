package purchase_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuapp/vtu-backend/internal/domain"
	"github.com/vtuapp/vtu-backend/internal/repository"
	"github.com/vtuapp/vtu-backend/internal/service/purchase"
	"github.com/vtuapp/vtu-backend/internal/testutil"
)

type fakeGateway struct {
	mu         sync.Mutex
	succeed    bool
	err        error
	dispatches int
}

func (f *fakeGateway) PurchaseData(ctx context.Context, req purchase.GatewayRequest) (*purchase.GatewayResult, error) {
	f.mu.Lock()
	f.dispatches++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	raw, _ := json.Marshal(map[string]any{"ok": f.succeed, "request_id": req.Reference})
	return &purchase.GatewayResult{Succeeded: f.succeed, Raw: raw}, nil
}

func setupPurchaseService(t *testing.T, db *sql.DB, gateway *fakeGateway) *purchase.Service {
	t.Helper()
	return purchase.NewService(
		repository.NewTransactionRepository(db),
		repository.NewUserRepository(db),
		repository.NewPlanRepository(db),
		gateway,
		db,
	)
}

func TestPurchase_GatewaySuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := &fakeGateway{succeed: true}
	svc := setupPurchaseService(t, db, gateway)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	planID := testutil.SeedDataPlan(t, db, testutil.PlanOpts{
		Network: domain.NetworkMTN, Price: 500, GatewayStatus: true, IsActive: true,
	})

	txn, err := svc.Purchase(ctx, purchase.Request{
		UserID:  userID,
		Network: domain.NetworkMTN,
		PlanID:  planID,
		Phone:   "08031234567",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusSuccess, txn.Status)
	assert.Equal(t, int64(500), txn.Amount)
	assert.Equal(t, int64(1000), txn.WalletBefore)
	assert.Equal(t, int64(500), txn.WalletAfter)
	assert.NotNil(t, txn.SettledAt)

	assert.Equal(t, int64(500), testutil.GetWalletBalance(t, db, userID))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, userID))
}

func TestPurchase_GatewayFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := &fakeGateway{succeed: false}
	svc := setupPurchaseService(t, db, gateway)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	planID := testutil.SeedDataPlan(t, db, testutil.PlanOpts{
		Network: domain.NetworkMTN, Price: 500, GatewayStatus: true, IsActive: true,
	})

	txn, err := svc.Purchase(ctx, purchase.Request{
		UserID:  userID,
		Network: domain.NetworkMTN,
		PlanID:  planID,
		Phone:   "08031234567",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, txn.Status)
	assert.Equal(t, int64(1000), txn.WalletBefore)
	assert.Equal(t, int64(1000), txn.WalletAfter)

	assert.Equal(t, int64(1000), testutil.GetWalletBalance(t, db, userID))
}

func TestPurchase_GatewayError_FailsClosed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := &fakeGateway{err: errors.New("connection refused")}
	svc := setupPurchaseService(t, db, gateway)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	planID := testutil.SeedDataPlan(t, db, testutil.PlanOpts{
		Network: domain.NetworkMTN, Price: 500, GatewayStatus: true, IsActive: true,
	})

	txn, err := svc.Purchase(ctx, purchase.Request{
		UserID:  userID,
		Network: domain.NetworkMTN,
		PlanID:  planID,
		Phone:   "08031234567",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, txn.Status)
	assert.Equal(t, int64(1000), testutil.GetWalletBalance(t, db, userID))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, userID))
}

func TestPurchase_InsufficientFunds_NoTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := &fakeGateway{succeed: true}
	svc := setupPurchaseService(t, db, gateway)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	planID := testutil.SeedDataPlan(t, db, testutil.PlanOpts{
		Network: domain.NetworkMTN, Price: 1500, GatewayStatus: true, IsActive: true,
	})

	_, err := svc.Purchase(ctx, purchase.Request{
		UserID:  userID,
		Network: domain.NetworkMTN,
		PlanID:  planID,
		Phone:   "08031234567",
	})

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, 0, testutil.CountTransactions(t, db, userID))
	assert.Equal(t, 0, gateway.dispatches)
	assert.Equal(t, int64(1000), testutil.GetWalletBalance(t, db, userID))
}

func TestPurchase_InactivePlan_Rejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupPurchaseService(t, db, &fakeGateway{succeed: true})
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 10_000)
	planID := testutil.SeedDataPlan(t, db, testutil.PlanOpts{
		Network: domain.NetworkMTN, Price: 500, GatewayStatus: true, IsActive: false,
	})

	_, err := svc.Purchase(ctx, purchase.Request{
		UserID:  userID,
		Network: domain.NetworkMTN,
		PlanID:  planID,
		Phone:   "08031234567",
	})

	require.ErrorIs(t, err, domain.ErrPlanUnavailable)
	assert.Equal(t, 0, testutil.CountTransactions(t, db, userID))
}

// Concurrent purchases must never drive the balance negative: the commit-time
// conditional debit lets through only as many as the wallet can cover.
func TestPurchase_Concurrent_NoOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := &fakeGateway{succeed: true}
	svc := setupPurchaseService(t, db, gateway)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	planID := testutil.SeedDataPlan(t, db, testutil.PlanOpts{
		Network: domain.NetworkMTN, Price: 400, GatewayStatus: true, IsActive: true,
	})

	const attempts = 5
	results := make([]*domain.Transaction, attempts)
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Purchase(ctx, purchase.Request{
				UserID:  userID,
				Network: domain.NetworkMTN,
				PlanID:  planID,
				Phone:   "08031234567",
			})
		}(i)
	}
	wg.Wait()

	var succeeded int
	for i := 0; i < attempts; i++ {
		if errs[i] == nil && results[i].Status == domain.TransactionStatusSuccess {
			succeeded++
		}
	}

	// 1000 / 400 = at most 2 successful debits.
	assert.LessOrEqual(t, succeeded, 2)

	balance := testutil.GetWalletBalance(t, db, userID)
	assert.GreaterOrEqual(t, balance, int64(0))
	assert.Equal(t, int64(1000)-int64(succeeded)*400, balance)
}

// A transaction settles exactly once: a second settlement attempt on the same
// row must not double-debit.
func TestPurchase_LedgerConservation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gateway := &fakeGateway{succeed: true}
	svc := setupPurchaseService(t, db, gateway)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 2000)
	planID := testutil.SeedDataPlan(t, db, testutil.PlanOpts{
		Network: domain.NetworkAirtel, Price: 700, GatewayStatus: true, IsActive: true,
	})

	for i := 0; i < 2; i++ {
		_, err := svc.Purchase(ctx, purchase.Request{
			UserID:  userID,
			Network: domain.NetworkAirtel,
			PlanID:  planID,
			Phone:   "08031234567",
		})
		require.NoError(t, err)
	}

	txns := repository.NewTransactionRepository(db)
	sum, err := txns.SumSettled(ctx, userID)
	require.NoError(t, err)

	assert.Equal(t, int64(-1400), sum)
	assert.Equal(t, int64(2000)+sum, testutil.GetWalletBalance(t, db, userID))
}
