package service_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuapp/vtu-backend/internal/repository"
	"github.com/vtuapp/vtu-backend/internal/service"
	"github.com/vtuapp/vtu-backend/internal/testutil"
)

type fakeRequery struct {
	statuses map[string]service.RequeryStatus
	err      error
}

func (f *fakeRequery) RequeryPurchase(ctx context.Context, reference string) (*service.RequeryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	status, ok := f.statuses[reference]
	if !ok {
		status = service.RequeryPending
	}
	raw, _ := json.Marshal(map[string]string{"status": string(status)})
	return &service.RequeryResult{Status: status, Raw: raw}, nil
}

func setupReconciler(t *testing.T, db *sql.DB, gateway *fakeRequery) *service.Reconciler {
	t.Helper()
	return service.NewReconciler(
		repository.NewTransactionRepository(db),
		repository.NewUserRepository(db),
		gateway,
		db,
		10*time.Minute,
		50,
	)
}

func TestReconciler_DeliveredSettlesSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	txnID := testutil.SeedPendingPurchase(t, db, userID, "DATA-stale-1", 400, 1000, time.Hour)

	rec := setupReconciler(t, db, &fakeRequery{
		statuses: map[string]service.RequeryStatus{"DATA-stale-1": service.RequeryDelivered},
	})

	require.NoError(t, rec.Run(ctx))

	status, walletAfter := testutil.GetTransactionStatus(t, db, txnID)
	assert.Equal(t, "success", status)
	assert.Equal(t, int64(600), walletAfter)
	assert.Equal(t, int64(600), testutil.GetWalletBalance(t, db, userID))
}

func TestReconciler_FailedSettlesWithoutDebit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	txnID := testutil.SeedPendingPurchase(t, db, userID, "DATA-stale-2", 400, 1000, time.Hour)

	rec := setupReconciler(t, db, &fakeRequery{
		statuses: map[string]service.RequeryStatus{"DATA-stale-2": service.RequeryFailed},
	})

	require.NoError(t, rec.Run(ctx))

	status, walletAfter := testutil.GetTransactionStatus(t, db, txnID)
	assert.Equal(t, "failed", status)
	assert.Equal(t, int64(1000), walletAfter)
	assert.Equal(t, int64(1000), testutil.GetWalletBalance(t, db, userID))
}

func TestReconciler_StillPendingLeftAlone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	txnID := testutil.SeedPendingPurchase(t, db, userID, "DATA-stale-3", 400, 1000, time.Hour)

	rec := setupReconciler(t, db, &fakeRequery{statuses: map[string]service.RequeryStatus{}})

	require.NoError(t, rec.Run(ctx))

	status, _ := testutil.GetTransactionStatus(t, db, txnID)
	assert.Equal(t, "pending", status)
	assert.Equal(t, int64(1000), testutil.GetWalletBalance(t, db, userID))
}

func TestReconciler_RequeryErrorLeavesRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	txnID := testutil.SeedPendingPurchase(t, db, userID, "DATA-stale-4", 400, 1000, time.Hour)

	rec := setupReconciler(t, db, &fakeRequery{err: errors.New("gateway unreachable")})

	require.NoError(t, rec.Run(ctx))

	status, _ := testutil.GetTransactionStatus(t, db, txnID)
	assert.Equal(t, "pending", status)
}

func TestReconciler_FreshPendingNotTouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	userID := testutil.SeedUser(t, db, 1000)
	txnID := testutil.SeedPendingPurchase(t, db, userID, "DATA-fresh", 400, 1000, time.Minute)

	rec := setupReconciler(t, db, &fakeRequery{
		statuses: map[string]service.RequeryStatus{"DATA-fresh": service.RequeryDelivered},
	})

	require.NoError(t, rec.Run(ctx))

	status, _ := testutil.GetTransactionStatus(t, db, txnID)
	assert.Equal(t, "pending", status)
	assert.Equal(t, int64(1000), testutil.GetWalletBalance(t, db, userID))
}

func TestReconciler_DeliveredButFundsGone_SettlesFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	// Wallet was drained after the pending row was written.
	userID := testutil.SeedUser(t, db, 100)
	txnID := testutil.SeedPendingPurchase(t, db, userID, "DATA-stale-5", 400, 1000, time.Hour)

	rec := setupReconciler(t, db, &fakeRequery{
		statuses: map[string]service.RequeryStatus{"DATA-stale-5": service.RequeryDelivered},
	})

	require.NoError(t, rec.Run(ctx))

	status, walletAfter := testutil.GetTransactionStatus(t, db, txnID)
	assert.Equal(t, "failed", status)
	assert.Equal(t, int64(1000), walletAfter)
	assert.Equal(t, int64(100), testutil.GetWalletBalance(t, db, userID))
}
