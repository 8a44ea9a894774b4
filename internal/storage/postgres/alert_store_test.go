package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-alerts/internal/domain"
	"solana-alerts/internal/storage"
)

func testAlert(mint string) *domain.Alert {
	return &domain.Alert{
		ID:            uuid.New().String(),
		OwnerID:       "owner-001",
		Mint:          mint,
		ThresholdType: domain.ThresholdPrice,
		Threshold:     decimal.RequireFromString("1.5"),
		Comparison:    domain.ComparisonAbove,
		Channel:       domain.ChannelTelegram,
		Recipient:     "123456789",
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestAlertStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertStore(pool)
	ctx := context.Background()

	a := testAlert("So11111111111111111111111111111111111111112")
	a.CirculatingSupply = ptr(1_000_000.0)
	a.MarketCapSnapshot = ptr(250_000.0)

	err := store.Insert(ctx, a)
	require.NoError(t, err)

	retrieved, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)

	assert.Equal(t, a.ID, retrieved.ID)
	assert.Equal(t, a.Mint, retrieved.Mint)
	assert.Equal(t, a.ThresholdType, retrieved.ThresholdType)
	assert.True(t, a.Threshold.Equal(retrieved.Threshold))
	assert.Equal(t, a.Comparison, retrieved.Comparison)
	assert.Equal(t, a.Channel, retrieved.Channel)
	assert.Equal(t, *a.CirculatingSupply, *retrieved.CirculatingSupply)
	assert.Equal(t, *a.MarketCapSnapshot, *retrieved.MarketCapSnapshot)
	assert.True(t, retrieved.IsActive)
	assert.False(t, retrieved.IsTriggered)
	assert.Nil(t, retrieved.TriggeredAt)
}

func TestAlertStore_GetByID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertStore(pool)

	_, err := store.GetByID(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAlertStore_MarkTriggered_ExactlyOnce(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertStore(pool)
	ctx := context.Background()

	a := testAlert("mint-triggered-once")
	require.NoError(t, store.Insert(ctx, a))

	// First caller wins the conditional update.
	won, err := store.MarkTriggered(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, won)

	// Any later caller must observe zero rows affected.
	won, err = store.MarkTriggered(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, won)

	retrieved, err := store.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, retrieved.IsActive)
	assert.True(t, retrieved.IsTriggered)
	assert.NotNil(t, retrieved.TriggeredAt)
}

func TestAlertStore_MarkTriggered_InactiveAlert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertStore(pool)
	ctx := context.Background()

	a := testAlert("mint-inactive")
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Deactivate(ctx, a.ID))

	won, err := store.MarkTriggered(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, won, "deactivated alert must not trigger")
}

func TestAlertStore_ActiveQueries(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertStore(pool)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	a1 := testAlert("mintB")
	a1.CreatedAt = base
	a2 := testAlert("mintA")
	a2.CreatedAt = base.Add(time.Minute)
	a3 := testAlert("mintB")
	a3.CreatedAt = base.Add(2 * time.Minute)

	for _, a := range []*domain.Alert{a1, a2, a3} {
		require.NoError(t, store.Insert(ctx, a))
	}

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	assert.Equal(t, a1.ID, active[0].ID, "oldest first")

	byMint, err := store.ListActiveByMint(ctx, "mintB")
	require.NoError(t, err)
	require.Len(t, byMint, 2)

	mints, err := store.DistinctActiveMints(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mintB", "mintA"}, mints)

	oldest, err := store.OldestActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, a1.ID, oldest.ID)

	n, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Exhaust mintB and re-check.
	for _, id := range []string{a1.ID, a3.ID} {
		won, err := store.MarkTriggered(ctx, id)
		require.NoError(t, err)
		require.True(t, won)
	}

	mints, err = store.DistinctActiveMints(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mintA"}, mints)

	oldest, err = store.OldestActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, a2.ID, oldest.ID)
}

func TestAlertStore_Delete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAlertStore(pool)
	ctx := context.Background()

	a := testAlert("mint-delete")
	require.NoError(t, store.Insert(ctx, a))
	require.NoError(t, store.Delete(ctx, a.ID))

	_, err := store.GetByID(ctx, a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.Delete(ctx, a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
