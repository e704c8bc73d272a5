package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"gatebot/internal/models/db_models"
)

func newTestRepo(t *testing.T) (IChargeRepository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&db_models.Charge{}))

	return NewChargeRepository(db), db
}

func newCharge(chargeID string, userID int64, createdAt time.Time) *db_models.Charge {
	return &db_models.Charge{
		ChargeID:    chargeID,
		UserID:      userID,
		DisplayName: "@tester",
		PlanType:    db_models.PlanMonthly,
		Amount:      29.90,
		CreatedAt:   createdAt,
	}
}

func TestCreateChargeKeepsSinglePending(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		charge := newCharge(fmt.Sprintf("TX%02d", i), 42, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.CreateCharge(ctx, charge))

		var pending int64
		require.NoError(t, db.Model(&db_models.Charge{}).
			Where("user_id = ? AND status = ?", 42, db_models.ChargeStatusPending).
			Count(&pending).Error)
		assert.Equal(t, int64(1), pending, "after create #%d", i)
	}

	// Everything except the newest must have been cancelled.
	var cancelled int64
	require.NoError(t, db.Model(&db_models.Charge{}).
		Where("user_id = ? AND status = ?", 42, db_models.ChargeStatusCancelled).
		Count(&cancelled).Error)
	assert.Equal(t, int64(19), cancelled)
}

func TestCreateChargeDoesNotTouchOtherUsers(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.CreateCharge(ctx, newCharge("TXA", 1, now)))
	require.NoError(t, repo.CreateCharge(ctx, newCharge("TXB", 2, now)))

	recA, err := repo.FindLatestPending(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, recA)
	assert.Equal(t, "TXA", recA.ChargeID)

	recB, err := repo.FindLatestPending(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, recB)
	assert.Equal(t, "TXB", recB.ChargeID)
}

func TestFindLatestPendingPicksNewest(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	// Force the buggy-elsewhere shape of two pending rows for one user.
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	old := newCharge("TXOLD", 7, base)
	old.Status = db_models.ChargeStatusPending
	require.NoError(t, db.Create(old).Error)
	newer := newCharge("TXNEW", 7, base.Add(5*time.Minute))
	newer.Status = db_models.ChargeStatusPending
	require.NoError(t, db.Create(newer).Error)

	rec, err := repo.FindLatestPending(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "TXNEW", rec.ChargeID)
}

func TestFindLatestPendingNone(t *testing.T) {
	repo, _ := newTestRepo(t)

	rec, err := repo.FindLatestPending(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMarkApprovedIsIdempotent(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateCharge(ctx, newCharge("TX1", 42, time.Now())))

	firstAt := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	transitioned, err := repo.MarkApproved(ctx, "TX1", firstAt)
	require.NoError(t, err)
	assert.True(t, transitioned)

	// The second call must not win, and must not move approvedAt.
	transitioned, err = repo.MarkApproved(ctx, "TX1", firstAt.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, transitioned)

	var rec db_models.Charge
	require.NoError(t, db.First(&rec, "charge_id = ?", "TX1").Error)
	assert.Equal(t, db_models.ChargeStatusApproved, rec.Status)
	require.NotNil(t, rec.ApprovedAt)
	assert.Equal(t, firstAt.Unix(), rec.ApprovedAt.Unix())
}

func TestMarkApprovedUnknownCharge(t *testing.T) {
	repo, _ := newTestRepo(t)

	transitioned, err := repo.MarkApproved(context.Background(), "NOPE", time.Now())
	require.NoError(t, err)
	assert.False(t, transitioned)
}

func TestStats(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	now := time.Now()
	a := newCharge("TX1", 1, now)
	a.Amount = 29.90
	require.NoError(t, repo.CreateCharge(ctx, a))
	_, err := repo.MarkApproved(ctx, "TX1", now)
	require.NoError(t, err)

	b := newCharge("TX2", 2, now)
	b.Amount = 74.90
	require.NoError(t, repo.CreateCharge(ctx, b))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalApproved)
	assert.Equal(t, int64(1), stats.TotalPending)
	assert.InDelta(t, 29.90, stats.RevenueBRL, 0.001)
}
