package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"gatebot/internal/models/db_models"
	"gatebot/pkg/utils"
)

type ChargeStats struct {
	TotalApproved int64
	TotalPending  int64
	RevenueBRL    float64
}

type IChargeRepository interface {
	// CreateCharge cancels any pending charge the user still has and
	// inserts the new one, as a single transaction.
	CreateCharge(ctx context.Context, charge *db_models.Charge) error

	// FindLatestPending returns the newest pending charge for the user,
	// or nil when there is none.
	FindLatestPending(ctx context.Context, userID int64) (*db_models.Charge, error)

	// MarkApproved transitions a pending charge to approved, stamping
	// approvedAt. It reports whether this call performed the transition;
	// false means the charge was already approved (idempotent no-op).
	MarkApproved(ctx context.Context, chargeID string, approvedAt time.Time) (bool, error)

	ListByUser(ctx context.Context, userID int64, limit int) ([]db_models.Charge, error)
	Stats(ctx context.Context) (*ChargeStats, error)
}

type ChargeRepository struct {
	db *gorm.DB
}

func NewChargeRepository(db *gorm.DB) IChargeRepository {
	return &ChargeRepository{db: db}
}

func (r ChargeRepository) CreateCharge(ctx context.Context, charge *db_models.Charge) error {

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db_models.Charge{}).
			Where("user_id = ? AND status = ?", charge.UserID, db_models.ChargeStatusPending).
			Update("status", db_models.ChargeStatusCancelled).Error; err != nil {
			return err
		}

		charge.Status = db_models.ChargeStatusPending
		return tx.Create(charge).Error
	})

	if err != nil {
		return &utils.StorageError{Op: "create charge", Err: err}
	}
	return nil
}

func (r ChargeRepository) FindLatestPending(ctx context.Context, userID int64) (*db_models.Charge, error) {

	var charge db_models.Charge
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, db_models.ChargeStatusPending).
		Order("created_at DESC").
		First(&charge).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, &utils.StorageError{Op: "find latest pending", Err: err}
	}

	return &charge, nil
}

func (r ChargeRepository) MarkApproved(ctx context.Context, chargeID string, approvedAt time.Time) (bool, error) {

	res := r.db.WithContext(ctx).Model(&db_models.Charge{}).
		Where("charge_id = ? AND status = ?", chargeID, db_models.ChargeStatusPending).
		Updates(map[string]interface{}{
			"status":      db_models.ChargeStatusApproved,
			"approved_at": approvedAt,
		})

	if res.Error != nil {
		return false, &utils.StorageError{Op: "mark approved", Err: res.Error}
	}

	// Zero rows means the guarded update matched nothing: either the
	// charge is already approved (a racing verification won) or the id
	// is unknown. Callers use this to short-circuit a second grant.
	return res.RowsAffected > 0, nil
}

func (r ChargeRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]db_models.Charge, error) {

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var charges []db_models.Charge
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&charges).Error

	if err != nil {
		return nil, &utils.StorageError{Op: "list by user", Err: err}
	}

	return charges, nil
}

func (r ChargeRepository) Stats(ctx context.Context) (*ChargeStats, error) {

	var stats ChargeStats

	err := r.db.WithContext(ctx).Model(&db_models.Charge{}).
		Where("status = ?", db_models.ChargeStatusApproved).
		Count(&stats.TotalApproved).Error
	if err != nil {
		return nil, &utils.StorageError{Op: "stats", Err: err}
	}

	err = r.db.WithContext(ctx).Model(&db_models.Charge{}).
		Where("status = ?", db_models.ChargeStatusPending).
		Count(&stats.TotalPending).Error
	if err != nil {
		return nil, &utils.StorageError{Op: "stats", Err: err}
	}

	err = r.db.WithContext(ctx).Model(&db_models.Charge{}).
		Where("status = ?", db_models.ChargeStatusApproved).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.RevenueBRL).Error
	if err != nil {
		return nil, &utils.StorageError{Op: "stats", Err: err}
	}

	return &stats, nil
}
