package db_models

import (
	"time"

	"gorm.io/datatypes"
)

type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusApproved  ChargeStatus = "approved"
	ChargeStatusCancelled ChargeStatus = "cancelled"
)

// Charge is one payment attempt against the PIX processor. The primary key
// is the provider-assigned txid, so a replayed insert for the same charge
// fails loudly instead of duplicating history.
type Charge struct {
	ChargeID    string       `gorm:"primaryKey;column:charge_id"`
	UserID      int64        `gorm:"index;not null"`
	DisplayName string       `gorm:"not null"`
	Status      ChargeStatus `gorm:"index;not null"`
	PlanType    PlanType     `gorm:"not null;default:'monthly'"`
	Amount      float64      `gorm:"not null;default:0"`

	// Telegram message id of the copy-paste code shown for this charge,
	// kept so an operator can correlate stale UI artifacts.
	PendingMessageRef *int64

	// Raw processor payload from charge creation, for diagnosis.
	RawCharge datatypes.JSON

	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
	ApprovedAt *time.Time
}

func (Charge) TableName() string { return "charges" }
