package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kairos100/swissluca-backend/pkg/enums"
)

// ActivationRecord is the append-only evidence of one completed activation.
// Rows are never updated or deleted.
type ActivationRecord struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index:idx_activation_records_user_offer,priority:1"`
	OfferID         uuid.UUID            `gorm:"column:offer_id;type:uuid;not null;index:idx_activation_records_user_offer,priority:2"`
	Kind            enums.RedeemableKind `gorm:"column:kind;not null"`
	OfferName       string               `gorm:"column:offer_name;not null"`
	ActivatedAt     time.Time            `gorm:"column:activated_at;not null"`
	SavedAmount     decimal.Decimal      `gorm:"column:saved_amount;type:numeric(12,2);not null;default:0"`
	BlockedUntil    time.Time            `gorm:"column:blocked_until;not null"`
	PaymentIntentID *string              `gorm:"column:payment_intent_id;uniqueIndex:ux_activation_records_payment_intent"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
}
