package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kairos100/swissluca-backend/pkg/enums"
)

// PaymentRecord tracks a Stripe payment intent created by this service.
type PaymentRecord struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	PaymentIntentID string                 `gorm:"column:payment_intent_id;not null;uniqueIndex:ux_payment_records_intent"`
	UserID          uuid.UUID              `gorm:"column:user_id;type:uuid;not null;index"`
	Purpose         enums.PaymentPurpose   `gorm:"column:purpose;not null"`
	Status          enums.PaymentStatus    `gorm:"column:status;not null;default:'pending'"`
	Amount          decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        string                 `gorm:"column:currency;not null"`
	OfferID         *uuid.UUID             `gorm:"column:offer_id;type:uuid"`
	Plan            enums.SubscriptionPlan `gorm:"column:plan;not null;default:'none'"`
	FailureReason   *string                `gorm:"column:failure_reason"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
