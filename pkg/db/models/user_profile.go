package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kairos100/swissluca-backend/pkg/enums"
)

// UserProfile holds subscription state and reward aggregates for one user.
type UserProfile struct {
	UserID             uuid.UUID                `gorm:"column:user_id;type:uuid;primaryKey"`
	SubscriptionStatus enums.SubscriptionStatus `gorm:"column:subscription_status;not null;default:'trial';index"`
	SubscriptionEnd    time.Time                `gorm:"column:subscription_end;not null"`
	SubscriptionPlan   enums.SubscriptionPlan   `gorm:"column:subscription_plan;not null;default:'none'"`
	TotalPaid          decimal.Decimal          `gorm:"column:total_paid;type:numeric(12,2);not null;default:0"`
	TotalSaved         decimal.Decimal          `gorm:"column:total_saved;type:numeric(12,2);not null;default:0"`
	Points             int                      `gorm:"column:points;not null;default:0"`
	Level              int                      `gorm:"column:level;not null;default:1"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table name.
func (UserProfile) TableName() string { return "user_profiles" }
