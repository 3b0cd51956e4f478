package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AvailabilitySchedule limits an offer to certain weekdays and a local time window.
type AvailabilitySchedule struct {
	Days  []string `json:"days"`
	Start string   `json:"start"`
	End   string   `json:"end"`
}

// Offer is a standing discount listing at a merchant.
type Offer struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID    *uuid.UUID            `gorm:"column:partner_id;type:uuid"`
	MerchantName string                `gorm:"column:merchant_name;not null"`
	Name         string                `gorm:"column:name;not null"`
	ImageURL     *string               `gorm:"column:image_url"`
	Category     string                `gorm:"column:category;not null;index"`
	Subcategory  *string               `gorm:"column:subcategory"`
	Description  *string               `gorm:"column:description"`
	Address      string                `gorm:"column:address;not null"`
	Lat          float64               `gorm:"column:lat;not null"`
	Lng          float64               `gorm:"column:lng;not null"`
	Rating       *float64              `gorm:"column:rating"`
	Price        *decimal.Decimal      `gorm:"column:price;type:numeric(12,2)"`
	OldPrice     *decimal.Decimal      `gorm:"column:old_price;type:numeric(12,2)"`
	Schedule     *AvailabilitySchedule `gorm:"column:availability_schedule;serializer:json"`
	IsActive     bool                  `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
