package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FlashDeal is a time-boxed, quantity-limited discount listing.
type FlashDeal struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID       uuid.UUID       `gorm:"column:partner_id;type:uuid;not null;index"`
	MerchantName    string          `gorm:"column:merchant_name;not null"`
	Name            string          `gorm:"column:name;not null"`
	ImageURL        *string         `gorm:"column:image_url"`
	Category        string          `gorm:"column:category;not null"`
	Description     *string         `gorm:"column:description"`
	Address         string          `gorm:"column:address;not null"`
	Lat             float64         `gorm:"column:lat;not null"`
	Lng             float64         `gorm:"column:lng;not null"`
	GooglePlaceID   *string         `gorm:"column:google_place_id"`
	OriginalPrice   decimal.Decimal `gorm:"column:original_price;type:numeric(12,2);not null"`
	DiscountedPrice decimal.Decimal `gorm:"column:discounted_price;type:numeric(12,2);not null"`
	StartTime       time.Time       `gorm:"column:start_time;not null"`
	EndTime         time.Time       `gorm:"column:end_time;not null;index"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	MaxQuantity     int             `gorm:"column:max_quantity;not null;default:0"`
	SoldQuantity    int             `gorm:"column:sold_quantity;not null;default:0"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
