// Package repo holds the gorm handle every domain repository embeds.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by the profile, offer and payment repositories so they can
// be rebound to a transaction without repeating the plumbing.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB scopes the handle to ctx so cancellation reaches the driver.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bound returns a Base whose queries run on tx. A nil tx keeps the current handle.
func (b Base) Bound(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}
