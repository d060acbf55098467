package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateCacheEntry is the single most recent successfully fetched rate.
// The table only ever holds the row with ID 1.
type RateCacheEntry struct {
	ID        int             `gorm:"primaryKey"`
	Rate      decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Source    string
	FetchedAt time.Time `gorm:"not null"`
}

// TableName keeps the singular name; there is only one row.
func (RateCacheEntry) TableName() string { return "rate_cache" }
