package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is an inventory item. Quantity is never allowed below zero except
// through a forced adjustment.
type Product struct {
	ID               string           `gorm:"type:varchar(64);primaryKey"`
	Name             string           `gorm:"index;not null"`
	Category         string           `gorm:"index"`
	Price            decimal.Decimal  `gorm:"type:numeric(14,2);not null"`
	DistributorPrice *decimal.Decimal `gorm:"type:numeric(14,2)"`
	Quantity         int              `gorm:"not null;default:0"`
	Image            string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Adjustments []StockAdjustment `gorm:"foreignKey:ProductID"`
}

// AdjustmentKind: "entry" | "exit"
type AdjustmentKind string

const (
	AdjustmentEntry AdjustmentKind = "entry"
	AdjustmentExit  AdjustmentKind = "exit"
)

// KindFor derives the kind from the sign of a stock delta.
func KindFor(delta int) AdjustmentKind {
	if delta < 0 {
		return AdjustmentExit
	}
	return AdjustmentEntry
}

// StockAdjustment is an append-only record of one quantity change.
type StockAdjustment struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID   string         `gorm:"type:varchar(64);not null;index"`
	Kind        AdjustmentKind `gorm:"type:varchar(10);not null;index"`
	Quantity    int            `gorm:"not null"` // always positive; Kind carries the direction
	StockBefore int            `gorm:"not null"`
	StockAfter  int            `gorm:"not null"`
	Reason      string         `gorm:"not null"`
	User        string         `gorm:"column:username;index"`
	Note        string
	Forced      bool       `gorm:"not null;default:false"`
	ReferenceID *uuid.UUID `gorm:"type:uuid;index"` // invoice id when the change came from one
	CreatedAt   time.Time  `gorm:"index"`
}
