package model

import (
	"time"

	"bodega/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quotation has the monetary shape of an invoice but no payments and no stock
// effect. Number is the zero-padded counter value ("0001").
type Quotation struct {
	Number        string             `gorm:"type:varchar(16);primaryKey"`
	IssuedAt      time.Time          `gorm:"not null;index"`
	CustomerID    string             `gorm:"type:varchar(32);not null;index"`
	Condition     PaymentCondition   `gorm:"type:varchar(10);not null;default:'cash'"`
	CreditDays    int                `gorm:"not null;default:0"`
	Rate          decimal.Decimal    `gorm:"type:numeric(18,6);not null"`
	DiscountValue decimal.Decimal    `gorm:"type:numeric(20,6);not null;default:0"`
	DiscountType  money.DiscountType `gorm:"type:varchar(12);not null;default:'percentage'"`
	TaxPct        decimal.Decimal    `gorm:"type:numeric(6,2);not null;default:0"`
	ValidityDays  int                `gorm:"not null"`
	ExpiresAt     time.Time          `gorm:"not null"`

	money.Totals `gorm:"embedded"`

	Notes     string
	CreatedBy string
	CreatedAt time.Time

	Customer *Customer       `gorm:"foreignKey:CustomerID"`
	Lines    []QuotationLine `gorm:"foreignKey:QuotationNumber;constraint:OnDelete:CASCADE"`
}

type QuotationLine struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	QuotationNumber string          `gorm:"type:varchar(16);not null;index"`
	ProductID       string          `gorm:"type:varchar(64);not null"`
	Qty             int             `gorm:"not null"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Position        int             `gorm:"not null;default:0"`
}

// RoundInputs rounds the primitive inputs to their column scales.
func (q *Quotation) RoundInputs() {
	q.Rate = q.Rate.Round(money.RateScale)
	q.DiscountValue = q.DiscountValue.Round(money.StoragePlaces)
	q.TaxPct = q.TaxPct.Round(money.PercentScale)
	for i := range q.Lines {
		q.Lines[i].UnitPrice = q.Lines[i].UnitPrice.Round(money.PriceScale)
	}
}

func (q *Quotation) MoneyLines() []money.Line {
	out := make([]money.Line, 0, len(q.Lines))
	for _, l := range q.Lines {
		out = append(out, money.Line{Qty: l.Qty, UnitPrice: l.UnitPrice})
	}
	return out
}

// Expired reports whether the validity window has closed at now.
func (q *Quotation) Expired(now time.Time) bool {
	return now.After(q.ExpiresAt)
}
