package model

import (
	"time"

	"bodega/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentCondition string

const (
	ConditionCash   PaymentCondition = "cash"
	ConditionCredit PaymentCondition = "credit"
)

type InvoiceState string

const (
	StatePending InvoiceState = "pending"
	StatePaid    InvoiceState = "paid"
)

// Currency codes accepted on payments. Primary is the canonical one.
type Currency string

const (
	CurrencyPrimary   Currency = "USD"
	CurrencySecondary Currency = "VES"
)

// Invoice stores the primitive inputs (lines, discount, tax, rate) next to the
// values derived from them. The derived part can always be rebuilt from the
// primitives plus the payments.
type Invoice struct {
	ID            uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Number        int                `gorm:"uniqueIndex;not null"`
	IssuedAt      time.Time          `gorm:"not null;index"`
	CustomerID    string             `gorm:"type:varchar(32);not null;index"`
	Condition     PaymentCondition   `gorm:"type:varchar(10);not null;default:'cash'"`
	CreditDays    int                `gorm:"not null;default:0"`
	DueDate       *time.Time
	Rate          decimal.Decimal    `gorm:"type:numeric(18,6);not null"`
	DiscountValue decimal.Decimal    `gorm:"type:numeric(20,6);not null;default:0"`
	DiscountType  money.DiscountType `gorm:"type:varchar(12);not null;default:'percentage'"`
	TaxPct        decimal.Decimal    `gorm:"type:numeric(6,2);not null;default:0"`

	money.Totals `gorm:"embedded"`

	TotalPaid   decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	Balance     decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	Overpayment decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0"`
	State       InvoiceState    `gorm:"type:varchar(10);not null;default:'pending';index"`
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Customer *Customer     `gorm:"foreignKey:CustomerID"`
	Lines    []InvoiceLine `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Payments []Payment     `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// InvoiceLine keeps the unit price as it was when the line was added.
type InvoiceLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID string          `gorm:"type:varchar(64);not null;index"`
	Qty       int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Position  int             `gorm:"not null;default:0"`
}

// Payment amounts are stored in the primary currency. EnteredAmount and
// Currency record what the cashier actually typed.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Currency      Currency        `gorm:"type:varchar(3);not null"`
	EnteredAmount decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Rate          decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	Method        string          `gorm:"not null"`
	Reference     string
	Bank          string
	ReceiptPath   string
	PaidAt        time.Time `gorm:"not null"`
}

// RoundInputs rounds the primitive inputs to their column scales.
func (inv *Invoice) RoundInputs() {
	inv.Rate = inv.Rate.Round(money.RateScale)
	inv.DiscountValue = inv.DiscountValue.Round(money.StoragePlaces)
	inv.TaxPct = inv.TaxPct.Round(money.PercentScale)
	for i := range inv.Lines {
		inv.Lines[i].UnitPrice = inv.Lines[i].UnitPrice.Round(money.PriceScale)
	}
}

// MoneyLines returns the arithmetic view of the invoice lines.
func (inv *Invoice) MoneyLines() []money.Line {
	out := make([]money.Line, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		out = append(out, money.Line{Qty: l.Qty, UnitPrice: l.UnitPrice})
	}
	return out
}

func (inv *Invoice) PaymentAmounts() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(inv.Payments))
	for _, p := range inv.Payments {
		out = append(out, p.Amount)
	}
	return out
}

// QtyByProduct sums line quantities per product.
func (inv *Invoice) QtyByProduct() map[string]int {
	out := make(map[string]int, len(inv.Lines))
	for _, l := range inv.Lines {
		out[l.ProductID] += l.Qty
	}
	return out
}
