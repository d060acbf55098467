package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// LineRequest: UnitPrice nil snapshots the product's current price
// (PriceTier picks detail or distributor).
type LineRequest struct {
	ProductID string           `json:"product_id" validate:"required"`
	Qty       int              `json:"qty"        validate:"required,min=1"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	PriceTier string           `json:"price_tier" validate:"omitempty,oneof=detail distributor"`
}

type DiscountRequest struct {
	Value decimal.Decimal `json:"value" validate:"min=0"`
	Type  string          `json:"type"  validate:"omitempty,oneof=percentage currency"`
}

// InvoiceRequest is used for both create and edit. A zero Rate means "use
// the current exchange rate" on create and "keep the snapshot" on edit.
type InvoiceRequest struct {
	CustomerID string          `json:"customer_id" validate:"required"`
	Lines      []LineRequest   `json:"lines"       validate:"required,min=1,dive"`
	Discount   DiscountRequest `json:"discount"`
	TaxPct     decimal.Decimal `json:"tax_pct"     validate:"min=0,max=100"`
	Rate       decimal.Decimal `json:"rate"        validate:"min=0"`
	Condition  string          `json:"condition"   validate:"omitempty,oneof=cash credit"`
	CreditDays *int            `json:"credit_days" validate:"omitempty,min=0,max=365"`
	IssuedAt   *time.Time      `json:"issued_at"`
	// PaidInFull on a cash invoice records an implicit full payment.
	PaidInFull    bool   `json:"paid_in_full"`
	PaymentMethod string `json:"payment_method" validate:"max=40"`
}

type PaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"     validate:"required,oneof=USD VES"`
	Method      string          `json:"method"       validate:"required,max=40"`
	Reference   string          `json:"reference"    validate:"max=80"`
	Bank        string          `json:"bank"         validate:"max=80"`
	ReceiptPath string          `json:"receipt_path" validate:"max=255"`
	PaidAt      *time.Time      `json:"paid_at"`
}

type TotalsRequest struct {
	Lines    []LineRequest   `json:"lines"    validate:"dive"`
	Discount DiscountRequest `json:"discount"`
	TaxPct   decimal.Decimal `json:"tax_pct"  validate:"min=0,max=100"`
	Rate     decimal.Decimal `json:"rate"     validate:"required,gt=0"`
}

type InvoiceFilter struct {
	State      string `form:"state"       validate:"omitempty,oneof=pending paid"`
	CustomerID string `form:"customer_id"`
	From       string `form:"from"        validate:"omitempty,datetime=2006-01-02"`
	To         string `form:"to"          validate:"omitempty,datetime=2006-01-02"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type TotalsResponse struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	SubtotalSecondary decimal.Decimal `json:"subtotal_secondary"`
	Discount          decimal.Decimal `json:"discount"`
	DiscountSecondary decimal.Decimal `json:"discount_secondary"`
	Tax               decimal.Decimal `json:"tax"`
	TaxSecondary      decimal.Decimal `json:"tax_secondary"`
	Total             decimal.Decimal `json:"total"`
	TotalSecondary    decimal.Decimal `json:"total_secondary"`
}

type LineResponse struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

type PaymentResponse struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	EnteredAmount decimal.Decimal `json:"entered_amount"`
	Rate          decimal.Decimal `json:"rate"`
	Method        string          `json:"method"`
	Reference     string          `json:"reference"`
	Bank          string          `json:"bank"`
	ReceiptPath   string          `json:"receipt_path"`
	PaidAt        string          `json:"paid_at"`
}

type InvoiceResponse struct {
	ID            string            `json:"id"`
	Number        int               `json:"number"`
	IssuedAt      string            `json:"issued_at"`
	CustomerID    string            `json:"customer_id"`
	CustomerName  string            `json:"customer_name,omitempty"`
	Condition     string            `json:"condition"`
	CreditDays    int               `json:"credit_days"`
	DueDate       *string           `json:"due_date"`
	Rate          decimal.Decimal   `json:"rate"`
	DiscountValue decimal.Decimal   `json:"discount_value"`
	DiscountType  string            `json:"discount_type"`
	TaxPct        decimal.Decimal   `json:"tax_pct"`
	Totals        TotalsResponse    `json:"totals"`
	Lines         []LineResponse    `json:"lines"`
	Payments      []PaymentResponse `json:"payments"`
	TotalPaid     decimal.Decimal   `json:"total_paid"`
	Balance       decimal.Decimal   `json:"balance"`
	// Overpayment is paid beyond the total; it is kept, not discarded.
	Overpayment decimal.Decimal `json:"overpayment"`
	Overpaid    bool            `json:"overpaid"`
	State       string          `json:"state"`
}

type InvoiceListResponse struct {
	Data  []InvoiceResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type RepairResponse struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
}
