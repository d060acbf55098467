package dto

import "github.com/shopspring/decimal"

type QuotationRequest struct {
	CustomerID   string          `json:"customer_id"   validate:"required"`
	Lines        []LineRequest   `json:"lines"         validate:"required,min=1,dive"`
	Discount     DiscountRequest `json:"discount"`
	TaxPct       decimal.Decimal `json:"tax_pct"       validate:"min=0,max=100"`
	Rate         decimal.Decimal `json:"rate"          validate:"min=0"`
	Condition    string          `json:"condition"     validate:"omitempty,oneof=cash credit"`
	CreditDays   *int            `json:"credit_days"   validate:"omitempty,min=0,max=365"`
	ValidityDays *int            `json:"validity_days" validate:"omitempty,min=1,max=365"`
	Notes        string          `json:"notes"         validate:"max=1000"`
}

type QuotationResponse struct {
	Number        string          `json:"number"`
	IssuedAt      string          `json:"issued_at"`
	CustomerID    string          `json:"customer_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Condition     string          `json:"condition"`
	CreditDays    int             `json:"credit_days"`
	Rate          decimal.Decimal `json:"rate"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	DiscountType  string          `json:"discount_type"`
	TaxPct        decimal.Decimal `json:"tax_pct"`
	ValidityDays  int             `json:"validity_days"`
	ExpiresAt     string          `json:"expires_at"`
	Expired       bool            `json:"expired"`
	Totals        TotalsResponse  `json:"totals"`
	Lines         []LineResponse  `json:"lines"`
	Notes         string          `json:"notes"`
}

type QuotationListResponse struct {
	Data  []QuotationResponse `json:"data"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

// InvoiceDraftResponse is an unsaved invoice built from a quotation. Number
// is left for the caller to assign.
type InvoiceDraftResponse struct {
	SourceQuotation string            `json:"source_quotation"`
	Expired         bool              `json:"expired"`
	Request         InvoiceRequest    `json:"request"`
	Totals          TotalsResponse    `json:"totals"`
	Payments        []PaymentResponse `json:"payments"`
	State           string            `json:"state"`
}

type QuotationFilter struct {
	CustomerID string `form:"customer_id"`
	Page       int    `form:"page,default=1"   validate:"min=1"`
	Limit      int    `form:"limit,default=50" validate:"min=1,max=200"`
}
