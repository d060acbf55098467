package dto

import "github.com/shopspring/decimal"

// RateResponse: SourceState is the live source's breaker state. StaleReason
// and RetryAt only appear on stale quotes.
type RateResponse struct {
	Rate        decimal.Decimal `json:"rate"`
	Stale       bool            `json:"stale"`
	FetchedAt   string          `json:"fetched_at"`
	Source      string          `json:"source"`
	SourceState string          `json:"source_state"`
	StaleReason string          `json:"stale_reason,omitempty"`
	RetryAt     string          `json:"retry_at,omitempty"`
}

type DebtorResponse struct {
	CustomerID   string          `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	Invoices     int             `json:"invoices"`
	Balance      decimal.Decimal `json:"balance"`
}

type ReceivablesResponse struct {
	Invoices             []InvoiceResponse `json:"invoices"`
	Outstanding          decimal.Decimal   `json:"outstanding"`
	OutstandingSecondary decimal.Decimal   `json:"outstanding_secondary"`
	Rate                 decimal.Decimal   `json:"rate"`
	RateStale            bool              `json:"rate_stale"`
	Debtors              int               `json:"debtors"`
	AveragePerInvoice    decimal.Decimal   `json:"average_per_invoice"`
	Overdue              int               `json:"overdue"`
	TopDebtors           []DebtorResponse  `json:"top_debtors"`
}
