package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	ID               string           `json:"id"                validate:"required,max=64"`
	Name             string           `json:"name"              validate:"required,min=2,max=120"`
	Category         string           `json:"category"`
	Price            decimal.Decimal  `json:"price"             validate:"required,gt=0"`
	DistributorPrice *decimal.Decimal `json:"distributor_price"`
	Quantity         int              `json:"quantity"          validate:"min=0"`
	Image            string           `json:"image"`
}

type UpdateProductRequest struct {
	Name             *string          `json:"name"     validate:"omitempty,min=2,max=120"`
	Category         *string          `json:"category"`
	Price            *decimal.Decimal `json:"price"`
	DistributorPrice *decimal.Decimal `json:"distributor_price"`
	Image            *string          `json:"image"`
}

// AdjustStockRequest: when Kind is set, Quantity is read as a magnitude and
// Kind gives the direction; otherwise Quantity is a signed delta.
type AdjustStockRequest struct {
	Quantity int    `json:"quantity" validate:"required"`
	Kind     string `json:"kind"     validate:"omitempty,oneof=entry exit"`
	Reason   string `json:"reason"   validate:"required,max=200"`
	Note     string `json:"note"     validate:"max=500"`
	Force    bool   `json:"force"`
}

type BulkAdjustItem struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity"   validate:"required"`
	Kind      string `json:"kind"       validate:"omitempty,oneof=entry exit"`
}

type BulkAdjustRequest struct {
	Items  []BulkAdjustItem `json:"items"  validate:"required,min=1,dive"`
	Reason string           `json:"reason" validate:"required,max=200"`
	Note   string           `json:"note"   validate:"max=500"`
}

type BulkDeleteRequest struct {
	IDs   []string `json:"ids"   validate:"required,min=1,dive,required"`
	Force bool     `json:"force"`
}

// ─── Filter / Pagination ─────────────────────────────────────────────────────

type ProductFilter struct {
	Name     string `form:"name"`
	Category string `form:"category"`
	Page     int    `form:"page,default=1"    validate:"min=1"`
	Limit    int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// AdjustmentFilter backs GET /v1/adjustments. Dates are YYYY-MM-DD, To is inclusive.
type AdjustmentFilter struct {
	ProductID string `form:"product_id"`
	User      string `form:"user"`
	Kind      string `form:"kind" validate:"omitempty,oneof=entry exit"`
	From      string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To        string `form:"to"   validate:"omitempty,datetime=2006-01-02"`
	Page      int    `form:"page,default=1"    validate:"min=1"`
	Limit     int    `form:"limit,default=100" validate:"min=1,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Category         string           `json:"category"`
	Price            decimal.Decimal  `json:"price"`
	DistributorPrice *decimal.Decimal `json:"distributor_price"`
	Quantity         int              `json:"quantity"`
	Image            string           `json:"image"`
}

type ProductListResponse struct {
	Data  []ProductResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type AdjustmentResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	Kind        string  `json:"kind"`
	Quantity    int     `json:"quantity"`
	StockBefore int     `json:"stock_before"`
	StockAfter  int     `json:"stock_after"`
	Reason      string  `json:"reason"`
	User        string  `json:"user"`
	Note        string  `json:"note"`
	Forced      bool    `json:"forced"`
	ReferenceID *string `json:"reference_id"`
	CreatedAt   string  `json:"created_at"`
}

type AdjustmentListResponse struct {
	Data  []AdjustmentResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}
