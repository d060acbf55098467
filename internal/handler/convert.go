package handler

import (
	"bodega/internal/dto"
	"bodega/internal/model"
	"bodega/internal/money"
	"bodega/internal/service"

	"github.com/shopspring/decimal"
)

// ── model → response ─────────────────────────────────────────────────────────

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:               p.ID,
		Name:             p.Name,
		Category:         p.Category,
		Price:            p.Price,
		DistributorPrice: p.DistributorPrice,
		Quantity:         p.Quantity,
		Image:            p.Image,
	}
}

func toAdjustmentResponse(a *model.StockAdjustment) dto.AdjustmentResponse {
	resp := dto.AdjustmentResponse{
		ID:          a.ID.String(),
		ProductID:   a.ProductID,
		Kind:        string(a.Kind),
		Quantity:    a.Quantity,
		StockBefore: a.StockBefore,
		StockAfter:  a.StockAfter,
		Reason:      a.Reason,
		User:        a.User,
		Note:        a.Note,
		Forced:      a.Forced,
		CreatedAt:   formatTime(a.CreatedAt),
	}
	if a.ReferenceID != nil {
		ref := a.ReferenceID.String()
		resp.ReferenceID = &ref
	}
	return resp
}

func toCustomerResponse(c *model.Customer) dto.CustomerResponse {
	return dto.CustomerResponse{
		ID:      c.ID,
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
	}
}

func toTotalsResponse(t money.Totals) dto.TotalsResponse {
	return dto.TotalsResponse{
		Subtotal:          t.Subtotal,
		SubtotalSecondary: t.SubtotalSecondary,
		Discount:          t.Discount,
		DiscountSecondary: t.DiscountSecondary,
		Tax:               t.Tax,
		TaxSecondary:      t.TaxSecondary,
		Total:             t.Total,
		TotalSecondary:    t.TotalSecondary,
	}
}

func lineResponse(productID string, qty int, price decimal.Decimal) dto.LineResponse {
	return dto.LineResponse{
		ProductID: productID,
		Qty:       qty,
		UnitPrice: price,
		Amount:    price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func toPaymentResponse(p *model.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		ID:            p.ID.String(),
		Amount:        p.Amount,
		Currency:      string(p.Currency),
		EnteredAmount: p.EnteredAmount,
		Rate:          p.Rate,
		Method:        p.Method,
		Reference:     p.Reference,
		Bank:          p.Bank,
		ReceiptPath:   p.ReceiptPath,
		PaidAt:        formatTime(p.PaidAt),
	}
}

func toInvoiceResponse(inv *model.Invoice) dto.InvoiceResponse {
	resp := dto.InvoiceResponse{
		ID:            inv.ID.String(),
		Number:        inv.Number,
		IssuedAt:      formatTime(inv.IssuedAt),
		CustomerID:    inv.CustomerID,
		Condition:     string(inv.Condition),
		CreditDays:    inv.CreditDays,
		Rate:          inv.Rate,
		DiscountValue: inv.DiscountValue,
		DiscountType:  string(inv.DiscountType),
		TaxPct:        inv.TaxPct,
		Totals:        toTotalsResponse(inv.Totals),
		Lines:         make([]dto.LineResponse, 0, len(inv.Lines)),
		Payments:      make([]dto.PaymentResponse, 0, len(inv.Payments)),
		TotalPaid:     inv.TotalPaid,
		Balance:       inv.Balance,
		Overpayment:   inv.Overpayment,
		Overpaid:      inv.Overpayment.IsPositive(),
		State:         string(inv.State),
	}
	if inv.Customer != nil {
		resp.CustomerName = inv.Customer.Name
	}
	if inv.DueDate != nil {
		due := formatTime(*inv.DueDate)
		resp.DueDate = &due
	}
	for _, l := range inv.Lines {
		resp.Lines = append(resp.Lines, lineResponse(l.ProductID, l.Qty, l.UnitPrice))
	}
	for i := range inv.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(&inv.Payments[i]))
	}
	return resp
}

func toQuotationResponse(q *model.Quotation, expired bool) dto.QuotationResponse {
	resp := dto.QuotationResponse{
		Number:        q.Number,
		IssuedAt:      formatTime(q.IssuedAt),
		CustomerID:    q.CustomerID,
		Condition:     string(q.Condition),
		CreditDays:    q.CreditDays,
		Rate:          q.Rate,
		DiscountValue: q.DiscountValue,
		DiscountType:  string(q.DiscountType),
		TaxPct:        q.TaxPct,
		ValidityDays:  q.ValidityDays,
		ExpiresAt:     formatTime(q.ExpiresAt),
		Expired:       expired,
		Totals:        toTotalsResponse(q.Totals),
		Lines:         make([]dto.LineResponse, 0, len(q.Lines)),
		Notes:         q.Notes,
	}
	if q.Customer != nil {
		resp.CustomerName = q.Customer.Name
	}
	for _, l := range q.Lines {
		resp.Lines = append(resp.Lines, lineResponse(l.ProductID, l.Qty, l.UnitPrice))
	}
	return resp
}

// toDraftResponse shapes a draft as a ready-to-submit InvoiceRequest with
// every unit price pinned to the quotation's snapshot.
func toDraftResponse(d *service.InvoiceDraft) dto.InvoiceDraftResponse {
	inv := d.Invoice
	req := dto.InvoiceRequest{
		CustomerID: inv.CustomerID,
		Lines:      make([]dto.LineRequest, 0, len(inv.Lines)),
		Discount: dto.DiscountRequest{
			Value: inv.DiscountValue,
			Type:  string(inv.DiscountType),
		},
		TaxPct:    inv.TaxPct,
		Rate:      inv.Rate,
		Condition: string(inv.Condition),
	}
	if inv.Condition == model.ConditionCredit {
		days := inv.CreditDays
		req.CreditDays = &days
	}
	for _, l := range inv.Lines {
		price := l.UnitPrice
		req.Lines = append(req.Lines, dto.LineRequest{ProductID: l.ProductID, Qty: l.Qty, UnitPrice: &price})
	}
	return dto.InvoiceDraftResponse{
		SourceQuotation: d.SourceQuotation,
		Expired:         d.Expired,
		Request:         req,
		Totals:          toTotalsResponse(inv.Totals),
		Payments:        []dto.PaymentResponse{},
		State:           string(inv.State),
	}
}

func toReceivablesResponse(r *service.Receivables) dto.ReceivablesResponse {
	resp := dto.ReceivablesResponse{
		Invoices:             make([]dto.InvoiceResponse, 0, len(r.Invoices)),
		Outstanding:          r.Outstanding,
		OutstandingSecondary: r.OutstandingSecondary,
		Rate:                 r.Rate,
		RateStale:            r.RateStale,
		Debtors:              r.Debtors,
		AveragePerInvoice:    r.AveragePerInvoice,
		Overdue:              r.Overdue,
		TopDebtors:           make([]dto.DebtorResponse, 0, len(r.TopDebtors)),
	}
	for i := range r.Invoices {
		resp.Invoices = append(resp.Invoices, toInvoiceResponse(&r.Invoices[i]))
	}
	for _, d := range r.TopDebtors {
		resp.TopDebtors = append(resp.TopDebtors, dto.DebtorResponse{
			CustomerID:   d.CustomerID,
			CustomerName: d.CustomerName,
			Invoices:     d.Invoices,
			Balance:      d.Balance,
		})
	}
	return resp
}

func toRateResponse(q *service.RateQuote) dto.RateResponse {
	resp := dto.RateResponse{
		Rate:        q.Rate,
		Stale:       q.Stale,
		FetchedAt:   formatTime(q.FetchedAt),
		Source:      q.Source,
		SourceState: q.SourceState,
		StaleReason: q.StaleReason,
	}
	if q.RetryAt != nil {
		resp.RetryAt = formatTime(*q.RetryAt)
	}
	return resp
}
