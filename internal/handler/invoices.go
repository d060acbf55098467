package handler

import (
	"fmt"
	"net/http"

	"bodega/internal/dto"
	"bodega/internal/middleware"
	"bodega/internal/model"
	"bodega/internal/repository"
	"bodega/internal/service"

	"github.com/gin-gonic/gin"
)

type InvoicesHandler struct {
	invoices service.InvoiceService
	payments service.PaymentService
	audit    Auditor
}

func NewInvoicesHandler(invoices service.InvoiceService, payments service.PaymentService, audit Auditor) *InvoicesHandler {
	return &InvoicesHandler{invoices: invoices, payments: payments, audit: audit}
}

func (h *InvoicesHandler) Create(c *gin.Context) {
	var req dto.InvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	inv, err := h.invoices.Create(c.Request.Context(), middleware.GetUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "invoice.create", fmt.Sprintf("#%d %s total %s", inv.Number, inv.CustomerID, inv.Total.StringFixed(2)))
	c.JSON(http.StatusCreated, toInvoiceResponse(inv))
}

func (h *InvoicesHandler) List(c *gin.Context) {
	var filter dto.InvoiceFilter
	if !bindQuery(c, &filter) {
		return
	}
	invoices, total, err := h.invoices.List(c.Request.Context(), repository.InvoiceFilter{
		State:      model.InvoiceState(filter.State),
		CustomerID: filter.CustomerID,
		From:       parseDay(filter.From, false),
		To:         parseDay(filter.To, true),
		Page:       pageOf(filter.Page, filter.Limit),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.InvoiceListResponse{
		Data:  make([]dto.InvoiceResponse, 0, len(invoices)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range invoices {
		resp.Data = append(resp.Data, toInvoiceResponse(&invoices[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *InvoicesHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

func (h *InvoicesHandler) Update(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req dto.InvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	inv, err := h.invoices.Edit(c.Request.Context(), middleware.GetUser(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "invoice.edit", fmt.Sprintf("#%d total %s", inv.Number, inv.Total.StringFixed(2)))
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}

func (h *InvoicesHandler) Delete(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.Delete(c.Request.Context(), middleware.GetUser(c), id); err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "invoice.delete", id.String())
	c.Status(http.StatusNoContent)
}

// Repair rebuilds derived totals on every stored invoice.
func (h *InvoicesHandler) Repair(c *gin.Context) {
	report, err := h.invoices.RepairInvoiceTotals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "invoice.repair", fmt.Sprintf("scanned %d changed %d", report.Scanned, report.Changed))
	c.JSON(http.StatusOK, dto.RepairResponse{Scanned: report.Scanned, Changed: report.Changed})
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (h *InvoicesHandler) RegisterPayment(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p, inv, err := h.payments.RegisterPayment(c.Request.Context(), middleware.GetUser(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "payment.register", fmt.Sprintf("#%d %s %s (%s)", inv.Number, p.EnteredAmount.String(), p.Currency, p.Method))
	c.JSON(http.StatusCreated, gin.H{
		"payment": toPaymentResponse(p),
		"invoice": toInvoiceResponse(inv),
	})
}

func (h *InvoicesHandler) RemovePayment(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := parseUUID(c, "paymentId")
	if !ok {
		return
	}
	inv, err := h.payments.RemovePayment(c.Request.Context(), middleware.GetUser(c), id, paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "payment.remove", fmt.Sprintf("#%d payment %s", inv.Number, paymentID))
	c.JSON(http.StatusOK, toInvoiceResponse(inv))
}
