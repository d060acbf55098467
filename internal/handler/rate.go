package handler

import (
	"net/http"

	"bodega/internal/dto"
	"bodega/internal/service"

	"github.com/gin-gonic/gin"
)

type RateHandler struct {
	rates   service.ExchangeRateService
	invoice service.InvoiceService
	audit   Auditor
}

func NewRateHandler(rates service.ExchangeRateService, invoices service.InvoiceService, audit Auditor) *RateHandler {
	return &RateHandler{rates: rates, invoice: invoices, audit: audit}
}

// Get returns the current rate. ?cached=true reads the stored rate without
// touching the live source.
func (h *RateHandler) Get(c *gin.Context) {
	var (
		q   *service.RateQuote
		err error
	)
	if c.Query("cached") == "true" {
		q, err = h.rates.Cached(c.Request.Context())
	} else {
		q, err = h.rates.Quote(c.Request.Context())
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRateResponse(q))
}

// Refresh forces a live fetch attempt and reports the outcome.
func (h *RateHandler) Refresh(c *gin.Context) {
	q, err := h.rates.Quote(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if !q.Stale {
		recordAudit(c, h.audit, "rate.refresh", q.Rate.String())
	}
	c.JSON(http.StatusOK, toRateResponse(q))
}

// Totals prices a draft without persisting anything.
func (h *RateHandler) Totals(c *gin.Context) {
	var req dto.TotalsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	t, err := h.invoice.ComputeTotals(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTotalsResponse(t))
}
