package handler

import (
	"net/http"
	"time"

	"bodega/internal/dto"
	"bodega/internal/middleware"
	"bodega/internal/service"

	"github.com/gin-gonic/gin"
)

type QuotationsHandler struct {
	svc   service.QuotationService
	audit Auditor
	now   func() time.Time
}

func NewQuotationsHandler(svc service.QuotationService, audit Auditor) *QuotationsHandler {
	return &QuotationsHandler{svc: svc, audit: audit, now: time.Now}
}

func (h *QuotationsHandler) Create(c *gin.Context) {
	var req dto.QuotationRequest
	if !bindAndValidate(c, &req) {
		return
	}
	q, err := h.svc.Create(c.Request.Context(), middleware.GetUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "quotation.create", q.Number)
	c.JSON(http.StatusCreated, toQuotationResponse(q, q.Expired(h.now())))
}

func (h *QuotationsHandler) List(c *gin.Context) {
	var filter dto.QuotationFilter
	if !bindQuery(c, &filter) {
		return
	}
	quotes, total, err := h.svc.List(c.Request.Context(), filter.CustomerID, pageOf(filter.Page, filter.Limit))
	if err != nil {
		respondError(c, err)
		return
	}
	now := h.now()
	resp := dto.QuotationListResponse{
		Data:  make([]dto.QuotationResponse, 0, len(quotes)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range quotes {
		resp.Data = append(resp.Data, toQuotationResponse(&quotes[i], quotes[i].Expired(now)))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *QuotationsHandler) Get(c *gin.Context) {
	q, err := h.svc.Get(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuotationResponse(q, q.Expired(h.now())))
}

func (h *QuotationsHandler) Delete(c *gin.Context) {
	number := c.Param("number")
	if err := h.svc.Delete(c.Request.Context(), number); err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "quotation.delete", number)
	c.Status(http.StatusNoContent)
}

// Convert returns the quotation as an unsaved invoice. Nothing is persisted;
// the client posts the draft's request to /v1/invoices to issue it.
func (h *QuotationsHandler) Convert(c *gin.Context) {
	draft, err := h.svc.Convert(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDraftResponse(draft))
}
