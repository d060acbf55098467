package handler

import (
	"net/http"

	"bodega/internal/dto"
	"bodega/internal/service"

	"github.com/gin-gonic/gin"
)

type CustomersHandler struct {
	svc   service.CustomerService
	audit Auditor
}

func NewCustomersHandler(svc service.CustomerService, audit Auditor) *CustomersHandler {
	return &CustomersHandler{svc: svc, audit: audit}
}

func (h *CustomersHandler) Create(c *gin.Context) {
	var req dto.CreateCustomerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cust, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "customer.create", cust.ID)
	c.JSON(http.StatusCreated, toCustomerResponse(cust))
}

func (h *CustomersHandler) List(c *gin.Context) {
	var filter dto.CustomerFilter
	if !bindQuery(c, &filter) {
		return
	}
	customers, total, err := h.svc.List(c.Request.Context(), filter.Search, pageOf(filter.Page, filter.Limit))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.CustomerListResponse{
		Data:  make([]dto.CustomerResponse, 0, len(customers)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range customers {
		resp.Data = append(resp.Data, toCustomerResponse(&customers[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CustomersHandler) Get(c *gin.Context) {
	cust, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toCustomerResponse(cust))
}

func (h *CustomersHandler) Update(c *gin.Context) {
	var req dto.UpdateCustomerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	cust, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "customer.update", cust.ID)
	c.JSON(http.StatusOK, toCustomerResponse(cust))
}

func (h *CustomersHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "customer.delete", id)
	c.Status(http.StatusNoContent)
}
