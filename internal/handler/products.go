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

type ProductsHandler struct {
	svc   service.StockService
	audit Auditor
}

func NewProductsHandler(svc service.StockService, audit Auditor) *ProductsHandler {
	return &ProductsHandler{svc: svc, audit: audit}
}

func (h *ProductsHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.CreateProduct(c.Request.Context(), middleware.GetUser(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "product.create", p.ID)
	c.JSON(http.StatusCreated, toProductResponse(p))
}

func (h *ProductsHandler) List(c *gin.Context) {
	var filter dto.ProductFilter
	if !bindQuery(c, &filter) {
		return
	}
	products, total, err := h.svc.ListProducts(c.Request.Context(), repository.ProductFilter{
		Name:     filter.Name,
		Category: filter.Category,
		Page:     pageOf(filter.Page, filter.Limit),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.ProductListResponse{
		Data:  make([]dto.ProductResponse, 0, len(products)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range products {
		resp.Data = append(resp.Data, toProductResponse(&products[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductsHandler) Get(c *gin.Context) {
	p, err := h.svc.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

func (h *ProductsHandler) Update(c *gin.Context) {
	var req dto.UpdateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "product.update", p.ID)
	c.JSON(http.StatusOK, toProductResponse(p))
}

// Delete removes one product. ?force=true skips the invoice reference guard.
func (h *ProductsHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	force := c.Query("force") == "true"
	if err := h.svc.DeleteProducts(c.Request.Context(), []string{id}, force); err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "product.delete", id)
	c.Status(http.StatusNoContent)
}

func (h *ProductsHandler) BulkDelete(c *gin.Context) {
	var req dto.BulkDeleteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.DeleteProducts(c.Request.Context(), req.IDs, req.Force); err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "product.bulk_delete", fmt.Sprintf("%d products", len(req.IDs)))
	c.Status(http.StatusNoContent)
}

func (h *ProductsHandler) AdjustStock(c *gin.Context) {
	var req dto.AdjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	change := service.StockChange{
		ProductID: c.Param("id"),
		Delta:     req.Quantity,
		Kind:      model.AdjustmentKind(req.Kind),
		Reason:    req.Reason,
		User:      middleware.GetUser(c),
		Note:      req.Note,
	}
	adjust := h.svc.AdjustStock
	if req.Force {
		adjust = h.svc.ForceAdjustStock
	}
	a, err := adjust(c.Request.Context(), change)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "stock.adjust", fmt.Sprintf("%s %s %d: %s", a.ProductID, a.Kind, a.Quantity, a.Reason))
	c.JSON(http.StatusOK, toAdjustmentResponse(a))
}

func (h *ProductsHandler) BulkAdjust(c *gin.Context) {
	var req dto.BulkAdjustRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user := middleware.GetUser(c)
	changes := make([]service.StockChange, 0, len(req.Items))
	for _, it := range req.Items {
		changes = append(changes, service.StockChange{
			ProductID: it.ProductID,
			Delta:     it.Quantity,
			Kind:      model.AdjustmentKind(it.Kind),
			Reason:    req.Reason,
			User:      user,
			Note:      req.Note,
		})
	}
	adjustments, err := h.svc.BulkAdjust(c.Request.Context(), changes)
	if err != nil {
		respondError(c, err)
		return
	}
	recordAudit(c, h.audit, "stock.bulk_adjust", fmt.Sprintf("%d items: %s", len(adjustments), req.Reason))
	out := make([]dto.AdjustmentResponse, 0, len(adjustments))
	for i := range adjustments {
		out = append(out, toAdjustmentResponse(&adjustments[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// ListAdjustments is the stock movement report.
func (h *ProductsHandler) ListAdjustments(c *gin.Context) {
	var filter dto.AdjustmentFilter
	if !bindQuery(c, &filter) {
		return
	}
	items, total, err := h.svc.ListAdjustments(c.Request.Context(), repository.AdjustmentFilter{
		ProductID: filter.ProductID,
		User:      filter.User,
		Kind:      model.AdjustmentKind(filter.Kind),
		From:      parseDay(filter.From, false),
		To:        parseDay(filter.To, true),
		Page:      pageOf(filter.Page, filter.Limit),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	resp := dto.AdjustmentListResponse{
		Data:  make([]dto.AdjustmentResponse, 0, len(items)),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}
	for i := range items {
		resp.Data = append(resp.Data, toAdjustmentResponse(&items[i]))
	}
	c.JSON(http.StatusOK, resp)
}
