package handler

import (
	"net/http"

	"bodega/internal/service"

	"github.com/gin-gonic/gin"
)

type ReceivablesHandler struct{ svc service.ReceivablesService }

func NewReceivablesHandler(svc service.ReceivablesService) *ReceivablesHandler {
	return &ReceivablesHandler{svc: svc}
}

func (h *ReceivablesHandler) Summary(c *gin.Context) {
	r, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReceivablesResponse(r))
}
