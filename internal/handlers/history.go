package handlers

import (
	"asset-tracker/internal/response"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AssetHistory(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entries, err := h.svc.Assets.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, entries)
}
