package handlers

import (
	"encoding/json"
	"net/http"

	"asset-tracker/internal/response"

	"github.com/gin-gonic/gin"
)

type editForm struct {
	AssetID uint                       `json:"asset_id" binding:"required"`
	Changes map[string]json.RawMessage `json:"changes" binding:"required"`
}

func (h *Handler) ListEdits(c *gin.Context) {
	f, ok := requestFilter(c)
	if !ok {
		return
	}
	rows, err := h.svc.Edits.List(c.Request.Context(), actor(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, rows)
}

func (h *Handler) GetEdit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	req, err := h.svc.Edits.Get(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, req)
}

func (h *Handler) CreateEdit(c *gin.Context) {
	var form editForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "asset_id and changes are required")
		return
	}
	set, ok := parseEditSet(c, form.Changes)
	if !ok {
		return
	}
	req, err := h.svc.Edits.Create(c.Request.Context(), form.AssetID, set, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondCreated(c, req)
}

func (h *Handler) CancelEdit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Edits.Cancel(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
