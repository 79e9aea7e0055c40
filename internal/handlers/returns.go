package handlers

import (
	"encoding/json"
	"net/http"

	"asset-tracker/internal/models"
	"asset-tracker/internal/response"
	"asset-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
)

type returnForm struct {
	AssetID     uint                       `json:"asset_id" binding:"required"`
	Reason      string                     `json:"reason"`
	Overrides   map[string]json.RawMessage `json:"overrides"`
	NewHolderID *uint                      `json:"new_holder_id"`
}

func (h *Handler) ListReturns(c *gin.Context) {
	f, ok := requestFilter(c)
	if !ok {
		return
	}
	rows, err := h.svc.Returns.List(c.Request.Context(), actor(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, rows)
}

func (h *Handler) GetReturn(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	req, err := h.svc.Returns.Get(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, req)
}

func (h *Handler) CreateReturn(c *gin.Context) {
	var form returnForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "asset_id is required")
		return
	}
	overrides := models.EditSet{}
	if len(form.Overrides) > 0 {
		var ok bool
		if overrides, ok = parseEditSet(c, form.Overrides); !ok {
			return
		}
	}

	req, err := h.svc.Returns.Create(c.Request.Context(), workflow.ReturnInput{
		AssetID:     form.AssetID,
		Reason:      form.Reason,
		Overrides:   overrides,
		NewHolderID: form.NewHolderID,
	}, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondCreated(c, req)
}

func (h *Handler) CancelReturn(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Returns.Cancel(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
