package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"asset-tracker/internal/models"
	"asset-tracker/internal/response"
	"asset-tracker/internal/store"
	"asset-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListAssets(c *gin.Context) {
	holderID, ok := queryID(c, "holder_id")
	if !ok {
		return
	}
	categoryID, ok := queryID(c, "category_id")
	if !ok {
		return
	}
	f := store.AssetFilter{
		Search:     strings.TrimSpace(c.Query("search")),
		Status:     models.AssetStatus(c.Query("status")),
		HolderID:   holderID,
		CategoryID: categoryID,
	}
	if f.Status != "" && !f.Status.Valid() {
		badRequest(c, "invalid status")
		return
	}

	assets, err := h.svc.Assets.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, assets)
}

func (h *Handler) GetAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	asset, err := h.svc.Assets.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, asset)
}

func (h *Handler) CreateAsset(c *gin.Context) {
	var in workflow.AssetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid asset payload")
		return
	}
	asset, err := h.svc.Assets.Create(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondCreated(c, asset)
}

// UpdateAsset edits directly for admins. Anyone else files an edit request
// and gets 202 with the request.
func (h *Handler) UpdateAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	set, ok := bindEditSet(c)
	if !ok {
		return
	}

	a := actor(c)
	if !a.IsAdmin() {
		req, err := h.svc.Edits.Create(c.Request.Context(), id, set, a)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"edit_request": req})
		return
	}

	asset, err := h.svc.Assets.Update(c.Request.Context(), id, set, a)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, asset)
}

func (h *Handler) DeleteAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Assets.Delete(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.svc.Assets.Categories(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, cats)
}

func bindEditSet(c *gin.Context) (models.EditSet, bool) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		badRequest(c, "body must be a JSON object of fields")
		return nil, false
	}
	return parseEditSet(c, raw)
}

func parseEditSet(c *gin.Context, raw map[string]json.RawMessage) (models.EditSet, bool) {
	set, err := models.ParseEditSet(raw)
	if err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	return set, true
}
