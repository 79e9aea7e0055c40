package handlers

import (
	"net/http"

	"asset-tracker/internal/response"
	"asset-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
)

type confirmForm struct {
	Accepted *bool  `json:"accepted" binding:"required"`
	Comment  string `json:"comment"`
}

func (h *Handler) ListTransfers(c *gin.Context) {
	f, ok := requestFilter(c)
	if !ok {
		return
	}
	rows, err := h.svc.Transfers.List(c.Request.Context(), actor(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, rows)
}

func (h *Handler) GetTransfer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	req, err := h.svc.Transfers.Get(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, req)
}

func (h *Handler) CreateTransfer(c *gin.Context) {
	var in workflow.TransferInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "asset_id and to_user_id are required")
		return
	}
	req, err := h.svc.Transfers.Create(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondCreated(c, req)
}

func (h *Handler) ConfirmTransfer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var form confirmForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "accepted is required")
		return
	}
	req, err := h.svc.Transfers.Confirm(c.Request.Context(), id, *form.Accepted, form.Comment, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, req)
}

func (h *Handler) CancelTransfer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Transfers.Cancel(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
