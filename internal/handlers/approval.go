package handlers

import (
	"asset-tracker/internal/response"
	"asset-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
)

func (h *Handler) PendingApprovals(c *gin.Context) {
	pending, err := h.svc.Dispatcher.Pending(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, pending)
}

func (h *Handler) Approve(c *gin.Context) {
	var in workflow.ApprovalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "request_id and request_type are required")
		return
	}
	req, err := h.svc.Dispatcher.Approve(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, req)
}
