package handlers

import (
	"net/http"

	"asset-tracker/internal/response"
	"asset-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.svc.Users.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, users)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var in workflow.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "ehr_number, real_name, group and password are required")
		return
	}
	user, err := h.svc.Users.Create(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondCreated(c, user)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Users.Delete(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in workflow.UserUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid user payload")
		return
	}
	user, err := h.svc.Users.Update(c.Request.Context(), id, in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, user)
}

func (h *Handler) Stats(c *gin.Context) {
	counts, err := h.svc.Stats.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, counts)
}
