package handlers

import (
	"net/http"

	"asset-tracker/internal/middleware"
	"asset-tracker/internal/response"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type loginForm struct {
	EHRNumber string `json:"ehr_number" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "ehr_number and password are required")
		return
	}

	user, err := h.svc.Users.Authenticate(c.Request.Context(), form.EHRNumber, form.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(middleware.SessionUserKey, user.ID)
	sess.Set("role", string(user.Role))
	if err := sess.Save(); err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, user)
}

func (h *Handler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	response.RespondOK(c, middleware.CurrentUser(c))
}
