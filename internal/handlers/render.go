package handlers

import (
	"net/http"
	"strconv"

	"asset-tracker/internal/logger"
	"asset-tracker/internal/middleware"
	"asset-tracker/internal/response"
	"asset-tracker/internal/store"
	"asset-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *workflow.Services
	log *logger.Logger
}

func New(svc *workflow.Services, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.With("component", "http")}
}

var kindStatus = map[workflow.ErrorKind]int{
	workflow.KindNotFound:     http.StatusNotFound,
	workflow.KindInvalidState: http.StatusConflict,
	workflow.KindForbidden:    http.StatusForbidden,
	workflow.KindConflict:     http.StatusConflict,
	workflow.KindNoOp:         http.StatusBadRequest,
	workflow.KindInvalid:      http.StatusBadRequest,
	workflow.KindUnauthorized: http.StatusUnauthorized,
}

// fail renders err. Workflow errors keep their message; anything else is
// logged and reported as an internal error.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := workflow.KindOf(err)
	if status, ok := kindStatus[kind]; ok {
		response.RespondError(c, status, string(kind), err)
		return
	}
	h.log.Error("request failed",
		"request_id", c.GetString("request_id"),
		"path", c.FullPath(),
		"error", err,
	)
	response.AbortError(c, http.StatusInternalServerError, "internal", "internal error")
}

func badRequest(c *gin.Context, msg string) {
	response.AbortError(c, http.StatusBadRequest, string(workflow.KindInvalid), msg)
}

// actor is only called behind RequireAuth.
func actor(c *gin.Context) workflow.Actor {
	return workflow.ActorOf(middleware.CurrentUser(c))
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func queryID(c *gin.Context, key string) (uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return n, true
}

// pageQuery reads ?page and ?limit. Out-of-range values are clamped later.
func pageQuery(c *gin.Context) (store.Page, bool) {
	page, ok := queryInt(c, "page")
	if !ok {
		return store.Page{}, false
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return store.Page{}, false
	}
	return store.Page{Number: page, Size: limit}, true
}
