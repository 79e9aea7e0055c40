package handlers

import (
	"net/http"

	"asset-tracker/internal/models"
	"asset-tracker/internal/response"
	"asset-tracker/internal/store"
	"asset-tracker/internal/workflow"

	"github.com/gin-gonic/gin"
)

// --- check types ---

func (h *Handler) ListCheckTypes(c *gin.Context) {
	types, err := h.svc.Checks.ListTypes(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, types)
}

func (h *Handler) GetCheckType(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	t, err := h.svc.Checks.GetType(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, t)
}

func (h *Handler) CreateCheckType(c *gin.Context) {
	var in workflow.CheckTypeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name is required")
		return
	}
	t, err := h.svc.Checks.CreateType(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondCreated(c, t)
}

func (h *Handler) UpdateCheckType(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in workflow.CheckTypeUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid check type payload")
		return
	}
	t, err := h.svc.Checks.UpdateType(c.Request.Context(), id, in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, t)
}

func (h *Handler) DeleteCheckType(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Checks.DeleteType(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- tasks ---

func (h *Handler) ListCheckTasks(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	f := store.CheckTaskFilter{
		Status: models.CheckTaskStatus(c.Query("status")),
		Page:   page,
	}
	tasks, err := h.svc.Checks.ListTasks(c.Request.Context(), actor(c), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, tasks)
}

func (h *Handler) GetCheckTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	task, err := h.svc.Checks.GetTask(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, task)
}

func (h *Handler) CheckTaskAssets(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entries, err := h.svc.Checks.Entries(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, entries)
}

func (h *Handler) CreateCheckTask(c *gin.Context) {
	var in workflow.CheckTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "check_type_id, title and asset_ids are required")
		return
	}
	task, err := h.svc.Checks.CreateTask(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondCreated(c, task)
}

func (h *Handler) UpdateCheckTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var in workflow.CheckTaskUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid check task payload")
		return
	}
	task, err := h.svc.Checks.UpdateTask(c.Request.Context(), id, in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, task)
}

func (h *Handler) CancelCheckTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.svc.Checks.CancelTask(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- results ---

func (h *Handler) MyCheckTasks(c *gin.Context) {
	tasks, err := h.svc.Checks.MyTasks(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, tasks)
}

func (h *Handler) SubmitCheck(c *gin.Context) {
	var in workflow.CheckSubmission
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "task_asset_id and check_result are required")
		return
	}
	entry, err := h.svc.Checks.Submit(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, entry)
}

func (h *Handler) AssetChecks(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	records, err := h.svc.Checks.AssetRecords(c.Request.Context(), id, actor(c), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.RespondOK(c, records)
}
