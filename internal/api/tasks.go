package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskflow/internal/filter"
	"taskflow/internal/model"
	"taskflow/internal/service"
)

type tasksResponse struct {
	Tasks  []model.Task       `json:"tasks"`
	Counts *filter.Counts     `json:"counts,omitempty"`
	Empty  *filter.EmptyState `json:"empty,omitempty"`
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority"`
	DueDate     string `json:"dueDate"`
}

// An empty dueDate string clears the due date; an absent one leaves it alone.
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"dueDate"`
	Completed   *bool   `json:"completed"`
}

type bulkRequest struct {
	IDs      []uint `json:"ids"`
	Priority string `json:"priority"`
}

type deletedResponse struct {
	DeletedCount int `json:"deletedCount"`
}

func (h *handlers) listTasks(c echo.Context) error {
	ctx := c.Request().Context()
	status, err := filter.ParseStatus(c.QueryParam("status"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	criteria := filter.Criteria{Category: c.QueryParam("category"), Status: status, Query: c.QueryParam("q")}

	tasks, err := h.svc.Tasks.List(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	categories, err := h.svc.Categories.List(ctx)
	if err != nil {
		return h.fail(c, err)
	}
	counts := filter.Count(tasks, categories)
	resp := tasksResponse{Tasks: filter.Visible(tasks, criteria), Counts: &counts}
	if len(resp.Tasks) == 0 {
		empty := criteria.EmptyState()
		resp.Empty = &empty
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *handlers) createTask(c echo.Context) error {
	var req createTaskRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	due, err := model.ParseDueDate(req.DueDate, h.svc.Location)
	if err != nil {
		return badRequest(c, err.Error())
	}
	task, err := h.svc.Tasks.Create(c.Request().Context(), service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		DueDate:     due,
	})
	if err != nil {
		return h.fail(c, err)
	}
	h.syncCounts(c.Request().Context())
	return c.JSON(http.StatusCreated, task)
}

func (h *handlers) getTask(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	task, err := h.svc.Tasks.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) updateTask(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req updateTaskRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	patch := service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
		Completed:   req.Completed,
	}
	if req.DueDate != nil {
		due, err := model.ParseDueDate(*req.DueDate, h.svc.Location)
		if err != nil {
			return badRequest(c, err.Error())
		}
		patch.DueDate, patch.ClearDue = due, due == nil
	}
	task, err := h.svc.Tasks.Update(c.Request().Context(), id, patch)
	if err != nil {
		return h.fail(c, err)
	}
	h.syncCounts(c.Request().Context())
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) deleteTask(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	removed, err := h.svc.Tasks.Delete(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	if !removed {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	}
	h.syncCounts(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) toggleTask(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	task, err := h.svc.Tasks.ToggleComplete(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *handlers) bulkComplete(c echo.Context) error {
	var req bulkRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	tasks, err := h.svc.Tasks.BulkComplete(c.Request().Context(), req.IDs)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasksResponse{Tasks: nonNil(tasks)})
}

func (h *handlers) bulkDelete(c echo.Context) error {
	var req bulkRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	deleted, err := h.svc.Tasks.BulkDelete(c.Request().Context(), req.IDs)
	if deleted > 0 {
		h.syncCounts(c.Request().Context())
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, deletedResponse{DeletedCount: deleted})
}

func (h *handlers) bulkPriority(c echo.Context) error {
	var req bulkRequest
	if err := decode(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	tasks, err := h.svc.Tasks.BulkUpdatePriority(c.Request().Context(), req.IDs, req.Priority)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, tasksResponse{Tasks: nonNil(tasks)})
}

func nonNil(tasks []model.Task) []model.Task {
	if tasks == nil {
		return []model.Task{}
	}
	return tasks
}
