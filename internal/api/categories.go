package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskflow/internal/service"
)

func (h *handlers) listCategories(c echo.Context) error {
	categories, err := h.svc.Categories.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *handlers) createCategory(c echo.Context) error {
	var req service.CategoryInput
	if err := decode(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	category, err := h.svc.Categories.Create(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, category)
}

func (h *handlers) getCategory(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	category, err := h.svc.Categories.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

func (h *handlers) updateCategory(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req service.CategoryPatch
	if err := decode(c, &req); err != nil {
		return badRequest(c, "invalid body")
	}
	category, err := h.svc.Categories.Update(c.Request().Context(), id, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

// deleteCategory leaves tasks that reference the category untouched.
func (h *handlers) deleteCategory(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}
	removed, err := h.svc.Categories.Delete(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	if !removed {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	}
	return c.NoContent(http.StatusNoContent)
}
