// Package api exposes the task and category services over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow/internal/service"
)

const maxBodySize = 64 << 10

// Services are the collaborators behind the HTTP handlers.
type Services struct {
	Tasks      *service.TaskService
	Categories *service.CategoryService
	// Dispatch runs the best-effort category count sync. Defaults to a goroutine.
	Dispatch func(func())
	// Location anchors date-only due dates. Defaults to time.Local.
	Location *time.Location
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, svc Services, logger *log.Logger) {
	if svc.Dispatch == nil {
		svc.Dispatch = func(f func()) { go f() }
	}
	if svc.Location == nil {
		svc.Location = time.Local
	}
	h := &handlers{svc: svc, log: logger}

	e.Use(requestLogger(logger))
	e.GET("/healthz", healthz)

	e.GET("/api/tasks", h.listTasks)
	e.POST("/api/tasks", h.createTask)
	e.POST("/api/tasks/bulk/complete", h.bulkComplete)
	e.POST("/api/tasks/bulk/delete", h.bulkDelete)
	e.POST("/api/tasks/bulk/priority", h.bulkPriority)
	e.GET("/api/tasks/:id", h.getTask)
	e.PATCH("/api/tasks/:id", h.updateTask)
	e.DELETE("/api/tasks/:id", h.deleteTask)
	e.POST("/api/tasks/:id/toggle", h.toggleTask)

	e.GET("/api/categories", h.listCategories)
	e.POST("/api/categories", h.createCategory)
	e.GET("/api/categories/:id", h.getCategory)
	e.PATCH("/api/categories/:id", h.updateCategory)
	e.DELETE("/api/categories/:id", h.deleteCategory)
}

type handlers struct {
	svc Services
	log *log.Logger
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// requestLogger tags every request with an id and logs its outcome.
func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			c.Set("requestID", id)

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			entry := logger.WithFields(log.Fields{
				"request_id": id,
				"method":     c.Request().Method,
				"path":       c.Path(),
				"status":     c.Response().Status,
				"duration":   time.Since(start),
			})
			if c.Response().Status >= http.StatusInternalServerError {
				entry.Warn("request")
			} else {
				entry.Debug("request")
			}
			return nil
		}
	}
}

// syncCounts recomputes category counts off the request path.
func (h *handlers) syncCounts(ctx context.Context) {
	bg := context.WithoutCancel(ctx)
	h.svc.Dispatch(func() {
		tasks, err := h.svc.Tasks.List(bg)
		if err != nil {
			h.log.WithError(err).Warn("count sync: list tasks")
			return
		}
		h.svc.Categories.SyncTaskCounts(bg, tasks)
	})
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *handlers) fail(c echo.Context, err error) error {
	var verr *service.ValidationError
	var terr *service.TransportError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case service.IsNotFound(err):
		return c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.As(err, &terr):
		h.log.WithError(err).WithField("request_id", c.Get("requestID")).Error("store unavailable")
		return c.JSON(http.StatusBadGateway, errorResponse{Error: "store unavailable"})
	default:
		h.log.WithError(err).WithField("request_id", c.Get("requestID")).Error("unexpected error")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

func decode(c echo.Context, dst any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathID(c echo.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
