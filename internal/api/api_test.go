package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/model"
	"taskflow/internal/service"
	"taskflow/internal/testutil"
)

type fixture struct {
	e          *echo.Echo
	tasks      *testutil.TaskStore
	categories *testutil.CategoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureIn(t, time.UTC)
}

func newFixtureIn(t *testing.T, loc *time.Location) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	done := created.Add(time.Hour)
	tasks := testutil.NewTaskStore(
		model.Task{ID: 1, Title: "Write report", Category: "Work", Priority: model.PriorityHigh, CreatedAt: created},
		model.Task{ID: 2, Title: "Buy milk", Category: "Errands", Priority: model.PriorityLow, CreatedAt: created},
		model.Task{ID: 3, Title: "Review PR", Category: "Work", Priority: model.PriorityMedium, Completed: true, CompletedAt: &done, CreatedAt: created},
	)
	categories := testutil.NewCategoryStore(
		model.Category{ID: 1, Name: "Work", Color: model.DefaultCategoryColor},
		model.Category{ID: 2, Name: "Errands", Color: "#10B981"},
	)
	e := echo.New()
	Register(e, Services{
		Tasks:      service.NewTaskService(tasks, logger),
		Categories: service.NewCategoryService(categories, logger),
		Dispatch:   func(f func()) { f() },
		Location:   loc,
	}, logger)
	return &fixture{e: e, tasks: tasks, categories: categories}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthzSetsRequestID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestListTasksFilters(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/tasks?category=Work&status=active", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[tasksResponse](t, rec)
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "Write report", resp.Tasks[0].Title)
	require.NotNil(t, resp.Counts)
	assert.Equal(t, 3, resp.Counts.All)
	assert.Equal(t, 2, resp.Counts.ByCategory["Work"])
	assert.Nil(t, resp.Empty)
}

func TestListTasksEmptyState(t *testing.T) {
	f := newFixture(t)
	resp := decodeBody[tasksResponse](t, f.do(http.MethodGet, "/api/tasks?q=zzz", ""))
	assert.Empty(t, resp.Tasks)
	require.NotNil(t, resp.Empty)
	assert.Equal(t, "No tasks match your search", resp.Empty.Title)
}

func TestListTasksBadStatus(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/tasks?status=later", "").Code)
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/tasks", `{"title":"Call plumber","category":"Errands","priority":"high","dueDate":"2026-05-10"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	task := decodeBody[model.Task](t, rec)
	assert.Equal(t, uint(4), task.ID)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, 10, task.DueDate.Day())
	assert.Equal(t, 2, f.categories.Count("Errands"))
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/tasks", `{"title":"","category":""}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "Task title is required", resp.Fields["title"])
	assert.Equal(t, "Please select a category", resp.Fields["category"])
}

func TestCreateTaskMalformed(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/tasks", `{"title":`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/tasks", `{"title":"x","category":"Work","dueDate":"soon"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/tasks", `{"title":"x","unknown":1}`).Code)
}

func TestGetTaskNotFound(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/tasks/99", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/tasks/abc", "").Code)
}

func TestTransportFailureIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.tasks.Err = errors.New("connection reset")
	rec := f.do(http.MethodGet, "/api/tasks/1", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestUpdateTaskClearsDueDate(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPatch, "/api/tasks/2", `{"dueDate":"2026-06-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, decodeBody[model.Task](t, rec).DueDate)

	rec = f.do(http.MethodPatch, "/api/tasks/2", `{"dueDate":"","title":"Buy oat milk"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	task := decodeBody[model.Task](t, rec)
	assert.Nil(t, task.DueDate)
	assert.Equal(t, "Buy oat milk", task.Title)
}

func TestToggleTask(t *testing.T) {
	f := newFixture(t)
	task := decodeBody[model.Task](t, f.do(http.MethodPost, "/api/tasks/1/toggle", ""))
	assert.True(t, task.Completed)
	assert.NotNil(t, task.CompletedAt)

	task = decodeBody[model.Task](t, f.do(http.MethodPost, "/api/tasks/1/toggle", ""))
	assert.False(t, task.Completed)
	assert.Nil(t, task.CompletedAt)
}

func TestDeleteTask(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/tasks/2", "").Code)
	assert.Equal(t, 0, f.categories.Count("Errands"))
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/tasks/2", "").Code)
}

func TestBulkEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/tasks/bulk/complete", `{"ids":[1,3,42]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	completed := decodeBody[tasksResponse](t, rec)
	require.Len(t, completed.Tasks, 1)
	assert.Equal(t, uint(1), completed.Tasks[0].ID)

	rec = f.do(http.MethodPost, "/api/tasks/bulk/priority", `{"ids":[1,2],"priority":"low"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[tasksResponse](t, rec).Tasks, 2)

	rec = f.do(http.MethodPost, "/api/tasks/bulk/priority", `{"ids":[1],"priority":"urgent"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodPost, "/api/tasks/bulk/delete", `{"ids":[2,3,99]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[deletedResponse](t, rec).DeletedCount)
	assert.Equal(t, 1, f.categories.Count("Work"))
}

func TestCategoryRoutes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/categories", `{"name":"Health"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[model.Category](t, rec)
	assert.Equal(t, model.DefaultCategoryColor, created.Color)

	rec = f.do(http.MethodPost, "/api/categories", `{"name":"Work"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodPatch, "/api/categories/3", `{"color":"#EF4444"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "#EF4444", decodeBody[model.Category](t, rec).Color)

	list := decodeBody[[]model.Category](t, f.do(http.MethodGet, "/api/categories", ""))
	assert.Len(t, list, 3)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/categories/1", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/categories/1", "").Code)
	assert.Len(t, f.tasks.Tasks, 3, "deleting a category keeps its tasks")
}

func TestDueDatesUseConfiguredLocation(t *testing.T) {
	pacific := time.FixedZone("PDT", -7*3600)
	f := newFixtureIn(t, pacific)

	rec := f.do(http.MethodPost, "/api/tasks", `{"title":"Pay rent","category":"Errands","dueDate":"2026-05-30"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[model.Task](t, rec)
	stored, err := f.tasks.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DueDate)
	assert.True(t, stored.DueDate.Equal(time.Date(2026, 5, 30, 0, 0, 0, 0, pacific)))

	evening := time.Date(2026, 5, 30, 20, 0, 0, 0, pacific)
	assert.Equal(t, service.DueToday, service.ClassifyDue(*stored, evening))

	rec = f.do(http.MethodPatch, "/api/tasks/2", `{"dueDate":"2026-05-31"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, err = f.tasks.FindByID(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, stored.DueDate)
	assert.Equal(t, service.DueTomorrow, service.ClassifyDue(*stored, evening))
}
