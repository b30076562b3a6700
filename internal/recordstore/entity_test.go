package recordstore

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/model"
)

func TestTaskEntityUsesSuffixedAttributes(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	due := time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC)
	payload, err := encodeTask(model.Task{
		ID: 7, Title: "Write report", Description: "Q2", Category: "Work",
		Priority: model.PriorityHigh, DueDate: &due, CreatedAt: created,
	})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, sonic.Unmarshal(payload, &raw))
	assert.Equal(t, "taskflow", raw["PartitionKey"])
	assert.Equal(t, "0000000007", raw["RowKey"])
	assert.Equal(t, "Write report", raw["title_c"])
	assert.Equal(t, "Work", raw["category_c"])
	assert.Equal(t, "high", raw["priority_c"])
	assert.Equal(t, false, raw["completed_c"])
	assert.Equal(t, "Edm.DateTime", raw["due_date_c@odata.type"])
	assert.Equal(t, "Edm.DateTime", raw["created_at_c@odata.type"])
	assert.NotContains(t, raw, "completed_at_c")
	assert.NotContains(t, raw, "title")
}

func TestTaskEntityRoundTrip(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	done := created.Add(2 * time.Hour)
	in := model.Task{ID: 12, Title: "Ship", Category: "Work", Priority: model.PriorityLow, Completed: true, CompletedAt: &done, CreatedAt: created}

	payload, err := encodeTask(in)
	require.NoError(t, err)
	out, err := decodeTask(payload)
	require.NoError(t, err)

	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.Priority, out.Priority)
	assert.True(t, out.Completed)
	require.NotNil(t, out.CompletedAt)
	assert.True(t, done.Equal(*out.CompletedAt))
	assert.True(t, created.Equal(out.CreatedAt))
	assert.Nil(t, out.DueDate)
}

func TestDecodeTaskRepairsCompletion(t *testing.T) {
	done := []byte(`{"PartitionKey":"taskflow","RowKey":"0000000001","title_c":"a","completed_c":true,"created_at_c":"2026-05-01T09:00:00Z","priority_c":"bogus"}`)
	task, err := decodeTask(done)
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, model.PriorityMedium, task.Priority)

	open := []byte(`{"PartitionKey":"taskflow","RowKey":"0000000002","title_c":"b","completed_c":false,"completed_at_c":"2026-05-01T09:00:00Z"}`)
	task, err = decodeTask(open)
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)
}

func TestDecodeTaskBadRowKey(t *testing.T) {
	_, err := decodeTask([]byte(`{"RowKey":"abc"}`))
	assert.Error(t, err)
}

func TestCategoryEntityRoundTrip(t *testing.T) {
	payload, err := encodeCategory(model.Category{ID: 3, Name: "Health", Color: "#EF4444", TaskCount: 5})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, sonic.Unmarshal(payload, &raw))
	assert.Equal(t, "Health", raw["Name"])
	assert.Equal(t, "#EF4444", raw["color_c"])
	assert.EqualValues(t, 5, raw["task_count_c"])

	out, err := decodeCategory(payload)
	require.NoError(t, err)
	assert.Equal(t, model.Category{ID: 3, Name: "Health", Color: "#EF4444", TaskCount: 5}, out)
}

func TestCountUpdateCarriesOnlyCount(t *testing.T) {
	payload, err := encodeCountUpdate(4, 9)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, sonic.Unmarshal(payload, &raw))
	assert.Len(t, raw, 3)
	assert.EqualValues(t, 9, raw["task_count_c"])
}

func TestRowKeyOrdersNumerically(t *testing.T) {
	assert.Less(t, rowKey(9), rowKey(10))
	id, err := parseRowKey(rowKey(42))
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestQuoteEscapes(t *testing.T) {
	assert.Equal(t, "'Bob''s'", quote("Bob's"))
}

func TestNotFoundMapping(t *testing.T) {
	missing := &azcore.ResponseError{StatusCode: http.StatusNotFound}
	assert.ErrorIs(t, notFound(fmt.Errorf("get: %w", missing)), model.ErrNotFound)

	other := &azcore.ResponseError{StatusCode: http.StatusServiceUnavailable}
	assert.False(t, errors.Is(notFound(other), model.ErrNotFound))
	assert.NoError(t, notFound(nil))
	assert.True(t, hasStatus(&azcore.ResponseError{StatusCode: http.StatusConflict}, http.StatusConflict))
}
