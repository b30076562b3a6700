package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	for raw, want := range map[string]Priority{"low": PriorityLow, " Medium ": PriorityMedium, "HIGH": PriorityHigh} {
		got, err := ParsePriority(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := ParsePriority("urgent")
	assert.Error(t, err)
	assert.False(t, Priority("").Valid())
	assert.True(t, PriorityLow.Valid())
}

func TestSetCompletedKeepsTimestampInStep(t *testing.T) {
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	task := Task{Title: "x"}

	task.SetCompleted(true, at)
	assert.True(t, task.Completed)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, at, *task.CompletedAt)

	task.SetCompleted(false, at.Add(time.Hour))
	assert.False(t, task.Completed)
	assert.Nil(t, task.CompletedAt)
}

func TestParseDueDate(t *testing.T) {
	due, err := ParseDueDate("", nil)
	require.NoError(t, err)
	assert.Nil(t, due)

	loc := time.FixedZone("UTC+3", 3*60*60)
	due, err = ParseDueDate("2026-05-10", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, loc), *due)

	due, err = ParseDueDate("2026-05-10T15:04:05Z", nil)
	require.NoError(t, err)
	assert.Equal(t, 15, due.Hour())

	_, err = ParseDueDate("next tuesday", nil)
	assert.Error(t, err)
}
