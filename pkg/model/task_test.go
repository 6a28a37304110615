package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatus_String(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		expected string
	}{
		{TaskStatusPending, "pending"},
		{TaskStatusRunning, "running"},
		{TaskStatusCompleted, "completed"},
		{TaskStatusFailed, "failed"},
		{TaskStatusEmpty, "empty"},
		{TaskStatus(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
		})
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewTask("uuid-1", "heap.json", "ccs")
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, time.Duration(0), task.Duration())

	begin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	task.Start(begin)
	assert.Equal(t, TaskStatusRunning, task.Status)
	assert.Equal(t, time.Duration(0), task.Duration())

	task.Finish(begin.Add(3*time.Second), TaskStatusCompleted, "ok")
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Equal(t, "ok", task.StatusInfo)
	assert.Equal(t, 3*time.Second, task.Duration())
}
