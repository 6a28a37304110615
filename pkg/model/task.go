// Package model defines the core data structures used throughout the application.
package model

import (
	"time"
)

// TaskStatus represents the status of a profiling task.
type TaskStatus int

const (
	TaskStatusPending   TaskStatus = 0 // Not started
	TaskStatusRunning   TaskStatus = 1 // Pass in progress
	TaskStatusCompleted TaskStatus = 2 // Pass and census done
	TaskStatusFailed    TaskStatus = 3 // Pass aborted
	TaskStatusEmpty     TaskStatus = 5 // Snapshot had no live closures
)

// String returns the string representation of TaskStatus.
func (s TaskStatus) String() string {
	switch s {
	case TaskStatusPending:
		return "pending"
	case TaskStatusRunning:
		return "running"
	case TaskStatusCompleted:
		return "completed"
	case TaskStatusFailed:
		return "failed"
	case TaskStatusEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Task is one profiling run over a heap snapshot.
type Task struct {
	TaskUUID   string     `json:"tid"`
	InputFile  string     `json:"input_file"`
	OutputDir  string     `json:"output_dir"`
	Scheme     string     `json:"scheme"`
	Status     TaskStatus `json:"status"`
	StatusInfo string     `json:"status_info"`
	CreateTime time.Time  `json:"create_time"`
	BeginTime  *time.Time `json:"begin_time"`
	EndTime    *time.Time `json:"end_time"`
}

// NewTask creates a pending task.
func NewTask(taskUUID, inputFile, scheme string) *Task {
	return &Task{
		TaskUUID:   taskUUID,
		InputFile:  inputFile,
		Scheme:     scheme,
		Status:     TaskStatusPending,
		CreateTime: time.Now(),
	}
}

// Start marks the task running.
func (t *Task) Start(now time.Time) {
	t.Status = TaskStatusRunning
	t.BeginTime = &now
}

// Finish records the final status.
func (t *Task) Finish(now time.Time, status TaskStatus, info string) {
	t.Status = status
	t.StatusInfo = info
	t.EndTime = &now
}

// Duration returns the time between start and finish, or zero.
func (t *Task) Duration() time.Duration {
	if t.BeginTime == nil || t.EndTime == nil {
		return 0
	}
	return t.EndTime.Sub(*t.BeginTime)
}
