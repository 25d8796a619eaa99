package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of an async task
type TaskStatus string

const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// SearchTask represents an async search
type SearchTask struct {
	ID          string     `json:"id"`
	Query       string     `json:"query"`
	Status      TaskStatus `json:"status"`
	Progress    int        `json:"progress"` // 0-100
	Message     string     `json:"message"`
	Results     []Product  `json:"results,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSearchTask creates a new queued search task
func NewSearchTask(query string) *SearchTask {
	return &SearchTask{
		ID:        generateTaskID(),
		Query:     query,
		Status:    TaskStatusQueued,
		Progress:  0,
		Message:   "Task queued for processing",
		CreatedAt: time.Now(),
	}
}

// Start marks the task as processing
func (t *SearchTask) Start() {
	t.Status = TaskStatusProcessing
	t.Progress = 10
	t.Message = "Searching sources..."
	now := time.Now()
	t.StartedAt = &now
}

// Complete marks the task as completed with results
func (t *SearchTask) Complete(results []Product) {
	t.Status = TaskStatusCompleted
	t.Progress = 100
	t.Message = "Search completed successfully"
	t.Results = results
	now := time.Now()
	t.CompletedAt = &now
}

// Fail marks the task as failed with error
func (t *SearchTask) Fail(err string) {
	t.Status = TaskStatusFailed
	t.Progress = 0
	t.Message = "Search failed"
	t.Error = err
	now := time.Now()
	t.CompletedAt = &now
}

// IsCompleted returns true if the task is in a final state
func (t *SearchTask) IsCompleted() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// IsActive returns true if the task is still running
func (t *SearchTask) IsActive() bool {
	return t.Status == TaskStatusQueued || t.Status == TaskStatusProcessing
}

// Duration returns the duration of the task
func (t *SearchTask) Duration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}

	endTime := time.Now()
	if t.CompletedAt != nil {
		endTime = *t.CompletedAt
	}

	return endTime.Sub(*t.StartedAt)
}

// Snapshot returns a copy that is safe to hand to readers
func (t *SearchTask) Snapshot() SearchTask {
	c := *t
	if t.Results != nil {
		c.Results = append([]Product(nil), t.Results...)
	}
	return c
}

// generateTaskID generates a unique task ID
func generateTaskID() string {
	return "task_" + time.Now().Format("20060102150405") + "_" + uuid.NewString()[:8]
}
