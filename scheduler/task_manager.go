package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"dealscout/models"
)

// ErrQueueFull is returned when no more searches can be queued
var ErrQueueFull = errors.New("task queue is full")

// ErrStopped is returned when submitting to a stopped task manager
var ErrStopped = errors.New("task manager stopped")

// SearchFunc runs one search
type SearchFunc func(ctx context.Context, query string) ([]models.Product, error)

// TaskManagerConfig configures the async search pool
type TaskManagerConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
}

// TaskManager runs searches in the background on a fixed pool of workers
type TaskManager struct {
	tasks     map[string]*models.SearchTask
	taskQueue chan *models.SearchTask
	search    SearchFunc
	cfg       TaskManagerConfig
	active    atomic.Int32
	mutex     sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
	logger    *slog.Logger
}

// NewTaskManager creates a task manager and starts its workers
func NewTaskManager(search SearchFunc, cfg TaskManagerConfig, logger *slog.Logger) *TaskManager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	tm := &TaskManager{
		tasks:     make(map[string]*models.SearchTask),
		taskQueue: make(chan *models.SearchTask, cfg.QueueSize),
		search:    search,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}

	for i := 0; i < cfg.Workers; i++ {
		tm.wg.Add(1)
		go tm.worker(i)
	}
	logger.Info("task manager started", "workers", cfg.Workers, "queue_size", cfg.QueueSize)
	return tm
}

// SubmitTask queues a search and returns the queued task
func (tm *TaskManager) SubmitTask(query string) (models.SearchTask, error) {
	if tm.ctx.Err() != nil {
		return models.SearchTask{}, ErrStopped
	}

	task := models.NewSearchTask(query)

	tm.mutex.Lock()
	tm.tasks[task.ID] = task
	snapshot := task.Snapshot()
	tm.mutex.Unlock()

	select {
	case tm.taskQueue <- task:
		tm.logger.Debug("task submitted", "task_id", task.ID, "query", query)
		return snapshot, nil
	default:
		tm.update(task, func(t *models.SearchTask) { t.Fail(ErrQueueFull.Error()) })
		tm.logger.Warn("failed to submit task", "task_id", task.ID, "error", ErrQueueFull)
		return tm.snapshot(task), ErrQueueFull
	}
}

// GetTask returns a copy of the task with the given ID
func (tm *TaskManager) GetTask(taskID string) (models.SearchTask, bool) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	task, exists := tm.tasks[taskID]
	if !exists {
		return models.SearchTask{}, false
	}
	return task.Snapshot(), true
}

// CleanupOldTasks removes finished tasks created before maxAge ago
func (tm *TaskManager) CleanupOldTasks(maxAge time.Duration) int {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for taskID, task := range tm.tasks {
		if task.IsCompleted() && task.CreatedAt.Before(cutoff) {
			delete(tm.tasks, taskID)
			removed++
		}
	}
	if removed > 0 {
		tm.logger.Info("cleaned up old tasks", "removed", removed)
	}
	return removed
}

// GetStats returns task manager statistics
func (tm *TaskManager) GetStats() map[string]interface{} {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	statusCounts := make(map[string]int)
	activeTasks := 0
	for _, task := range tm.tasks {
		statusCounts[string(task.Status)]++
		if task.IsActive() {
			activeTasks++
		}
	}

	return map[string]interface{}{
		"total_tasks":     len(tm.tasks),
		"active_tasks":    activeTasks,
		"active_workers":  int(tm.active.Load()),
		"max_workers":     tm.cfg.Workers,
		"queue_size":      len(tm.taskQueue),
		"tasks_by_status": statusCounts,
	}
}

// Stop cancels running searches and waits for the workers to exit.
// Tasks still queued are marked failed.
func (tm *TaskManager) Stop() {
	tm.stopOnce.Do(func() {
		tm.cancel()
		tm.wg.Wait()

		for {
			select {
			case task := <-tm.taskQueue:
				tm.update(task, func(t *models.SearchTask) { t.Fail(ErrStopped.Error()) })
			default:
				tm.logger.Info("task manager stopped")
				return
			}
		}
	})
}

func (tm *TaskManager) worker(id int) {
	defer tm.wg.Done()
	for {
		select {
		case <-tm.ctx.Done():
			return
		case task := <-tm.taskQueue:
			if tm.ctx.Err() != nil {
				tm.update(task, func(t *models.SearchTask) { t.Fail(ErrStopped.Error()) })
				return
			}
			tm.run(id, task)
		}
	}
}

func (tm *TaskManager) run(workerID int, task *models.SearchTask) {
	tm.active.Add(1)
	defer tm.active.Add(-1)

	logger := tm.logger.With("task_id", task.ID, "worker", workerID)
	tm.update(task, (*models.SearchTask).Start)

	ctx, cancel := context.WithTimeout(tm.ctx, tm.cfg.TaskTimeout)
	defer cancel()

	results, err := tm.safeSearch(ctx, task.Query)
	if err != nil {
		tm.update(task, func(t *models.SearchTask) { t.Fail("Search failed: " + err.Error()) })
		logger.Warn("task failed", "query", task.Query, "error", err)
		return
	}

	tm.update(task, func(t *models.SearchTask) { t.Complete(results) })
	done := tm.snapshot(task)
	logger.Info("task completed", "query", task.Query, "results", len(results), "duration", done.Duration())
}

func (tm *TaskManager) safeSearch(ctx context.Context, query string) (results []models.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tm.search(ctx, query)
}

func (tm *TaskManager) update(task *models.SearchTask, fn func(*models.SearchTask)) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	fn(task)
}

func (tm *TaskManager) snapshot(task *models.SearchTask) models.SearchTask {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()
	return task.Snapshot()
}
