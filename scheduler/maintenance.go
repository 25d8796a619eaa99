package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CacheMaintainer drops expired cached results
type CacheMaintainer interface {
	DeleteExpired()
}

// SearchLogPruner deletes old search log entries
type SearchLogPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// MaintenanceConfig configures the periodic housekeeping job
type MaintenanceConfig struct {
	Schedule      string
	LogRetention  time.Duration
	TaskRetention time.Duration
}

// Maintenance runs housekeeping on a cron schedule: expired cache entries,
// finished async tasks and old search log rows.
type Maintenance struct {
	cron   *cron.Cron
	cache  CacheMaintainer
	log    SearchLogPruner
	tasks  *TaskManager
	cfg    MaintenanceConfig
	logger *slog.Logger
}

// NewMaintenance creates the housekeeping job. Any collaborator may be nil.
func NewMaintenance(cache CacheMaintainer, pruner SearchLogPruner, tasks *TaskManager, cfg MaintenanceConfig, logger *slog.Logger) *Maintenance {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maintenance{
		cron:   cron.New(cron.WithSeconds()),
		cache:  cache,
		log:    pruner,
		tasks:  tasks,
		cfg:    cfg,
		logger: logger,
	}
}

// Start schedules the job
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc(m.cfg.Schedule, func() { m.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("failed to schedule maintenance %q: %w", m.cfg.Schedule, err)
	}
	m.cron.Start()
	m.logger.Info("maintenance scheduled", "schedule", m.cfg.Schedule)
	return nil
}

// Stop stops the schedule and waits for a running job to finish
func (m *Maintenance) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}

// RunOnce performs one housekeeping pass
func (m *Maintenance) RunOnce(ctx context.Context) {
	if m.cache != nil {
		m.cache.DeleteExpired()
	}

	if m.tasks != nil && m.cfg.TaskRetention > 0 {
		m.tasks.CleanupOldTasks(m.cfg.TaskRetention)
	}

	if m.log != nil && m.cfg.LogRetention > 0 {
		cutoff := time.Now().Add(-m.cfg.LogRetention)
		n, err := m.log.PruneOlderThan(ctx, cutoff)
		if err != nil {
			m.logger.Warn("failed to prune search log", "error", err)
			return
		}
		if n > 0 {
			m.logger.Info("pruned search log", "removed", n, "cutoff", cutoff)
		}
	}
}
