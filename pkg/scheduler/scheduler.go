// pkg/scheduler/scheduler.go
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Task defines the interface for any periodic background job, such as the
// knowledge-base feed refresh.
type Task interface {
	Name() string
	Run(ctx context.Context)
}

type registration struct {
	task     Task
	interval time.Duration
	enabled  bool
}

// Scheduler manages the registration and execution of periodic tasks.
type Scheduler struct {
	tasks  []registration
	logger zerolog.Logger
}

// NewScheduler creates and returns a new Scheduler instance.
func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds a task to the scheduler's list. A non-positive interval
// disables the task.
func (s *Scheduler) Register(t Task, interval time.Duration) {
	s.tasks = append(s.tasks, registration{
		task:     t,
		interval: interval,
		enabled:  interval > 0,
	})
	s.logger.Info().
		Str("task", t.Name()).
		Dur("interval", interval).
		Msg("Task registered")
}

// Start launches all enabled tasks with their configured intervals.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Msg("Scheduler starting...")

	for _, reg := range s.tasks {
		if !reg.enabled {
			s.logger.Info().Str("task", reg.task.Name()).Msg("Task disabled, skipping")
			continue
		}
		s.logger.Info().
			Str("task", reg.task.Name()).
			Dur("interval", reg.interval).
			Msg("Starting task")
		go s.runTask(ctx, reg.task, reg.interval)
	}

	s.logger.Info().Msg("All configured tasks started.")
}

func (s *Scheduler) runTask(ctx context.Context, t Task, interval time.Duration) {
	// Run immediately on start
	s.logger.Debug().Str("task", t.Name()).Msg("Running task for the first time")
	t.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Debug().Str("task", t.Name()).Msg("Running task")
			t.Run(ctx)
		case <-ctx.Done():
			s.logger.Info().Str("task", t.Name()).Msg("Task received shutdown signal")
			return
		}
	}
}
