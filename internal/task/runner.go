package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RunnerConfig holds configuration for the deferred work runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// TaskTimeout bounds the execution of a single task
	TaskTimeout time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
		TaskTimeout: 30 * time.Second,
	}
}

// Runner manages deferred task processing with a bounded in-memory queue
// and a fixed worker pool. Queued work survives graceful shutdown (Stop
// drains the queue) but not a crash.
type Runner struct {
	taskChan chan Task
	config   RunnerConfig
	logger   *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewRunner creates a new Runner. If logger is nil, a default logger will
// be used.
func NewRunner(config RunnerConfig, log *slog.Logger) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultRunnerConfig().WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultRunnerConfig().QueueSize
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = DefaultRunnerConfig().TaskTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Runner{
		taskChan: make(chan Task, config.QueueSize),
		config:   config,
		logger:   log.With(slog.String("component", "task_runner")),
		done:     make(chan struct{}),
	}
}

// Ensure Runner implements the Deferrer interface
var _ Deferrer = (*Runner)(nil)

// Submit implements Deferrer.
func (r *Runner) Submit(task Task) error {
	select {
	case <-r.done:
		return fmt.Errorf("task runner is stopped")
	default:
	}

	select {
	case r.taskChan <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// Start launches the worker pool.
func (r *Runner) Start() {
	r.startOnce.Do(func() {
		for i := 0; i < r.config.WorkerCount; i++ {
			r.wg.Add(1)
			go r.worker(i)
		}
		r.logger.Info("task runner started",
			slog.Int("worker_count", r.config.WorkerCount),
			slog.Int("queue_size", r.config.QueueSize))
	})
}

// Stop shuts the runner down gracefully: no new submissions are accepted
// and the workers drain whatever is already queued before exiting.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		close(r.taskChan)
		r.wg.Wait()
		r.logger.Info("task runner stopped")
	})
}

// worker processes tasks from the queue until it is closed and drained.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	log := r.logger.With(slog.Int("worker_id", id))
	log.Debug("starting worker")

	for task := range r.taskChan {
		r.execute(task, log)
	}

	log.Debug("stopping worker")
}

func (r *Runner) execute(task Task, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.TaskTimeout)
	defer cancel()

	start := time.Now()
	if err := task.Execute(ctx); err != nil {
		log.Error("task execution failed",
			slog.String("task_id", task.ID().String()),
			slog.String("task_type", task.Type()),
			slog.String("error", err.Error()))
		return
	}

	log.Debug("task executed",
		slog.String("task_id", task.ID().String()),
		slog.String("task_type", task.Type()),
		slog.Duration("elapsed", time.Since(start)))
}
