// Package dispatch provides the async worker pool that hands due jobs to
// the executor. The scheduler submits without blocking; each worker calls
// Launch and records the outcome. There is no retry: a failed launch is a
// missed run.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tabd/internal/crontab"
	"tabd/internal/executor"
	"tabd/internal/logger"
	"tabd/internal/metrics"
)

// Task wraps one due job for dispatch.
type Task struct {
	ID  string
	Job crontab.JobDefinition
}

func newTask(job crontab.JobDefinition) Task {
	return Task{
		ID:  fmt.Sprintf("dispatch_%s_%d", job.Label(), time.Now().UnixNano()),
		Job: job,
	}
}

// PoolStats tracks dispatch accounting for the pool.
type PoolStats struct {
	Submitted uint64
	Launched  uint64
	Failed    uint64
	Dropped   uint64
}

// Pool manages a fixed set of dispatcher goroutines over a buffered queue.
type Pool struct {
	taskQueue chan Task
	workers   int
	exec      executor.Executor
	log       *logger.Logger
	metrics   *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats PoolStats
}

func NewPool(workers, queueSize int, exec executor.Executor, m *metrics.Metrics, log *logger.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		taskQueue: make(chan Task, queueSize),
		workers:   workers,
		exec:      exec,
		log:       log,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the dispatcher goroutines.
func (p *Pool) Start() {
	p.log.Info("starting dispatch pool",
		logger.Field{Key: "workers", Value: p.workers},
		logger.Field{Key: "queue_size", Value: cap(p.taskQueue)})

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit enqueues a job for dispatch without blocking the scheduler tick.
// When the queue is full the job is dropped and counted; a minute-resolution
// scheduler must never stall behind a slow executor.
func (p *Pool) Submit(job crontab.JobDefinition) {
	task := newTask(job)

	p.mu.Lock()
	p.stats.Submitted++
	p.mu.Unlock()

	select {
	case p.taskQueue <- task:
	default:
		p.mu.Lock()
		p.stats.Dropped++
		p.mu.Unlock()
		if p.metrics != nil {
			p.metrics.RecordDispatch(metrics.StatusDropped, 0)
		}
		p.log.Warn("dispatch queue full, dropping job",
			logger.Field{Key: "job", Value: job.Label()})
	}
}

// Stop shuts the pool down and waits for in-flight launches to hand off.
// Already-launched jobs keep running; they belong to the executor now.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()

	stats := p.Stats()
	p.log.Info("dispatch pool stopped",
		logger.Field{Key: "submitted", Value: stats.Submitted},
		logger.Field{Key: "launched", Value: stats.Launched},
		logger.Field{Key: "failed", Value: stats.Failed},
		logger.Field{Key: "dropped", Value: stats.Dropped})
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// QueueSize returns the number of tasks waiting in the queue.
func (p *Pool) QueueSize() int {
	return len(p.taskQueue)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("dispatcher panic recovered", fmt.Errorf("panic: %v", r),
				logger.Field{Key: "worker_id", Value: id})
		}
	}()

	for {
		select {
		case task := <-p.taskQueue:
			p.launch(id, task)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Pool) launch(workerID int, task Task) {
	start := time.Now()
	handle, err := p.exec.Launch(p.ctx, task.Job)
	duration := time.Since(start)

	p.mu.Lock()
	if err != nil {
		p.stats.Failed++
	} else {
		p.stats.Launched++
	}
	p.mu.Unlock()

	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordDispatch(metrics.StatusFailed, duration)
		}
		p.log.Error("dispatch failed", err,
			logger.Field{Key: "worker_id", Value: workerID},
			logger.Field{Key: "task_id", Value: task.ID},
			logger.Field{Key: "job", Value: task.Job.Label()},
			logger.Field{Key: "identity", Value: task.Job.Identity})
		return
	}

	if p.metrics != nil {
		p.metrics.RecordDispatch(metrics.StatusLaunched, duration)
	}
	p.log.Info("job dispatched",
		logger.Field{Key: "worker_id", Value: workerID},
		logger.Field{Key: "task_id", Value: task.ID},
		logger.Field{Key: "job", Value: task.Job.Label()},
		logger.Field{Key: "identity", Value: task.Job.Identity},
		logger.Field{Key: "execution_id", Value: handle.ID},
		logger.Field{Key: "ref", Value: handle.Ref})
}
