package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned by Submit when the job queue has no room.
var ErrQueueFull = errors.New("job queue is full")

// Options size the worker pool.
type Options struct {
	WorkerCount   int
	MaxQueueSize  int
	SweepInterval time.Duration
}

// Orchestrator manages the document ingestion pipeline.
type Orchestrator struct {
	jobs  JobTracker
	queue chan *Job
	deps  Deps
	log   *slog.Logger
	opts  Options

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(opts Options, jobs JobTracker, deps Deps, log *slog.Logger) *Orchestrator {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 100
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	return &Orchestrator{
		jobs:  jobs,
		queue: make(chan *Job, opts.MaxQueueSize),
		deps:  deps,
		log:   log,
		opts:  opts,
	}
}

// Start launches worker goroutines. Jobs on different workers share only
// the tracker and the gateway's stats.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.opts.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.deps, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job tracker sweeping.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := o.jobs.SweepExpired(); n > 0 {
					o.log.Debug("expired jobs swept", "count", n)
				}
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	if job.SourceID == "" {
		job.SourceID = SourceIDFor(job.FileData())
	}
	o.jobs.Create(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.opts.MaxQueueSize)
	}
}

// RunSync processes job on the caller's goroutine, for the CLI.
func (o *Orchestrator) RunSync(ctx context.Context, job *Job) JobSnapshot {
	if job.SourceID == "" {
		job.SourceID = SourceIDFor(job.FileData())
	}
	o.jobs.Create(job)
	NewWorker(o.deps, o.log).Process(ctx, job)
	return job.Snapshot()
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
