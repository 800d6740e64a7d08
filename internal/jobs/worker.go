package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

var ErrQueueFull = errors.New("ingestion queue is full")

// Task is one accepted upload waiting for processing.
type Task struct {
	JobID    string
	Filename string
	// Ref locates the stored upload (local path or object name).
	Ref string
}

// Handler processes one task. Returning nil completes the job; an error fails it.
type Handler interface {
	Run(jc *Context) error
}

type HandlerFunc func(jc *Context) error

func (f HandlerFunc) Run(jc *Context) error { return f(jc) }

// Worker runs tasks on a fixed number of goroutines.
type Worker struct {
	log      *logger.Logger
	registry *Registry
	handler  Handler
	workers  int
	queue    chan Task
	wg       sync.WaitGroup
	once     sync.Once
}

func NewWorker(baseLog *logger.Logger, registry *Registry, handler Handler, workers, queueSize int) *Worker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Worker{
		log:      baseLog.With("component", "IngestWorker"),
		registry: registry,
		handler:  handler,
		workers:  workers,
		queue:    make(chan Task, queueSize),
	}
}

// Enqueue hands a task to the pool without blocking.
func (w *Worker) Enqueue(task Task) error {
	select {
	case w.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the pool. It stops taking tasks when ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.once.Do(func() {
		for i := 0; i < w.workers; i++ {
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				for {
					select {
					case <-ctx.Done():
						return
					case task := <-w.queue:
						w.process(ctx, task)
					}
				}
			}()
		}
		w.log.Info("ingest worker started", "workers", w.workers)
	})
}

// Wait blocks until every worker goroutine has exited.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) process(ctx context.Context, task Task) {
	job, err := w.registry.Start(ctx, task.JobID)
	if err != nil {
		// cancelled while queued
		w.log.Debug("skipping task", "job_id", task.JobID, "error", err)
		return
	}
	jc := NewContext(ctx, w.registry, job, task)

	runErr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("ingest handler panic", "job_id", task.JobID, "panic", r)
				err = &panicError{Val: r}
			}
		}()
		if w.handler == nil {
			return errors.New("no ingest handler configured")
		}
		return w.handler.Run(jc)
	}()

	if runErr != nil {
		if _, err := w.registry.Fail(ctx, task.JobID, runErr); err != nil {
			w.log.Warn("mark job failed", "job_id", task.JobID, "error", err)
		}
		w.log.Warn("ingestion failed", "job_id", task.JobID, "filename", task.Filename, "error", runErr)
		return
	}
	if _, err := w.registry.Complete(ctx, task.JobID); err != nil {
		w.log.Warn("mark job completed", "job_id", task.JobID, "error", err)
		return
	}
	w.log.Info("ingestion completed", "job_id", task.JobID, "filename", task.Filename)
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

// Context is the handle a Handler uses to report progress for its job.
type Context struct {
	Ctx  context.Context
	Job  domain.IngestionJob
	Task Task

	registry *Registry
}

func NewContext(ctx context.Context, registry *Registry, job domain.IngestionJob, task Task) *Context {
	return &Context{Ctx: ctx, Job: job, Task: task, registry: registry}
}

// Progress reports processed of total units done.
func (c *Context) Progress(processed, total int) error {
	var p float64
	if total > 0 {
		p = float64(processed) / float64(total)
	}
	job, err := c.registry.Progress(c.Ctx, c.Job.JobID, p, processed, total)
	if err != nil {
		return err
	}
	c.Job = job
	return nil
}
