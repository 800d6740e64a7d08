package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/r3labs/sse/v2"

	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

const (
	DefaultPollInterval = time.Second
	DefaultMaxPolls     = 600
)

// ErrWatchExhausted is returned when polling gives up before the job finished.
var ErrWatchExhausted = errors.New("job still running after the last poll")

type WatchOptions struct {
	Interval    time.Duration
	MaxAttempts int
	// Push subscribes to the job's event stream and falls back to polling if the stream
	// fails before the job finishes.
	Push bool
	// OnUpdate sees every observed state. It runs on the watcher goroutine and must not
	// call Stop.
	OnUpdate func(domain.IngestionJob)
	Log      *logger.Logger
}

// JobWatcher follows one job until it reaches a terminal status, the watch is exhausted, or
// Stop is called. Observed progress never decreases.
type JobWatcher struct {
	api   *API
	jobID string
	opts  WatchOptions
	log   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
	last    domain.IngestionJob
	seen    bool
	err     error
}

// WatchJob starts watching jobID in the background.
func (a *API) WatchJob(ctx context.Context, jobID string, opts WatchOptions) *JobWatcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxPolls
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &JobWatcher{
		api:    a,
		jobID:  jobID,
		opts:   opts,
		log:    log.With("job_id", jobID),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

// Wait blocks until the watch ends and returns the last observed job.
func (w *JobWatcher) Wait() (domain.IngestionJob, error) {
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last, w.err
}

// Stop cancels the watch and waits for it to wind down. No OnUpdate call starts after Stop
// returns.
func (w *JobWatcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cancel()
	<-w.done
}

func (w *JobWatcher) run() {
	defer close(w.done)
	defer w.cancel()

	if w.opts.Push {
		finished, err := w.push()
		if finished {
			w.finish(err)
			return
		}
		if w.ctx.Err() != nil {
			w.finish(w.ctx.Err())
			return
		}
		w.log.Warn("job event stream failed; polling instead", "error", err)
	}
	w.finish(w.poll())
}

func (w *JobWatcher) poll() error {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for attempt := 0; attempt < w.opts.MaxAttempts; attempt++ {
		job, err := w.api.JobStatus(w.ctx, w.jobID)
		switch {
		case err == nil:
			if w.observe(job) {
				return nil
			}
		case w.ctx.Err() != nil:
			return w.ctx.Err()
		default:
			var nf *NotFoundError
			if errors.As(err, &nf) {
				return err
			}
			w.log.Debug("job poll failed", "attempt", attempt+1, "error", err)
		}

		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		case <-ticker.C:
		}
	}
	return ErrWatchExhausted
}

// push follows the job's event stream. finished reports whether the watch is over.
func (w *JobWatcher) push() (finished bool, err error) {
	// The stream endpoint cannot distinguish unknown jobs, so check once first.
	job, err := w.api.JobStatus(w.ctx, w.jobID)
	if err != nil {
		var nf *NotFoundError
		return errors.As(err, &nf), err
	}
	if w.observe(job) {
		return true, nil
	}

	sub := sse.NewClient(w.api.BaseURL + "/api/v1/ingest/events/" + url.PathEscape(w.jobID))
	sub.Connection = httpClientNoTimeout(w.api)
	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()

	var terminal atomic.Bool
	err = sub.SubscribeRawWithContext(ctx, func(msg *sse.Event) {
		if len(msg.Data) == 0 {
			return
		}
		var push struct {
			Event realtime.PushEvent   `json:"event"`
			Data  domain.IngestionJob `json:"data"`
		}
		if jerr := json.Unmarshal(msg.Data, &push); jerr != nil {
			w.log.Debug("dropping malformed job event", "error", jerr)
			return
		}
		if push.Data.JobID == "" {
			push.Data.JobID = w.jobID
		}
		if w.observe(push.Data) || push.Event.Terminal() {
			terminal.Store(true)
			cancel()
		}
	})
	if terminal.Load() {
		return true, nil
	}
	if err == nil {
		err = ErrStreamEnded
	}
	return false, err
}

// observe records job and reports whether it is terminal. Progress is clamped so that
// an older snapshot arriving late never moves it back.
func (w *JobWatcher) observe(job domain.IngestionJob) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return true
	}
	if w.seen && w.last.Status.Terminal() {
		return true
	}
	if w.seen && !job.Status.Terminal() {
		if job.Progress < w.last.Progress {
			job.Progress = w.last.Progress
		}
		if job.ChunksProcessed < w.last.ChunksProcessed {
			job.ChunksProcessed = w.last.ChunksProcessed
		}
		if w.last.Status == domain.JobProcessing && job.Status == domain.JobPending {
			job.Status = domain.JobProcessing
		}
	}
	w.last, w.seen = job, true
	if w.opts.OnUpdate != nil {
		w.opts.OnUpdate(job)
	}
	return job.Status.Terminal()
}

func (w *JobWatcher) finish(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil && w.stopped {
		err = context.Canceled
	}
	if w.err == nil {
		w.err = err
	}
}

func httpClientNoTimeout(a *API) *http.Client {
	c := *httpClient(a.HTTP)
	c.Timeout = 0
	return &c
}
