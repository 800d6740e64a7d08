package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 1000
)

// Store persists job records. The registry treats it as best effort.
type Store interface {
	Save(ctx context.Context, job *domain.IngestionJob) error
	Delete(ctx context.Context, jobID string) error
	Get(ctx context.Context, jobID string) (*domain.IngestionJob, error)
}

type RegistryOptions struct {
	// Retention is how long terminal jobs stay queryable in memory.
	Retention time.Duration
	// MaxRetained caps the number of terminal jobs kept in memory.
	MaxRetained int
	Now         func() time.Time
}

// Registry owns every ingestion job of the process. Writes are serialized; status follows
// pending -> processing -> completed|failed and terminal records never change.
type Registry struct {
	log    *logger.Logger
	notify *Notifier
	store  Store
	now    func() time.Time

	mu       sync.Mutex
	active   map[string]*domain.IngestionJob
	terminal *expirable.LRU[string, domain.IngestionJob]
}

func NewRegistry(log *logger.Logger, notify *Notifier, store Store, opts RegistryOptions) *Registry {
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.MaxRetained <= 0 {
		opts.MaxRetained = 1024
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Registry{
		log:      log.With("component", "JobRegistry"),
		notify:   notify,
		store:    store,
		now:      opts.Now,
		active:   make(map[string]*domain.IngestionJob),
		terminal: expirable.NewLRU[string, domain.IngestionJob](opts.MaxRetained, nil, opts.Retention),
	}
}

func (r *Registry) Create(ctx context.Context, filename string) domain.IngestionJob {
	now := r.now()
	job := &domain.IngestionJob{
		JobID:     uuid.New().String(),
		Status:    domain.JobPending,
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.mu.Lock()
	r.active[job.JobID] = job
	snap := *job
	r.mu.Unlock()

	observability.Current().JobStarted()
	r.persist(ctx, &snap)
	r.notify.JobCreated(ctx, snap)
	return snap
}

// Get returns the job snapshot. Jobs that aged out of memory are looked up in the store.
func (r *Registry) Get(ctx context.Context, jobID string) (domain.IngestionJob, error) {
	r.mu.Lock()
	if job, ok := r.active[jobID]; ok {
		snap := *job
		r.mu.Unlock()
		return snap, nil
	}
	if job, ok := r.terminal.Peek(jobID); ok {
		r.mu.Unlock()
		return job, nil
	}
	r.mu.Unlock()

	if r.store != nil {
		job, err := r.store.Get(ctx, jobID)
		if err == nil && job != nil {
			return *job, nil
		}
		if err != nil && !errors.Is(err, ErrJobNotFound) {
			r.log.Warn("job store lookup failed", "job_id", jobID, "error", err)
		}
	}
	return domain.IngestionJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
}

// List returns in-memory jobs, most recent first. An empty status matches every job.
func (r *Registry) List(status domain.JobStatus, limit int) []domain.IngestionJob {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	r.mu.Lock()
	out := make([]domain.IngestionJob, 0, len(r.active))
	for _, job := range r.active {
		if status == "" || job.Status == status {
			out = append(out, *job)
		}
	}
	for _, job := range r.terminal.Values() {
		if status == "" || job.Status == status {
			out = append(out, job)
		}
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].SortTime(), out[j].SortTime()
		if ti.Equal(tj) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return ti.After(tj)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *Registry) Start(ctx context.Context, jobID string) (domain.IngestionJob, error) {
	snap, err := r.update(jobID, func(job *domain.IngestionJob) error {
		if job.Status != domain.JobPending {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, domain.JobProcessing)
		}
		now := r.now()
		job.Status = domain.JobProcessing
		job.StartedAt = &now
		return nil
	})
	if err != nil {
		return snap, err
	}
	r.persist(ctx, &snap)
	r.notify.JobProgress(ctx, snap)
	return snap, nil
}

// Progress records pipeline progress. progress is clamped to [0,1] and never decreases;
// processed never decreases; total is updated when positive.
func (r *Registry) Progress(ctx context.Context, jobID string, progress float64, processed, total int) (domain.IngestionJob, error) {
	snap, err := r.update(jobID, func(job *domain.IngestionJob) error {
		if job.Status != domain.JobProcessing {
			return fmt.Errorf("%w: progress while %s", ErrInvalidTransition, job.Status)
		}
		progress = clamp01(progress)
		if progress > job.Progress {
			job.Progress = progress
		}
		if processed > job.ChunksProcessed {
			job.ChunksProcessed = processed
		}
		if total > 0 {
			job.TotalChunks = total
		}
		return nil
	})
	if err != nil {
		return snap, err
	}
	r.persist(ctx, &snap)
	r.notify.JobProgress(ctx, snap)
	return snap, nil
}

func (r *Registry) Complete(ctx context.Context, jobID string) (domain.IngestionJob, error) {
	snap, err := r.finish(jobID, func(job *domain.IngestionJob) {
		job.Status = domain.JobCompleted
		job.Progress = 1
		if job.TotalChunks > 0 {
			job.ChunksProcessed = job.TotalChunks
		}
	})
	if err != nil {
		return snap, err
	}
	r.persist(ctx, &snap)
	r.notify.JobDone(ctx, snap)
	return snap, nil
}

func (r *Registry) Fail(ctx context.Context, jobID string, cause error) (domain.IngestionJob, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	snap, err := r.finish(jobID, func(job *domain.IngestionJob) {
		job.Status = domain.JobFailed
		job.Error = msg
	})
	if err != nil {
		return snap, err
	}
	r.persist(ctx, &snap)
	r.notify.JobFailed(ctx, snap)
	return snap, nil
}

// Cancel removes a pending job. Jobs already processing or finished cannot be cancelled.
func (r *Registry) Cancel(ctx context.Context, jobID string) error {
	r.mu.Lock()
	job, ok := r.active[jobID]
	if !ok {
		_, retained := r.terminal.Peek(jobID)
		r.mu.Unlock()
		if retained {
			return fmt.Errorf("%w: job %s already finished", ErrInvalidTransition, jobID)
		}
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status != domain.JobPending {
		status := job.Status
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel %s job", ErrInvalidTransition, status)
	}
	delete(r.active, jobID)
	snap := *job
	r.mu.Unlock()

	observability.Current().JobFinished("cancelled")
	if r.store != nil {
		if err := r.store.Delete(ctx, jobID); err != nil {
			r.log.Warn("job store delete failed", "job_id", jobID, "error", err)
		}
	}
	r.notify.JobCancelled(ctx, snap)
	return nil
}

func (r *Registry) update(jobID string, fn func(job *domain.IngestionJob) error) (domain.IngestionJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.active[jobID]
	if !ok {
		if done, retained := r.terminal.Peek(jobID); retained {
			return done, fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, jobID, done.Status)
		}
		return domain.IngestionJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if err := fn(job); err != nil {
		return *job, err
	}
	job.UpdatedAt = r.now()
	return *job, nil
}

func (r *Registry) finish(jobID string, fn func(job *domain.IngestionJob)) (domain.IngestionJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.active[jobID]
	if !ok {
		if done, retained := r.terminal.Peek(jobID); retained {
			return done, fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, jobID, done.Status)
		}
		return domain.IngestionJob{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	now := r.now()
	fn(job)
	job.CompletedAt = &now
	job.UpdatedAt = now
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	snap := *job
	delete(r.active, jobID)
	r.terminal.Add(jobID, snap)
	observability.Current().JobFinished(string(snap.Status))
	return snap, nil
}

func (r *Registry) persist(ctx context.Context, job *domain.IngestionJob) {
	if r.store == nil {
		return
	}
	if err := r.store.Save(ctx, job); err != nil {
		r.log.Warn("job store save failed", "job_id", job.JobID, "status", job.Status, "error", err)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
