package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []realtime.PushMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg realtime.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) events() []realtime.PushEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.PushEvent, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Event)
	}
	return out
}

func newTestRegistry(t *testing.T, opts RegistryOptions) (*Registry, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	log := logger.Nop()
	return NewRegistry(log, NewNotifier(log, pub), nil, opts), pub
}

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	reg, pub := newTestRegistry(t, RegistryOptions{})

	job := reg.Create(ctx, "report.txt")
	assert.Equal(t, domain.JobPending, job.Status)
	assert.NotEmpty(t, job.JobID)

	started, err := reg.Start(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobProcessing, started.Status)
	require.NotNil(t, started.StartedAt)

	_, err = reg.Progress(ctx, job.JobID, 0.5, 2, 4)
	require.NoError(t, err)
	done, err := reg.Complete(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, done.Status)
	assert.Equal(t, 1.0, done.Progress)
	assert.Equal(t, 4, done.ChunksProcessed)
	require.NotNil(t, done.CompletedAt)

	again, err := reg.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, done, again)

	for _, ch := range pub.msgs {
		assert.Equal(t, realtime.JobChannel(job.JobID), ch.Channel)
	}
	assert.Equal(t, []realtime.PushEvent{
		realtime.PushJobCreated, realtime.PushJobProgress, realtime.PushJobProgress, realtime.PushJobDone,
	}, pub.events())
}

func TestRegistryRejectsInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, RegistryOptions{})
	job := reg.Create(ctx, "a.md")

	_, err := reg.Progress(ctx, job.JobID, 0.1, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidTransition, "progress before start")

	_, err = reg.Start(ctx, job.JobID)
	require.NoError(t, err)
	_, err = reg.Start(ctx, job.JobID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "start twice")

	failed, err := reg.Fail(ctx, job.JobID, errors.New("parse error"))
	require.NoError(t, err)
	assert.Equal(t, "parse error", failed.Error)

	_, err = reg.Complete(ctx, job.JobID)
	assert.ErrorIs(t, err, ErrInvalidTransition, "complete after fail")
	_, err = reg.Fail(ctx, job.JobID, errors.New("again"))
	assert.ErrorIs(t, err, ErrInvalidTransition, "second terminal status")

	got, err := reg.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, failed, got, "terminal record is immutable")
}

func TestRegistryProgressIsMonotonic(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, RegistryOptions{})
	job := reg.Create(ctx, "a.csv")
	_, err := reg.Start(ctx, job.JobID)
	require.NoError(t, err)

	steps := []float64{0.2, 0.6, 0.4, 1.7, -1}
	last := 0.0
	for _, p := range steps {
		snap, err := reg.Progress(ctx, job.JobID, p, 0, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, snap.Progress, last)
		assert.LessOrEqual(t, snap.Progress, 1.0)
		last = snap.Progress
	}
	assert.Equal(t, 1.0, last)
}

func TestRegistryNotFoundIsDistinctFromFailed(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, RegistryOptions{})

	_, err := reg.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	job := reg.Create(ctx, "x.txt")
	_, _ = reg.Start(ctx, job.JobID)
	_, err = reg.Fail(ctx, job.JobID, errors.New("boom"))
	require.NoError(t, err)
	got, err := reg.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, got.Status)
}

func TestRegistryCancel(t *testing.T) {
	ctx := context.Background()
	reg, pub := newTestRegistry(t, RegistryOptions{})

	pending := reg.Create(ctx, "p.txt")
	require.NoError(t, reg.Cancel(ctx, pending.JobID))
	_, err := reg.Get(ctx, pending.JobID)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Contains(t, pub.events(), realtime.PushJobCancelled)

	running := reg.Create(ctx, "r.txt")
	_, _ = reg.Start(ctx, running.JobID)
	assert.ErrorIs(t, reg.Cancel(ctx, running.JobID), ErrInvalidTransition)

	_, _ = reg.Complete(ctx, running.JobID)
	assert.ErrorIs(t, reg.Cancel(ctx, running.JobID), ErrInvalidTransition)
	assert.ErrorIs(t, reg.Cancel(ctx, "nope"), ErrJobNotFound)
}

func TestRegistryListOrderFilterAndLimit(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	reg, _ := newTestRegistry(t, RegistryOptions{Now: func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}})

	a := reg.Create(ctx, "a")
	b := reg.Create(ctx, "b")
	c := reg.Create(ctx, "c")
	_, _ = reg.Start(ctx, a.JobID)
	_, _ = reg.Complete(ctx, a.JobID)

	all := reg.List("", 0)
	require.Len(t, all, 3)
	// a started last, so it sorts first
	assert.Equal(t, a.JobID, all[0].JobID)
	assert.Equal(t, c.JobID, all[1].JobID)
	assert.Equal(t, b.JobID, all[2].JobID)

	pending := reg.List(domain.JobPending, 0)
	require.Len(t, pending, 2)
	for _, j := range pending {
		assert.Equal(t, domain.JobPending, j.Status)
	}
	assert.Len(t, reg.List("", 1), 1)
}

func TestRegistryEvictsTerminalJobsAfterRetention(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, RegistryOptions{Retention: 50 * time.Millisecond})
	job := reg.Create(ctx, "short.txt")
	_, _ = reg.Start(ctx, job.JobID)
	_, err := reg.Complete(ctx, job.JobID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := reg.Get(ctx, job.JobID)
		return errors.Is(err, ErrJobNotFound)
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, reg.List("", 0))
}

func TestRegistryConcurrentWritesToSameJob(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t, RegistryOptions{})
	job := reg.Create(ctx, "c.txt")
	_, _ = reg.Start(ctx, job.JobID)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = reg.Progress(ctx, job.JobID, float64(n)/50, n, 50)
		}(i)
	}
	wg.Wait()
	got, err := reg.Get(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, 50, got.ChunksProcessed)
}
