package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

func waitTerminal(t *testing.T, reg *Registry, id string) domain.IngestionJob {
	t.Helper()
	var job domain.IngestionJob
	require.Eventually(t, func() bool {
		got, err := reg.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = got
		return got.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestWorkerReportsRealProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg, _ := newTestRegistry(t, RegistryOptions{})

	var seen []float64
	handler := HandlerFunc(func(jc *Context) error {
		for i := 1; i <= 4; i++ {
			if err := jc.Progress(i, 4); err != nil {
				return err
			}
			seen = append(seen, jc.Job.Progress)
		}
		return nil
	})
	w := NewWorker(logger.Nop(), reg, handler, 2, 8)
	w.Start(ctx)

	job := reg.Create(ctx, "doc.txt")
	require.NoError(t, w.Enqueue(Task{JobID: job.JobID, Filename: "doc.txt"}))

	done := waitTerminal(t, reg, job.JobID)
	assert.Equal(t, domain.JobCompleted, done.Status)
	assert.Equal(t, 4, done.TotalChunks)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, seen)
}

func TestWorkerFailsJobOnErrorAndPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reg, _ := newTestRegistry(t, RegistryOptions{})

	handler := HandlerFunc(func(jc *Context) error {
		if jc.Task.Filename == "panic.txt" {
			panic("bad chunk")
		}
		return errors.New("unreadable upload")
	})
	w := NewWorker(logger.Nop(), reg, handler, 1, 8)
	w.Start(ctx)

	errJob := reg.Create(ctx, "err.txt")
	panicJob := reg.Create(ctx, "panic.txt")
	require.NoError(t, w.Enqueue(Task{JobID: errJob.JobID, Filename: "err.txt"}))
	require.NoError(t, w.Enqueue(Task{JobID: panicJob.JobID, Filename: "panic.txt"}))

	got := waitTerminal(t, reg, errJob.JobID)
	assert.Equal(t, domain.JobFailed, got.Status)
	assert.Equal(t, "unreadable upload", got.Error)

	got = waitTerminal(t, reg, panicJob.JobID)
	assert.Equal(t, domain.JobFailed, got.Status)
	assert.Contains(t, got.Error, "bad chunk")
}

func TestWorkerSkipsCancelledTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reg, _ := newTestRegistry(t, RegistryOptions{})
	ran := make(chan struct{}, 1)
	w := NewWorker(logger.Nop(), reg, HandlerFunc(func(jc *Context) error {
		ran <- struct{}{}
		return nil
	}), 1, 8)

	job := reg.Create(ctx, "gone.txt")
	require.NoError(t, w.Enqueue(Task{JobID: job.JobID}))
	require.NoError(t, reg.Cancel(ctx, job.JobID))
	w.Start(ctx)

	select {
	case <-ran:
		t.Fatal("cancelled job must not run")
	case <-time.After(100 * time.Millisecond):
	}
	cancel()
	w.Wait()
}

func TestWorkerQueueFull(t *testing.T) {
	reg, _ := newTestRegistry(t, RegistryOptions{})
	w := NewWorker(logger.Nop(), reg, nil, 1, 1)
	require.NoError(t, w.Enqueue(Task{JobID: "a"}))
	assert.ErrorIs(t, w.Enqueue(Task{JobID: "b"}), ErrQueueFull)
}
