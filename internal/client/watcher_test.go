package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

// statusServer answers status polls from a scripted sequence; the last entry repeats.
func statusServer(t *testing.T, script []domain.IngestionJob) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v1/ingest/status/") {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"job not found","code":"job_not_found"}}`))
			return
		}
		n := int(polls.Add(1)) - 1
		if n >= len(script) {
			n = len(script) - 1
		}
		_ = json.NewEncoder(w).Encode(script[n])
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func job(status domain.JobStatus, progress float64, processed int) domain.IngestionJob {
	return domain.IngestionJob{JobID: "j1", Status: status, Filename: "a.md", Progress: progress, ChunksProcessed: processed, TotalChunks: 10}
}

type updates struct {
	mu   sync.Mutex
	jobs []domain.IngestionJob
}

func (u *updates) add(j domain.IngestionJob) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.jobs = append(u.jobs, j)
}

func (u *updates) list() []domain.IngestionJob {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]domain.IngestionJob(nil), u.jobs...)
}

func TestJobWatcherPollsUntilTerminal(t *testing.T) {
	srv, polls := statusServer(t, []domain.IngestionJob{
		job(domain.JobPending, 0, 0),
		job(domain.JobProcessing, 0.2, 2),
		job(domain.JobProcessing, 0.5, 5),
		job(domain.JobProcessing, 0.4, 4),
		job(domain.JobCompleted, 1, 10),
	})
	seen := &updates{}
	w := NewAPI(srv.URL).WatchJob(context.Background(), "j1", WatchOptions{Interval: time.Millisecond, OnUpdate: seen.add})

	final, err := w.Wait()
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, final.Status)
	assert.Equal(t, int32(5), polls.Load())

	got := seen.list()
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Progress, got[i-1].Progress)
		assert.GreaterOrEqual(t, got[i].ChunksProcessed, got[i-1].ChunksProcessed)
	}
	assert.Equal(t, 0.5, got[3].Progress)
}

func TestJobWatcherNotFound(t *testing.T) {
	srv, _ := statusServer(t, []domain.IngestionJob{job(domain.JobPending, 0, 0)})
	w := NewAPI(srv.URL).WatchJob(context.Background(), "missing", WatchOptions{Interval: time.Millisecond})
	_, err := w.Wait()
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.JobID)
}

func TestJobWatcherExhausted(t *testing.T) {
	srv, polls := statusServer(t, []domain.IngestionJob{job(domain.JobProcessing, 0.1, 1)})
	w := NewAPI(srv.URL).WatchJob(context.Background(), "j1", WatchOptions{Interval: time.Millisecond, MaxAttempts: 3})
	_, err := w.Wait()
	assert.ErrorIs(t, err, ErrWatchExhausted)
	assert.Equal(t, int32(3), polls.Load())
}

func TestJobWatcherStopHaltsCallbacks(t *testing.T) {
	srv, _ := statusServer(t, []domain.IngestionJob{job(domain.JobProcessing, 0.1, 1)})
	seen := &updates{}
	w := NewAPI(srv.URL).WatchJob(context.Background(), "j1", WatchOptions{Interval: time.Millisecond, OnUpdate: seen.add})

	require.Eventually(t, func() bool { return len(seen.list()) >= 2 }, 2*time.Second, time.Millisecond)
	w.Stop()
	after := len(seen.list())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, len(seen.list()))

	_, err := w.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	w.Stop()
}

func TestJobWatcherPush(t *testing.T) {
	var streamed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/v1/ingest/status/"):
			_ = json.NewEncoder(w).Encode(job(domain.JobPending, 0, 0))
		case strings.HasPrefix(r.URL.Path, "/api/v1/ingest/events/"):
			streamed.Store(true)
			realtime.SetSSEHeaders(w)
			w.WriteHeader(http.StatusOK)
			for _, ev := range []struct {
				event realtime.PushEvent
				job   domain.IngestionJob
			}{
				{realtime.PushJobProgress, job(domain.JobProcessing, 0.3, 3)},
				{realtime.PushJobProgress, job(domain.JobProcessing, 0.6, 6)},
				{realtime.PushJobDone, job(domain.JobCompleted, 1, 10)},
			} {
				raw, _ := json.Marshal(realtime.PushMessage{Channel: realtime.JobChannel("j1"), Event: ev.event, Data: ev.job})
				_, _ = fmt.Fprintf(w, ": ping\n\nevent: %s\ndata: %s\n\n", ev.event, raw)
				w.(http.Flusher).Flush()
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	seen := &updates{}
	w := NewAPI(srv.URL).WatchJob(context.Background(), "j1", WatchOptions{Push: true, Interval: time.Hour, OnUpdate: seen.add})
	final, err := w.Wait()
	require.NoError(t, err)
	assert.True(t, streamed.Load())
	assert.Equal(t, domain.JobCompleted, final.Status)

	var progress []float64
	for _, j := range seen.list() {
		progress = append(progress, j.Progress)
	}
	assert.Equal(t, []float64{0, 0.3, 0.6, 1}, progress)
}
