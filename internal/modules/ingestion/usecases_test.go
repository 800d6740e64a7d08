package ingestion

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/platform/apierr"
	"github.com/yungbote/nexusgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/platform/uploads"
	"github.com/yungbote/nexusgraph-backend/internal/platform/vectorstore"
)

type memoryVectors struct {
	mu   sync.Mutex
	docs []vectorstore.Document
	err  error
}

func (m *memoryVectors) Add(_ context.Context, docs []vectorstore.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *memoryVectors) snapshot() []vectorstore.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]vectorstore.Document(nil), m.docs...)
}

type recordingGraph struct {
	mu      sync.Mutex
	queries []string
	params  []map[string]any
}

func (g *recordingGraph) Write(_ context.Context, cypher string, params map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries = append(g.queries, cypher)
	g.params = append(g.params, params)
	return nil
}

type memoryDocuments struct {
	mu   sync.Mutex
	rows map[string]*types.Document
}

func (m *memoryDocuments) Upsert(_ dbctx.Context, doc *types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]*types.Document{}
	}
	m.rows[doc.ID] = doc
	return nil
}

func (m *memoryDocuments) GetByID(_ dbctx.Context, id string) (*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id], nil
}

func (m *memoryDocuments) List(_ dbctx.Context, _ int) ([]*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.Document, 0, len(m.rows))
	for _, d := range m.rows {
		out = append(out, d)
	}
	return out, nil
}

func (m *memoryDocuments) Count(_ dbctx.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

type fullQueue struct{}

func (fullQueue) Enqueue(jobs.Task) error { return jobs.ErrQueueFull }

type fixture struct {
	uc      *Usecases
	reg     *jobs.Registry
	vectors *memoryVectors
	graph   *recordingGraph
	docs    *memoryDocuments
	dir     string
}

func newFixture(t *testing.T, vectors *memoryVectors) fixture {
	t.Helper()
	log := logger.Nop()
	dir := t.TempDir()
	store, err := uploads.NewLocalStore(log, dir)
	require.NoError(t, err)

	reg := jobs.NewRegistry(log, nil, nil, jobs.RegistryOptions{})
	f := fixture{reg: reg, vectors: vectors, graph: &recordingGraph{}, docs: &memoryDocuments{}, dir: dir}
	f.uc = New(UsecasesDeps{
		Log:            log,
		Registry:       reg,
		Uploads:        store,
		Vectors:        vectors,
		Graph:          f.graph,
		Documents:      f.docs,
		Chunker:        TextChunker{Size: 200, Overlap: 0},
		MaxUploadBytes: 4096,
	})
	return f
}

func (f fixture) startWorker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w := jobs.NewWorker(logger.Nop(), f.reg, f.uc, 1, 4)
	f.uc.WithQueue(w)
	w.Start(ctx)
}

func waitTerminal(t *testing.T, reg *jobs.Registry, id string) types.IngestionJob {
	t.Helper()
	var job types.IngestionJob
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

func TestSubmitIndexesEveryChunk(t *testing.T) {
	f := newFixture(t, &memoryVectors{})
	f.startWorker(t)

	body := strings.Repeat("a", 450)
	job, err := f.uc.Submit(context.Background(), "notes.txt", int64(len(body)), strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, types.JobPending, job.Status)

	done := waitTerminal(t, f.reg, job.JobID)
	assert.Equal(t, types.JobCompleted, done.Status)
	assert.Equal(t, 3, done.TotalChunks)
	assert.Equal(t, 3, done.ChunksProcessed)
	assert.Equal(t, 1.0, done.Progress)

	docs := f.vectors.snapshot()
	require.Len(t, docs, 3)
	docID := DocumentID([]byte(body))
	assert.Equal(t, docID+"#2", docs[2].ID)
	assert.Equal(t, "notes.txt", docs[0].Metadata["source"])
	assert.Equal(t, job.JobID, docs[0].Metadata["job_id"])

	require.Eventually(t, func() bool {
		d, _ := f.docs.GetByID(dbctx.Context{}, docID)
		return d != nil
	}, time.Second, 5*time.Millisecond)
	d, _ := f.docs.GetByID(dbctx.Context{}, docID)
	assert.Equal(t, 3, d.ChunkCount)
	assert.Equal(t, types.DocumentProcessed, d.Status)

	f.graph.mu.Lock()
	require.Len(t, f.graph.params, 1)
	assert.Equal(t, int64(3), f.graph.params[0]["chunks"])
	f.graph.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "stored upload is removed after processing")
}

func TestSubmitRejectsBadUploads(t *testing.T) {
	f := newFixture(t, &memoryVectors{})
	f.startWorker(t)

	_, err := f.uc.Submit(context.Background(), "tool.exe", 3, strings.NewReader("abc"))
	status, code := apierr.StatusOf(err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, CodeUnsupportedFile, code)

	_, err = f.uc.Submit(context.Background(), "big.txt", 5000, strings.NewReader("abc"))
	status, code = apierr.StatusOf(err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, CodeFileTooLarge, code)

	// declared size lies; the stream is still capped
	_, err = f.uc.Submit(context.Background(), "big.txt", 10, strings.NewReader(strings.Repeat("x", 5000)))
	_, code = apierr.StatusOf(err)
	assert.Equal(t, CodeFileTooLarge, code)

	assert.Empty(t, f.reg.List("", 0))
}

func TestSubmitQueueFullFailsJob(t *testing.T) {
	f := newFixture(t, &memoryVectors{})
	f.uc.WithQueue(fullQueue{})

	_, err := f.uc.Submit(context.Background(), "a.md", 5, strings.NewReader("hello"))
	status, code := apierr.StatusOf(err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, CodeQueueFull, code)

	listed := f.reg.List(types.JobFailed, 0)
	require.Len(t, listed, 1)
	assert.Contains(t, listed[0].Error, "full")
}

func TestRunFailureFailsJob(t *testing.T) {
	f := newFixture(t, &memoryVectors{err: errors.New("embedding backend down")})
	f.startWorker(t)

	job, err := f.uc.Submit(context.Background(), "a.md", 5, strings.NewReader("hello world"))
	require.NoError(t, err)
	done := waitTerminal(t, f.reg, job.JobID)
	assert.Equal(t, types.JobFailed, done.Status)
	assert.Contains(t, done.Error, "embedding backend down")
}

func TestEmptyDocumentCompletesWithZeroChunks(t *testing.T) {
	f := newFixture(t, &memoryVectors{})
	f.startWorker(t)

	job, err := f.uc.Submit(context.Background(), "blank.txt", 3, strings.NewReader("   "))
	require.NoError(t, err)
	done := waitTerminal(t, f.reg, job.JobID)
	assert.Equal(t, types.JobCompleted, done.Status)
	assert.Equal(t, 0, done.TotalChunks)

	docs, err := f.uc.Documents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, types.DocumentEmpty, docs[0].Status)
}
