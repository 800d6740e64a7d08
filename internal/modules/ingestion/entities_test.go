package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/nexusgraph-backend/internal/domain"
)

type cannedGenerator struct {
	out    string
	err    error
	prompt string
}

func (g *cannedGenerator) Generate(_ context.Context, _, user string) (string, error) {
	g.prompt = user
	return g.out, g.err
}

// scriptedExtractor fails on the listed calls and otherwise names one entity per chunk.
type scriptedExtractor struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
}

func (x *scriptedExtractor) Extract(_ context.Context, _ string) ([]Entity, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.calls++
	if x.failOn[x.calls] {
		return nil, errors.New("model returned prose")
	}
	return []Entity{{Name: "Acme", Type: "Organization"}, {Name: "Ana", Type: "Person", Properties: map[string]any{"role": "cfo"}}}, nil
}

func TestParseEntities(t *testing.T) {
	raw := "Here you go:\n```json\n[" +
		`{"name": " Acme ", "type": "Organization", "properties": {"founded": "1999"}},` +
		`{"name": "acme", "type": "Organization"},` +
		`{"name": "", "type": "Person"},` +
		`{"name": "Roadrunner"}` +
		"]\n```"
	got, err := parseEntities(raw)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Acme", got[0].Name)
	assert.Equal(t, "1999", got[0].Properties["founded"])
	assert.Equal(t, Entity{Name: "Roadrunner", Type: unknownEntityType}, got[1])

	_, err = parseEntities("no entities found")
	assert.Error(t, err)
}

func TestLLMEntityExtractorBoundsInput(t *testing.T) {
	gen := &cannedGenerator{out: `[{"name": "Acme", "type": "Organization"}]`}
	got, err := LLMEntityExtractor{LLM: gen, MaxChars: 10}.Extract(context.Background(), strings.Repeat("x", 50))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Len(t, gen.prompt, 10)

	_, err = LLMEntityExtractor{LLM: &cannedGenerator{err: errors.New("rate limited")}}.Extract(context.Background(), "text")
	assert.Error(t, err)
}

func TestRunLinksEntitiesAndSkipsFailedChunks(t *testing.T) {
	f := newFixture(t, &memoryVectors{})
	f.uc.deps.Entities = &scriptedExtractor{failOn: map[int]bool{2: true}}
	f.startWorker(t)

	body := strings.Repeat("a", 450)
	job, err := f.uc.Submit(context.Background(), "org.txt", int64(len(body)), strings.NewReader(body))
	require.NoError(t, err)
	done := waitTerminal(t, f.reg, job.JobID)
	assert.Equal(t, types.JobCompleted, done.Status, "a failed extraction does not fail the job")

	docID := DocumentID([]byte(body))
	f.graph.mu.Lock()
	defer f.graph.mu.Unlock()
	require.Len(t, f.graph.queries, 3)
	assert.Equal(t, graphUpsertCypher, f.graph.queries[0], "chunk nodes exist before entities link to them")

	var chunkIDs []string
	for i, q := range f.graph.queries[1:] {
		assert.Equal(t, entityUpsertCypher, q)
		p := f.graph.params[i+1]
		assert.Equal(t, docID, p["doc_id"])
		chunkIDs = append(chunkIDs, p["chunk_id"].(string))
		rows := p["entities"].([]any)
		require.Len(t, rows, 2)
		assert.Equal(t, map[string]any{"name": "Ana", "type": "Person", "properties": `{"role":"cfo"}`}, rows[1])
	}
	assert.Equal(t, []string{docID + "#0", docID + "#2"}, chunkIDs)
}

func TestRunSkipsEntitiesWithoutGraph(t *testing.T) {
	f := newFixture(t, &memoryVectors{})
	x := &scriptedExtractor{}
	f.uc.deps.Graph = nil
	f.uc.deps.Entities = x
	f.startWorker(t)

	job, err := f.uc.Submit(context.Background(), "a.md", 11, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, waitTerminal(t, f.reg, job.JobID).Status)
	x.mu.Lock()
	defer x.mu.Unlock()
	assert.Zero(t, x.calls)
}
