package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/nexusgraph-backend/internal/platform/vectorstore"
)

const maxToolRows = 200

var ErrToolUnavailable = errors.New("tool not configured")

type VectorSearcher interface {
	Query(ctx context.Context, text string, topK int) ([]vectorstore.Result, error)
}

type ReadOnlyQuerier interface {
	QueryReadOnly(ctx context.Context, sql string, args ...any) ([]string, []map[string]any, error)
}

type GraphReader interface {
	ReadRows(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

// VectorRetriever is the librarian's tool over the document vector store.
type VectorRetriever struct {
	Store VectorSearcher
}

func (r VectorRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Passage, error) {
	if r.Store == nil {
		return nil, ErrToolUnavailable
	}
	res, err := r.Store.Query(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	out := make([]Passage, 0, len(res))
	for _, item := range res {
		out = append(out, Passage{
			ID:         item.ID,
			Content:    item.Content,
			Metadata:   item.Metadata,
			Similarity: item.Similarity,
		})
	}
	return out, nil
}

// SQLTool turns a question into one read-only SELECT and runs it.
type SQLTool struct {
	DB  ReadOnlyQuerier
	LLM TextGenerator
}

const sqlSystemPrompt = `You are a PostgreSQL expert. Convert the user's question into one SELECT query.
Only output the SQL query, nothing else.`

func (t SQLTool) Run(ctx context.Context, question string) (SQLResult, error) {
	if t.DB == nil || t.LLM == nil {
		return SQLResult{}, ErrToolUnavailable
	}
	raw, err := t.LLM.Generate(ctx, sqlSystemPrompt, question)
	if err != nil {
		return SQLResult{}, fmt.Errorf("generate sql: %w", err)
	}
	query := stripFence(raw)
	if !isSelect(query) {
		return SQLResult{Query: query}, fmt.Errorf("refusing non-select statement")
	}
	cols, rows, err := t.DB.QueryReadOnly(ctx, query)
	if err != nil {
		return SQLResult{Query: query}, err
	}
	if len(rows) > maxToolRows {
		rows = rows[:maxToolRows]
	}
	return SQLResult{Query: query, Columns: cols, Rows: rows}, nil
}

// GraphTool runs a Cypher read. Without a model it falls back to looking documents up by
// filename or mentioned entity.
type GraphTool struct {
	Graph GraphReader
	LLM   TextGenerator
}

const cypherSystemPrompt = `You are a Neo4j Cypher expert. Convert the user's question into one read-only Cypher query.
Documents are (:Document {id, filename, chunks}) and chunks are (:Chunk {id, index})-[:PART_OF]->(:Document).
Entities are (:Entity {name, type}) with (:Entity)-[:MENTIONED_IN]->(:Chunk) and (:Document)-[:CONTAINS]->(:Entity).
Entity types: Person, Organization, Concept, Product, Location, Event.
Only output the Cypher query, nothing else.`

const documentLookupCypher = `MATCH (d:Document)
OPTIONAL MATCH (d)-[:CONTAINS]->(e:Entity)
WITH d, collect(DISTINCT e.name) AS entities
WHERE any(t IN $terms WHERE toLower(d.filename) CONTAINS t
  OR any(n IN entities WHERE toLower(n) CONTAINS t))
RETURN d.id AS id, d.filename AS document, d.chunks AS chunks, entities
LIMIT 25`

func (t GraphTool) Run(ctx context.Context, question string) (GraphResult, error) {
	if t.Graph == nil {
		return GraphResult{}, ErrToolUnavailable
	}
	if t.LLM == nil {
		rows, err := t.Graph.ReadRows(ctx, documentLookupCypher, map[string]any{"terms": queryTerms(question)})
		return GraphResult{Query: documentLookupCypher, Rows: rows}, err
	}
	raw, err := t.LLM.Generate(ctx, cypherSystemPrompt, question)
	if err != nil {
		return GraphResult{}, fmt.Errorf("generate cypher: %w", err)
	}
	query := stripFence(raw)
	rows, err := t.Graph.ReadRows(ctx, query, nil)
	if err != nil {
		return GraphResult{Query: query}, err
	}
	if len(rows) > maxToolRows {
		rows = rows[:maxToolRows]
	}
	return GraphResult{Query: query, Rows: rows}, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSuffix(strings.TrimSpace(s), ";")
}

func isSelect(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return strings.HasPrefix(q, "select") || strings.HasPrefix(q, "with")
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true, "to": true, "in": true,
	"is": true, "are": true, "what": true, "which": true, "who": true, "how": true, "does": true,
	"do": true, "for": true, "with": true, "on": true, "by": true, "me": true, "about": true,
	"between": true, "from": true, "that": true, "this": true, "it": true, "be": true, "tell": true,
}

// queryTerms lowercases and drops stop words and short tokens.
func queryTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-')
	})
	out := make([]string, 0, len(fields))
	seen := map[string]bool{}
	for _, f := range fields {
		if len(f) < 3 || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
