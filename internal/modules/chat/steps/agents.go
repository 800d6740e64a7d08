package steps

import (
	"context"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
)

type Intent string

const (
	IntentSQL           Intent = "sql_query"
	IntentGraph         Intent = "graph_query"
	IntentVector        Intent = "vector_search"
	IntentHybrid        Intent = "hybrid_query"
	IntentClarification Intent = "clarification"
	IntentChitchat      Intent = "chitchat"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentSQL, IntentGraph, IntentVector, IntentHybrid, IntentClarification, IntentChitchat:
		return true
	}
	return false
}

type Route struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Passage is one retrieved document chunk.
type Passage struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float32           `json:"similarity"`
}

type SQLResult struct {
	Query   string           `json:"query"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type GraphResult struct {
	Query string           `json:"query"`
	Rows  []map[string]any `json:"rows"`
}

type SynthesisInput struct {
	Question string
	Passages []Passage
	SQL      *SQLResult
	Graph    *GraphResult
	// Feedback carries the critic's suggestions on a retry.
	Feedback []string
}

type Router interface {
	Route(ctx context.Context, query string) (Route, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Passage, error)
}

type SQLRunner interface {
	Run(ctx context.Context, question string) (SQLResult, error)
}

type GraphRunner interface {
	Run(ctx context.Context, question string) (GraphResult, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, in SynthesisInput) (string, error)
}

type Critic interface {
	Validate(ctx context.Context, question, answer, context string) (chat.Validation, error)
}
