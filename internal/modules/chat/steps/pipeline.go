package steps

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

const (
	DefaultTopK = 10

	ChitchatAnswer = "I'm here to help you explore your data. Ask me about documents, relationships, or specific data queries!"

	// PingMessage is a liveness probe answered with PongAnswer after touching the
	// switchboard and the librarian.
	PingMessage = "ping"
	PongAnswer  = "pong"
)

type PipelineDeps struct {
	Log        *logger.Logger
	Router     Router
	Retriever  Retriever
	SQL        SQLRunner
	Graph      GraphRunner
	Synth      Synthesizer
	Critic     Critic
	MaxRetries int
	TopK       int
	// Indexed reports how many chunks the librarian can search. Optional.
	Indexed func() int
}

type Outcome struct {
	Answer     string
	Intent     Intent
	Data       *chat.DataResponse
	Sources    []map[string]any
	Validation *chat.Validation
	Retries    int
}

type turnState struct {
	question string
	passages []Passage
	sql      *SQLResult
	graph    *GraphResult
}

// RunPipeline executes one turn: route, retrieve, synthesize, then validate with bounded
// retries. Retrieval failures are reported as failed steps and do not end the turn; a
// synthesis failure does.
func RunPipeline(ctx context.Context, deps PipelineDeps, em *Emitter, query string) (Outcome, error) {
	deps = deps.withDefaults()
	query = strings.TrimSpace(query)
	if strings.EqualFold(query, PingMessage) {
		return runPing(ctx, deps, em)
	}

	var route Route
	err := em.Run(ctx, chat.AgentSwitchboard, "Analyzing query intent and determining the best approach...", func(ctx context.Context) (string, error) {
		r, err := deps.Router.Route(ctx, query)
		if err != nil {
			return "", err
		}
		route = r
		return fmt.Sprintf("Intent: %s (confidence: %.2f)", r.Intent, r.Confidence), nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		deps.Log.Warn("routing failed; using hybrid retrieval", "error", err)
		route = Route{Intent: IntentHybrid, Confidence: 0.5, Reasoning: "routing failed"}
	}

	if route.Intent == IntentChitchat {
		return Outcome{
			Answer: ChitchatAnswer,
			Intent: route.Intent,
			Data:   textResponse(ChitchatAnswer),
		}, nil
	}

	agents := AgentsFor(route.Intent)
	em.Plan(append(append([]string{}, agents...), chat.AgentSynthesizer, chat.AgentCritic)...)

	st := &turnState{question: query}
	for _, agent := range agents {
		if err := runRetrieval(ctx, deps, em, st, agent, 1); err != nil && ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
	}

	attempt := 1
	answer, err := synthesize(ctx, deps, em, st, attempt, nil)
	if err != nil {
		return Outcome{}, err
	}

	var validation *chat.Validation
	for {
		v, err := critique(ctx, deps, em, st, answer, attempt)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			// The answer stands when validation itself is unavailable.
			break
		}
		validation = &v
		if v.IsValid {
			break
		}
		if attempt-1 >= deps.MaxRetries {
			deps.Log.Warn("max retries reached; accepting current answer", "retries", attempt-1)
			break
		}
		attempt++
		if v.FaithfulnessScore < passScore {
			if err := runRetrieval(ctx, deps, em, st, chat.AgentLibrarian, attempt); err != nil && ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
		}
		answer, err = synthesize(ctx, deps, em, st, attempt, v.Suggestions)
		if err != nil {
			return Outcome{}, err
		}
	}

	return Outcome{
		Answer:     answer,
		Intent:     route.Intent,
		Data:       DetermineResponse(answer, st.sql, st.graph),
		Sources:    sources(st),
		Validation: validation,
		Retries:    attempt - 1,
	}, nil
}

// AgentsFor lists the retrieval agents an intent uses, in execution order.
func AgentsFor(intent Intent) []string {
	switch intent {
	case IntentSQL:
		return []string{chat.AgentAnalyst}
	case IntentGraph:
		return []string{chat.AgentGraphExplorer}
	case IntentHybrid:
		return []string{chat.AgentLibrarian, chat.AgentAnalyst, chat.AgentGraphExplorer}
	case IntentChitchat:
		return nil
	default:
		return []string{chat.AgentLibrarian}
	}
}

func runPing(ctx context.Context, deps PipelineDeps, em *Emitter) (Outcome, error) {
	em.Plan(chat.AgentSwitchboard, chat.AgentLibrarian)
	if err := em.Run(ctx, chat.AgentSwitchboard, "Checking pipeline liveness...", func(context.Context) (string, error) {
		return "Intent: ping", nil
	}); err != nil {
		return Outcome{}, err
	}
	if err := em.Run(ctx, chat.AgentLibrarian, "Checking knowledge base reachability...", func(context.Context) (string, error) {
		if deps.Indexed == nil {
			return "Knowledge base reachable", nil
		}
		return fmt.Sprintf("%d chunks indexed", deps.Indexed()), nil
	}); err != nil {
		return Outcome{}, err
	}
	return Outcome{Answer: PongAnswer, Data: textResponse(PongAnswer)}, nil
}

func runRetrieval(ctx context.Context, deps PipelineDeps, em *Emitter, st *turnState, agent string, attempt int) error {
	key := StepKey(agent, attempt)
	switch agent {
	case chat.AgentLibrarian:
		topK := deps.TopK * attempt
		return em.Run(ctx, key, "Searching for semantically similar documents in the knowledge base...", func(ctx context.Context) (string, error) {
			ps, err := deps.Retriever.Retrieve(ctx, st.question, topK)
			if err != nil {
				return "", err
			}
			st.passages = ps
			return fmt.Sprintf("Found %d relevant documents", len(ps)), nil
		})
	case chat.AgentAnalyst:
		return em.Run(ctx, key, "Analyzing query to generate appropriate SQL...", func(ctx context.Context) (string, error) {
			res, err := deps.SQL.Run(ctx, st.question)
			if err != nil {
				return "", err
			}
			st.sql = &res
			return fmt.Sprintf("Retrieved %d rows", len(res.Rows)), nil
		})
	case chat.AgentGraphExplorer:
		return em.Run(ctx, key, "Exploring entity relationships and connections...", func(ctx context.Context) (string, error) {
			res, err := deps.Graph.Run(ctx, st.question)
			if err != nil {
				return "", err
			}
			st.graph = &res
			return fmt.Sprintf("Found %d graph records", len(res.Rows)), nil
		})
	}
	return fmt.Errorf("unknown retrieval agent %q", agent)
}

func synthesize(ctx context.Context, deps PipelineDeps, em *Emitter, st *turnState, attempt int, feedback []string) (string, error) {
	var answer string
	err := em.Run(ctx, StepKey(chat.AgentSynthesizer, attempt), "Synthesizing information from all sources into a coherent answer...", func(ctx context.Context) (string, error) {
		out, err := deps.Synth.Synthesize(ctx, SynthesisInput{
			Question: st.question,
			Passages: st.passages,
			SQL:      st.sql,
			Graph:    st.graph,
			Feedback: feedback,
		})
		if err != nil {
			return "", err
		}
		answer = out
		return fmt.Sprintf("Generated %d character response", len(out)), nil
	})
	return answer, err
}

func critique(ctx context.Context, deps PipelineDeps, em *Emitter, st *turnState, answer string, attempt int) (chat.Validation, error) {
	var out chat.Validation
	err := em.Run(ctx, StepKey(chat.AgentCritic, attempt), "Checking response for faithfulness, relevancy, and coherence...", func(ctx context.Context) (string, error) {
		v, err := deps.Critic.Validate(ctx, st.question, answer, critiqueContext(st))
		if err != nil {
			return "", err
		}
		out = v
		return fmt.Sprintf("Valid: %t | Faithfulness: %.2f | Relevancy: %.2f", v.IsValid, v.FaithfulnessScore, v.RelevancyScore), nil
	})
	return out, err
}

func critiqueContext(st *turnState) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{FormatPassages(st.passages), formatGraph(st.graph), formatSQL(st.sql)} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// DetermineResponse picks how a client should render the turn's data.
func DetermineResponse(answer string, sql *SQLResult, graph *GraphResult) *chat.DataResponse {
	if sql != nil && len(sql.Rows) > 1 {
		cols := sql.Columns
		if len(cols) == 0 {
			cols = sortedKeys(sql.Rows[0])
		}
		return &chat.DataResponse{
			ResponseType: chat.ResponseTable,
			Content:      sql.Rows,
			Metadata:     map[string]any{"columns": cols},
		}
	}
	if graph != nil && len(graph.Rows) > 0 {
		return &chat.DataResponse{
			ResponseType: chat.ResponseGraph,
			Content:      graph.Rows,
			Metadata:     map[string]any{},
		}
	}
	return textResponse(answer)
}

func textResponse(text string) *chat.DataResponse {
	return &chat.DataResponse{ResponseType: chat.ResponseText, Content: text, Metadata: map[string]any{}}
}

func sources(st *turnState) []map[string]any {
	out := make([]map[string]any, 0, len(st.passages)+2)
	for _, p := range st.passages {
		out = append(out, map[string]any{
			"type":       "document",
			"id":         p.ID,
			"content":    truncate(p.Content, maxPassageChars),
			"metadata":   p.Metadata,
			"similarity": p.Similarity,
		})
	}
	if st.sql != nil && st.sql.Query != "" {
		out = append(out, map[string]any{"type": "sql", "query": st.sql.Query, "row_count": len(st.sql.Rows)})
	}
	if st.graph != nil && st.graph.Query != "" {
		out = append(out, map[string]any{"type": "graph", "query": st.graph.Query, "row_count": len(st.graph.Rows)})
	}
	return out
}

func sortedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d PipelineDeps) withDefaults() PipelineDeps {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Router == nil {
		d.Router = KeywordRouter{}
	}
	if d.Retriever == nil {
		d.Retriever = VectorRetriever{}
	}
	if d.SQL == nil {
		d.SQL = SQLTool{}
	}
	if d.Graph == nil {
		d.Graph = GraphTool{}
	}
	if d.Synth == nil {
		d.Synth = LLMSynthesizer{}
	}
	if d.Critic == nil {
		d.Critic = HeuristicCritic{}
	}
	if d.TopK <= 0 {
		d.TopK = DefaultTopK
	}
	if d.MaxRetries < 0 {
		d.MaxRetries = 0
	}
	return d
}
