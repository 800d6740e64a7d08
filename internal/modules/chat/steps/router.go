package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TextGenerator is the slice of the LLM client the agents use.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

var (
	chitchatPhrases = []string{"hi", "hello", "hey", "thanks", "thank you", "good morning", "good evening", "how are you", "who are you", "bye"}
	sqlKeywords     = []string{"how many", " count", "average", " avg", "sum of", " total", " top ", "maximum", "minimum", " max ", " min ", " rows", " table", " sql", " per ", "group by", "list all"}
	graphKeywords   = []string{"relationship", "related", "relate", "connected", "connection", "connects", "linked", "path between", "depends on", "dependency", "neighbors", "graph", "hierarchy", "reports to"}
)

// KeywordRouter classifies intent from surface cues. It never fails.
type KeywordRouter struct{}

func (KeywordRouter) Route(_ context.Context, query string) (Route, error) {
	q := " " + strings.ToLower(strings.TrimSpace(query)) + " "
	trimmed := strings.Trim(strings.TrimSpace(q), "!?. ")
	for _, p := range chitchatPhrases {
		if trimmed == p || strings.HasPrefix(trimmed, p+" ") && len(strings.Fields(trimmed)) <= 4 {
			return Route{Intent: IntentChitchat, Confidence: 0.8, Reasoning: "greeting or small talk"}, nil
		}
	}
	sql := containsAny(q, sqlKeywords)
	graph := containsAny(q, graphKeywords)
	switch {
	case sql && graph:
		return Route{Intent: IntentHybrid, Confidence: 0.6, Reasoning: "asks for both aggregates and relationships"}, nil
	case sql:
		return Route{Intent: IntentSQL, Confidence: 0.65, Reasoning: "asks for structured data or aggregates"}, nil
	case graph:
		return Route{Intent: IntentGraph, Confidence: 0.65, Reasoning: "asks about relationships between entities"}, nil
	}
	return Route{Intent: IntentVector, Confidence: 0.5, Reasoning: "open question over documents"}, nil
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// LLMRouter asks the model for an intent and falls back to the keyword router on any error.
type LLMRouter struct {
	LLM      TextGenerator
	Fallback Router
}

const routerSystemPrompt = `You are an intent classifier for a hybrid retrieval system.
Intent types:
- sql_query: questions about specific data, numbers, lists, filtered results
- graph_query: questions about relationships, connections, hierarchies
- vector_search: questions requiring semantic understanding of documents
- hybrid_query: complex questions requiring multiple data sources
- clarification: the query is ambiguous
- chitchat: greetings or conversation not related to the data
Return ONLY JSON: {"intent": "<type>", "confidence": <0..1>, "reasoning": "<short>"}`

func (r LLMRouter) Route(ctx context.Context, query string) (Route, error) {
	fallback := r.Fallback
	if fallback == nil {
		fallback = KeywordRouter{}
	}
	if r.LLM == nil {
		return fallback.Route(ctx, query)
	}
	raw, err := r.LLM.Generate(ctx, routerSystemPrompt, "Query: "+query)
	if err != nil {
		return fallback.Route(ctx, query)
	}
	route, err := parseRoute(raw)
	if err != nil {
		return fallback.Route(ctx, query)
	}
	return route, nil
}

func parseRoute(raw string) (Route, error) {
	var out Route
	if err := json.Unmarshal([]byte(extractJSON(raw)), &out); err != nil {
		return Route{}, fmt.Errorf("parse route: %w", err)
	}
	out.Intent = Intent(strings.ToLower(strings.TrimSpace(string(out.Intent))))
	if !out.Intent.Valid() {
		return Route{}, fmt.Errorf("parse route: unknown intent %q", out.Intent)
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return out, nil
}

// extractJSON trims code fences and prose around the first JSON object.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return strings.TrimSpace(raw)
	}
	return raw[start : end+1]
}
