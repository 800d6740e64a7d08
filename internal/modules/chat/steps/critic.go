package steps

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
)

const (
	passScore       = 0.5
	acceptableScore = 0.7
)

// HeuristicCritic scores answers by term overlap with the question and the context.
type HeuristicCritic struct{}

func (HeuristicCritic) Validate(_ context.Context, question, answer, context string) (chat.Validation, error) {
	coherence := 0.0
	if strings.TrimSpace(answer) != "" {
		coherence = 1.0
	}
	relevancy := overlap(queryTerms(question), answer, 1.0)
	faithfulness := 0.5
	if strings.TrimSpace(context) != "" {
		faithfulness = overlap(queryTerms(answer), context, 1.0)
	}
	return Judge(faithfulness, relevancy, coherence, nil), nil
}

// overlap is the share of terms present in text, or empty when there are no terms.
func overlap(terms []string, text string, empty float64) float64 {
	if len(terms) == 0 {
		return empty
	}
	lower := strings.ToLower(text)
	hit := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hit++
		}
	}
	return float64(hit) / float64(len(terms))
}

// Judge turns three scores into a verdict. An answer is valid when every score passes,
// or when the average is high enough to accept with a note.
func Judge(faithfulness, relevancy, coherence float64, issues []string) chat.Validation {
	v := chat.Validation{
		FaithfulnessScore: faithfulness,
		RelevancyScore:    relevancy,
		CoherenceScore:    coherence,
		Issues:            append([]string{}, issues...),
		Suggestions:       []string{},
	}
	ok := true
	if faithfulness < passScore {
		ok = false
		v.Issues = append(v.Issues, "answer is weakly supported by the retrieved context")
		v.Suggestions = append(v.Suggestions, "Remove or verify unsupported claims against the source documents")
	}
	if relevancy < passScore {
		ok = false
		v.Issues = append(v.Issues, "answer does not address parts of the question")
		v.Suggestions = append(v.Suggestions, "Address the missing aspects of the question")
	}
	if coherence < passScore {
		ok = false
		v.Issues = append(v.Issues, "answer is empty or incoherent")
		v.Suggestions = append(v.Suggestions, "Improve logical structure and clarity")
	}
	if !ok && (faithfulness+relevancy+coherence)/3 >= acceptableScore {
		ok = true
		v.Suggestions = append([]string{"Answer is acceptable but could be improved"}, v.Suggestions...)
	}
	v.IsValid = ok
	return v
}

// LLMCritic asks the model for scores and falls back to the heuristic critic.
type LLMCritic struct {
	LLM      TextGenerator
	Fallback Critic
}

const criticSystemPrompt = `You evaluate answers produced by a retrieval system.
Score from 0 to 1: faithfulness (claims supported by the context), relevancy (answers the question),
coherence (clear and logically structured). List concrete issues.
Return ONLY JSON: {"faithfulness_score": n, "relevancy_score": n, "coherence_score": n, "issues": ["..."]}`

type criticScores struct {
	Faithfulness float64  `json:"faithfulness_score"`
	Relevancy    float64  `json:"relevancy_score"`
	Coherence    float64  `json:"coherence_score"`
	Issues       []string `json:"issues"`
}

func (c LLMCritic) Validate(ctx context.Context, question, answer, context string) (chat.Validation, error) {
	fallback := c.Fallback
	if fallback == nil {
		fallback = HeuristicCritic{}
	}
	if c.LLM == nil {
		return fallback.Validate(ctx, question, answer, context)
	}
	user := strings.Join([]string{
		"Question: " + question,
		"",
		"Context:",
		orNone(context, "(none)"),
		"",
		"Answer:",
		answer,
	}, "\n")
	raw, err := c.LLM.Generate(ctx, criticSystemPrompt, user)
	if err != nil {
		return fallback.Validate(ctx, question, answer, context)
	}
	var scores criticScores
	if err := json.Unmarshal([]byte(extractJSON(raw)), &scores); err != nil {
		return fallback.Validate(ctx, question, answer, context)
	}
	return Judge(clamp01(scores.Faithfulness), clamp01(scores.Relevancy), clamp01(scores.Coherence), scores.Issues), nil
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
