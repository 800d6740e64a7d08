package steps

import (
	"context"
	"fmt"
	"strings"
)

const (
	maxPassagesInPrompt = 5
	maxPassageChars     = 500
	maxRowsInPrompt     = 10
)

const synthesisSystemPrompt = `You are an expert analyst synthesizing information from multiple sources.
Integrate the vector search, graph and SQL results into one accurate answer.
Cite sources as [n] when possible. Acknowledge gaps in the data.
Be concise and use markdown.`

// LLMSynthesizer writes the answer with the model, or extractively when no model is set.
type LLMSynthesizer struct {
	LLM TextGenerator
}

func (s LLMSynthesizer) Synthesize(ctx context.Context, in SynthesisInput) (string, error) {
	if s.LLM == nil {
		return ExtractiveAnswer(in), nil
	}
	user := strings.Join([]string{
		"Question: " + in.Question,
		"",
		"Vector Search Results:",
		orNone(FormatPassages(in.Passages), "No vector results"),
		"",
		"Graph Query Results:",
		orNone(formatGraph(in.Graph), "No graph results"),
		"",
		"SQL Query Results:",
		orNone(formatSQL(in.SQL), "No SQL results"),
		feedbackBlock(in.Feedback),
		"Synthesize a comprehensive answer:",
	}, "\n")
	out, err := s.LLM.Generate(ctx, synthesisSystemPrompt, user)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("empty synthesis")
	}
	return out, nil
}

// ExtractiveAnswer builds an answer from the retrieved material alone.
func ExtractiveAnswer(in SynthesisInput) string {
	var parts []string
	if in.SQL != nil && len(in.SQL.Rows) > 0 {
		parts = append(parts, fmt.Sprintf("The query returned %d row(s).", len(in.SQL.Rows)))
		if len(in.SQL.Rows) == 1 {
			parts = append(parts, formatRow(in.SQL.Rows[0]))
		}
	}
	if in.Graph != nil && len(in.Graph.Rows) > 0 {
		parts = append(parts, fmt.Sprintf("Found %d related record(s) in the graph.", len(in.Graph.Rows)))
	}
	for i, p := range in.Passages {
		if i >= 3 {
			break
		}
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, truncate(strings.TrimSpace(p.Content), maxPassageChars)))
	}
	if len(parts) == 0 {
		return "I could not find information relevant to this question in the knowledge base."
	}
	return strings.Join(parts, "\n\n")
}

// FormatPassages renders passages for prompts and critic context.
func FormatPassages(ps []Passage) string {
	if len(ps) == 0 {
		return ""
	}
	lines := make([]string, 0, maxPassagesInPrompt)
	for i, p := range ps {
		if i >= maxPassagesInPrompt {
			break
		}
		source := p.Metadata["source"]
		if source == "" {
			source = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("[%d] (%s): %s", i+1, source, truncate(p.Content, maxPassageChars)))
	}
	return strings.Join(lines, "\n\n")
}

func formatSQL(res *SQLResult) string {
	if res == nil || len(res.Rows) == 0 {
		return ""
	}
	rows := res.Rows
	head := ""
	if len(rows) > maxRowsInPrompt {
		head = fmt.Sprintf("Table with %d rows. First %d rows:\n", len(rows), maxRowsInPrompt)
		rows = rows[:maxRowsInPrompt]
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, formatRow(r))
	}
	return head + strings.Join(lines, "\n")
}

func formatGraph(res *GraphResult) string {
	if res == nil || len(res.Rows) == 0 {
		return ""
	}
	rows := res.Rows
	if len(rows) > maxRowsInPrompt {
		rows = rows[:maxRowsInPrompt]
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, formatRow(r))
	}
	return strings.Join(lines, "\n")
}

// formatRow prints a row with sorted keys so output is stable.
func formatRow(row map[string]any) string {
	keys := sortedKeys(row)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
	}
	return strings.Join(parts, ", ")
}

func feedbackBlock(feedback []string) string {
	if len(feedback) == 0 {
		return ""
	}
	return "\nReviewer feedback on the previous answer:\n- " + strings.Join(feedback, "\n- ") + "\n"
}

func orNone(s, none string) string {
	if strings.TrimSpace(s) == "" {
		return none
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
