package chat

import "time"

type AgentStatus string

const (
	StatusPending   AgentStatus = "pending"
	StatusRunning   AgentStatus = "running"
	StatusCompleted AgentStatus = "completed"
	StatusFailed    AgentStatus = "failed"
)

// Well-known agent names. Retry attempts append "#<n>" to the base name.
const (
	AgentSwitchboard   = "switchboard"
	AgentLibrarian     = "librarian"
	AgentAnalyst       = "analyst"
	AgentGraphExplorer = "graph_explorer"
	AgentSynthesizer   = "synthesizer"
	AgentCritic        = "critic"
)

func (s AgentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s AgentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanAdvanceTo reports whether an agent in status s may move to next within one turn.
// Terminal statuses never move; pending/running never move backwards.
func (s AgentStatus) CanAdvanceTo(next AgentStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == "" {
		return true
	}
	if s.Terminal() {
		return false
	}
	return rank(next) >= rank(s)
}

func rank(s AgentStatus) int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

type StepEvent struct {
	Agent         string      `json:"agent"`
	Status        AgentStatus `json:"status"`
	Thinking      string      `json:"thinking"`
	OutputSummary string      `json:"output_summary"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// Merge applies a later event for the same agent on top of s. Empty strings and nil
// timestamps in next leave the earlier value in place.
func (s StepEvent) Merge(next StepEvent) StepEvent {
	out := s
	if next.Agent != "" {
		out.Agent = next.Agent
	}
	if next.Status != "" {
		out.Status = next.Status
	}
	if next.Thinking != "" {
		out.Thinking = next.Thinking
	}
	if next.OutputSummary != "" {
		out.OutputSummary = next.OutputSummary
	}
	if next.StartedAt != nil {
		out.StartedAt = next.StartedAt
	}
	if next.CompletedAt != nil {
		out.CompletedAt = next.CompletedAt
	}
	return out
}
