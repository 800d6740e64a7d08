package chat

type ResponseType string

const (
	ResponseText  ResponseType = "text"
	ResponseTable ResponseType = "table"
	ResponseGraph ResponseType = "graph"
)

type DataResponse struct {
	ResponseType ResponseType   `json:"response_type"`
	Content      any            `json:"content"`
	Metadata     map[string]any `json:"metadata"`
}

type Validation struct {
	IsValid           bool     `json:"is_valid"`
	FaithfulnessScore float64  `json:"faithfulness_score"`
	RelevancyScore    float64  `json:"relevancy_score"`
	CoherenceScore    float64  `json:"coherence_score"`
	Issues            []string `json:"issues"`
	Suggestions       []string `json:"suggestions"`
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	Stream         bool   `json:"stream"`
}

// TurnResult is the terminal payload of a turn. Its JSON shape is also the
// non-streaming chat response.
type TurnResult struct {
	Message          string           `json:"message"`
	ConversationID   string           `json:"conversation_id"`
	Data             *DataResponse    `json:"data,omitempty"`
	ExecutionTrace   []StepEvent      `json:"execution_trace"`
	Sources          []map[string]any `json:"sources"`
	ProcessingTimeMs float64          `json:"processing_time_ms"`
	Validation       *Validation      `json:"validation,omitempty"`
}

type ChatResponse = TurnResult
