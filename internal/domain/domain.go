package domain

import (
	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/domain/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/domain/library"
)

type (
	AgentStatus  = chat.AgentStatus
	StepEvent    = chat.StepEvent
	DataResponse = chat.DataResponse
	ResponseType = chat.ResponseType
	Validation   = chat.Validation
	ChatRequest  = chat.ChatRequest
	ChatResponse = chat.ChatResponse
	TurnResult   = chat.TurnResult
	ChatTurn     = chat.ChatTurn

	JobStatus             = jobs.JobStatus
	IngestionJob          = jobs.IngestionJob
	IngestionResponse     = jobs.IngestionResponse
	BulkIngestionResponse = jobs.BulkIngestionResponse

	Document = library.Document
)

const (
	StatusPending   = chat.StatusPending
	StatusRunning   = chat.StatusRunning
	StatusCompleted = chat.StatusCompleted
	StatusFailed    = chat.StatusFailed

	ResponseText  = chat.ResponseText
	ResponseTable = chat.ResponseTable
	ResponseGraph = chat.ResponseGraph

	JobPending    = jobs.JobPending
	JobProcessing = jobs.JobProcessing
	JobCompleted  = jobs.JobCompleted
	JobFailed     = jobs.JobFailed

	DocumentProcessed = library.DocumentProcessed
	DocumentEmpty     = library.DocumentEmpty
)

// AllModels lists every gorm model for auto-migration.
func AllModels() []any {
	return []any{
		&chat.ChatTurn{},
		&jobs.IngestionJob{},
		&library.Document{},
	}
}
