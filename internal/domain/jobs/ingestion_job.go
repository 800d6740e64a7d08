package jobs

import (
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// IngestionJob is the status record of one document ingestion. The JSON form is
// what the status endpoints return.
type IngestionJob struct {
	JobID           string     `gorm:"column:job_id;primaryKey" json:"job_id"`
	Status          JobStatus  `gorm:"column:status;not null;index" json:"status"`
	Filename        string     `gorm:"column:filename;not null" json:"filename"`
	Progress        float64    `gorm:"column:progress;not null;default:0" json:"progress"`
	ChunksProcessed int        `gorm:"column:chunks_processed;not null;default:0" json:"chunks_processed"`
	TotalChunks     int        `gorm:"column:total_chunks;not null;default:0" json:"total_chunks"`
	StartedAt       *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Error           string     `gorm:"column:error;type:text" json:"error,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

func (IngestionJob) TableName() string { return "ingestion_job" }

func (j *IngestionJob) BeforeSave(tx *gorm.DB) error {
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// SortTime is the instant used to order job listings, most recent first.
func (j IngestionJob) SortTime() time.Time {
	if j.StartedAt != nil {
		return *j.StartedAt
	}
	return j.CreatedAt
}

type IngestionResponse struct {
	JobID   string    `json:"job_id"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

type BulkIngestionResponse struct {
	Jobs       []IngestionResponse `json:"jobs"`
	TotalFiles int                 `json:"total_files"`
}
