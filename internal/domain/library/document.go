package library

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DocumentProcessed = "processed"
	DocumentEmpty     = "empty"
)

// Document is one ingested file. ID is derived from the content hash, so re-uploading the
// same bytes updates the same row.
type Document struct {
	ID         string         `gorm:"column:id;primaryKey;type:varchar(64)" json:"id"`
	Filename   string         `gorm:"column:filename;type:varchar(500);not null" json:"filename"`
	ChunkCount int            `gorm:"column:chunk_count;not null;default:0" json:"chunk_count"`
	Bytes      int64          `gorm:"column:bytes;not null;default:0" json:"bytes"`
	Status     string         `gorm:"column:status;type:varchar(50);not null;default:'processed'" json:"status"`
	JobID      string         `gorm:"column:job_id;index" json:"job_id"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (Document) TableName() string { return "documents" }

func (d *Document) BeforeSave(tx *gorm.DB) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	return nil
}
