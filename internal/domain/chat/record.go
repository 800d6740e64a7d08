package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatTurn is the persisted form of one closed turn.
type ChatTurn struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID   string         `gorm:"column:conversation_id;not null;index" json:"conversation_id"`
	UserMessage      string         `gorm:"column:user_message;type:text" json:"user_message"`
	AssistantMessage string         `gorm:"column:assistant_message;type:text" json:"assistant_message"`
	Status           string         `gorm:"column:status;not null;index" json:"status"`
	Error            string         `gorm:"column:error;type:text" json:"error,omitempty"`
	Data             datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	Trace            datatypes.JSON `gorm:"column:trace;type:jsonb" json:"trace,omitempty"`
	Validation       datatypes.JSON `gorm:"column:validation;type:jsonb" json:"validation,omitempty"`
	ProcessingTimeMs float64        `gorm:"column:processing_time_ms" json:"processing_time_ms"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
}

func (ChatTurn) TableName() string { return "chat_turn" }

func (t *ChatTurn) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return nil
}
