package chat

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type ChatTurnRepo interface {
	Create(dbc dbctx.Context, row *types.ChatTurn) error
	ListByConversation(dbc dbctx.Context, conversationID string, limit int) ([]*types.ChatTurn, error)
}

type chatTurnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChatTurnRepo(db *gorm.DB, log *logger.Logger) ChatTurnRepo {
	return &chatTurnRepo{
		db:  db,
		log: log.With("repo", "ChatTurnRepo"),
	}
}

func (r *chatTurnRepo) Create(dbc dbctx.Context, row *types.ChatTurn) error {
	if row == nil || strings.TrimSpace(row.ConversationID) == "" {
		return fmt.Errorf("invalid chat turn")
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

// ListByConversation returns the newest turns first.
func (r *chatTurnRepo) ListByConversation(dbc dbctx.Context, conversationID string, limit int) ([]*types.ChatTurn, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("missing conversation id")
	}
	if limit <= 0 {
		limit = 20
	}
	var out []*types.ChatTurn
	if err := dbc.DB(r.db).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
