package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/nexusgraph-backend/internal/data/repos/chat"
	"github.com/yungbote/nexusgraph-backend/internal/data/repos/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/data/repos/library"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type ChatTurnRepo = chat.ChatTurnRepo
type IngestionJobRepo = jobs.IngestionJobRepo
type DocumentRepo = library.DocumentRepo

func NewChatTurnRepo(db *gorm.DB, log *logger.Logger) ChatTurnRepo { return chat.NewChatTurnRepo(db, log) }

func NewIngestionJobRepo(db *gorm.DB, log *logger.Logger) IngestionJobRepo {
	return jobs.NewIngestionJobRepo(db, log)
}

func NewDocumentRepo(db *gorm.DB, log *logger.Logger) DocumentRepo {
	return library.NewDocumentRepo(db, log)
}
