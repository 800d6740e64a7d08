package library

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Upsert(dbc dbctx.Context, doc *types.Document) error
	GetByID(dbc dbctx.Context, id string) (*types.Document, error)
	List(dbc dbctx.Context, limit int) ([]*types.Document, error)
	Count(dbc dbctx.Context) (int64, error)
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{
		db:  db,
		log: baseLog.With("repo", "DocumentRepo"),
	}
}

// Upsert keeps created_at of an existing row and refreshes everything else.
func (r *documentRepo) Upsert(dbc dbctx.Context, doc *types.Document) error {
	if doc == nil || doc.ID == "" {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"filename", "chunk_count", "bytes", "status", "job_id", "metadata", "updated_at"}),
		}).
		Create(doc).Error
}

// GetByID returns (nil, nil) when no row exists.
func (r *documentRepo) GetByID(dbc dbctx.Context, id string) (*types.Document, error) {
	if id == "" {
		return nil, nil
	}
	var doc types.Document
	err := dbc.DB(r.db).Where("id = ?", id).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) List(dbc dbctx.Context, limit int) ([]*types.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.Document
	if err := dbc.DB(r.db).Order("updated_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) Count(dbc dbctx.Context) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Document{}).Count(&n).Error
	return n, err
}
