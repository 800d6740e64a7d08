package jobs

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type IngestionJobRepo interface {
	Upsert(dbc dbctx.Context, job *types.IngestionJob) error
	GetByID(dbc dbctx.Context, jobID string) (*types.IngestionJob, error)
	List(dbc dbctx.Context, status types.JobStatus, limit int) ([]*types.IngestionJob, error)
	Delete(dbc dbctx.Context, jobID string) error
}

type ingestionJobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIngestionJobRepo(db *gorm.DB, baseLog *logger.Logger) IngestionJobRepo {
	return &ingestionJobRepo{
		db:  db,
		log: baseLog.With("repo", "IngestionJobRepo"),
	}
}

func (r *ingestionJobRepo) Upsert(dbc dbctx.Context, job *types.IngestionJob) error {
	if job == nil || job.JobID == "" {
		return nil
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			UpdateAll: true,
		}).
		Create(job).Error
}

// GetByID returns (nil, nil) when no row exists.
func (r *ingestionJobRepo) GetByID(dbc dbctx.Context, jobID string) (*types.IngestionJob, error) {
	if jobID == "" {
		return nil, nil
	}
	var job types.IngestionJob
	err := dbc.DB(r.db).Where("job_id = ?", jobID).Take(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *ingestionJobRepo) List(dbc dbctx.Context, status types.JobStatus, limit int) ([]*types.IngestionJob, error) {
	if limit <= 0 {
		limit = 50
	}
	q := dbc.DB(r.db).Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*types.IngestionJob
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ingestionJobRepo) Delete(dbc dbctx.Context, jobID string) error {
	return dbc.DB(r.db).Where("job_id = ?", jobID).Delete(&types.IngestionJob{}).Error
}
