package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/nexusgraph-backend/internal/data/repos"
	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

// Repos is empty when persistence is disabled; every consumer treats a nil repo as "off".
type Repos struct {
	ChatTurn     repos.ChatTurnRepo
	IngestionJob repos.IngestionJobRepo
	Document     repos.DocumentRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	if db == nil {
		log.Info("Persistence disabled; skipping repos")
		return Repos{}
	}
	log.Info("Wiring repos...")
	return Repos{
		ChatTurn:     repos.NewChatTurnRepo(db, log),
		IngestionJob: repos.NewIngestionJobRepo(db, log),
		Document:     repos.NewDocumentRepo(db, log),
	}
}

// jobStore adapts the ingestion job repo to the registry's persistence hook.
type jobStore struct {
	repo repos.IngestionJobRepo
}

func newJobStore(repo repos.IngestionJobRepo) jobs.Store {
	if repo == nil {
		return nil
	}
	return jobStore{repo: repo}
}

func (s jobStore) Save(ctx context.Context, job *types.IngestionJob) error {
	return s.repo.Upsert(dbctx.For(ctx), job)
}

func (s jobStore) Delete(ctx context.Context, jobID string) error {
	return s.repo.Delete(dbctx.For(ctx), jobID)
}

func (s jobStore) Get(ctx context.Context, jobID string) (*types.IngestionJob, error) {
	job, err := s.repo.GetByID(dbctx.For(ctx), jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, jobs.ErrJobNotFound
	}
	return job, nil
}
