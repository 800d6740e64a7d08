package app

import (
	"context"
	"time"

	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/vectorstore"
)

// VectorIndex is the document index shared by ingestion (writes) and the librarian (reads).
type VectorIndex interface {
	Add(ctx context.Context, docs []vectorstore.Document) error
	Query(ctx context.Context, text string, topK int) ([]vectorstore.Result, error)
	Count() int
}

type instrumentedVectorStore struct {
	provider string
	inner    VectorIndex
	metrics  *observability.Metrics
}

func instrumentVectorStore(provider string, inner VectorIndex) VectorIndex {
	if inner == nil {
		return nil
	}
	return &instrumentedVectorStore{
		provider: provider,
		inner:    inner,
		metrics:  observability.Current(),
	}
}

func (s *instrumentedVectorStore) Add(ctx context.Context, docs []vectorstore.Document) error {
	start := time.Now()
	err := s.inner.Add(ctx, docs)
	s.observe("add", err, time.Since(start))
	return err
}

func (s *instrumentedVectorStore) Query(ctx context.Context, text string, topK int) ([]vectorstore.Result, error) {
	start := time.Now()
	out, err := s.inner.Query(ctx, text, topK)
	s.observe("query", err, time.Since(start))
	return out, err
}

func (s *instrumentedVectorStore) Count() int { return s.inner.Count() }

func (s *instrumentedVectorStore) observe(operation string, err error, dur time.Duration) {
	if s == nil || s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.ObserveStoreOp("vector:"+s.provider, operation, status, dur)
}
