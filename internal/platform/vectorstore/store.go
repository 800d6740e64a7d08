package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type Config struct {
	// PersistPath enables gob persistence under this directory; empty keeps data in memory.
	PersistPath string
	Collection  string
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

type Result struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float32           `json:"similarity"`
}

type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	log        *logger.Logger
}

func New(log *logger.Logger, cfg Config, embedder Embedder) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("vectorstore: embedder required")
	}
	name := strings.TrimSpace(cfg.Collection)
	if name == "" {
		name = "documents"
	}

	var db *chromem.DB
	if p := strings.TrimSpace(cfg.PersistPath); p != "" {
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(p, "chromem.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: open persistent db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.Embed(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(name, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: collection: %w", err)
	}
	return &Store{
		db:         db,
		collection: collection,
		log:        log.With("client", "VectorStore", "collection", name),
	}, nil
}

func (s *Store) Add(ctx context.Context, docs []Document) error {
	for _, doc := range docs {
		err := s.collection.AddDocument(ctx, chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
		if err != nil {
			return fmt.Errorf("vectorstore: add %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Query returns up to topK documents most similar to text.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 5
	}
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}
	res, err := s.collection.Query(ctx, text, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}
	out := make([]Result, 0, len(res))
	for _, r := range res {
		out = append(out, Result{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		})
	}
	return out, nil
}

func (s *Store) Count() int { return s.collection.Count() }
