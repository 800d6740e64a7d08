package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/nexusgraph-backend/internal/data/db"
	"github.com/yungbote/nexusgraph-backend/internal/platform/llm"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/nexusgraph-backend/internal/platform/pgdb"
	"github.com/yungbote/nexusgraph-backend/internal/platform/uploads"
	"github.com/yungbote/nexusgraph-backend/internal/platform/vectorstore"
	"github.com/yungbote/nexusgraph-backend/internal/realtime/bus"
)

// Clients holds every external connection. Each one except Uploads and Vectors is optional
// and nil when not configured.
type Clients struct {
	DB      *db.Service
	Analyst *pgdb.Client
	Graph   *neo4jdb.Client
	Bus     bus.Bus
	LLM     *llm.Client
	Vectors VectorIndex
	Uploads uploads.Store

	Embedder string
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients
	fail := func(err error) (Clients, error) {
		c.Close(context.Background())
		return Clients{}, err
	}

	// Gorm (turn + job persistence)
	dbs, err := db.Open(log, db.Config{Driver: cfg.DBDriver, DatabaseURL: cfg.DatabaseURL, SQLitePath: cfg.SQLitePath})
	if err != nil {
		return fail(fmt.Errorf("init database: %w", err))
	}
	if dbs != nil {
		if err := db.AutoMigrateAll(dbs.DB()); err != nil {
			_ = dbs.Close()
			return fail(err)
		}
		c.DB = dbs
	}

	// Pgx (analyst queries)
	analyst, err := pgdb.New(ctx, log, cfg.AnalystDatabaseURL)
	if err != nil {
		return fail(fmt.Errorf("init analyst db: %w", err))
	}
	c.Analyst = analyst

	// Neo4j
	if strings.TrimSpace(cfg.Neo4jURI) != "" {
		g, err := neo4jdb.New(log, neo4jdb.Config{
			URI:      cfg.Neo4jURI,
			User:     cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return fail(fmt.Errorf("init neo4j: %w", err))
		}
		c.Graph = g
	}

	// Redis
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		b, err := bus.NewRedisBus(log, bus.RedisConfig{Addr: cfg.RedisAddr, Channel: cfg.RedisChannel})
		if err != nil {
			return fail(fmt.Errorf("init redis push bus: %w", err))
		}
		c.Bus = b
	}

	// LLM
	model, err := llm.New(log, llm.Config{APIKey: cfg.OpenAIAPIKey, Model: cfg.LLMModel, EmbeddingModel: cfg.EmbeddingModel})
	if err != nil {
		return fail(fmt.Errorf("init llm: %w", err))
	}
	c.LLM = model

	// Vector index
	var embedder vectorstore.Embedder
	if model != nil {
		embedder = model
	}
	vectors, embedderName, err := resolveVectorStore(log, cfg, embedder)
	if err != nil {
		return fail(err)
	}
	c.Vectors, c.Embedder = vectors, embedderName

	// Uploads
	store, err := resolveUploadStore(ctx, log, cfg)
	if err != nil {
		return fail(err)
	}
	c.Uploads = store

	return c, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Graph != nil {
		_ = c.Graph.Close(ctx)
	}
	if c.Analyst != nil {
		c.Analyst.Close()
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
