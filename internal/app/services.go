package app

import (
	"context"

	"github.com/yungbote/nexusgraph-backend/internal/jobs"
	"github.com/yungbote/nexusgraph-backend/internal/modules/chat"
	"github.com/yungbote/nexusgraph-backend/internal/modules/chat/steps"
	"github.com/yungbote/nexusgraph-backend/internal/modules/ingestion"
	domainchat "github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

type Services struct {
	Hub       *realtime.Hub
	Registry  *jobs.Registry
	Worker    *jobs.Worker
	Ingestion *ingestion.Usecases
	Chat      chat.Usecases
	Sockets   *realtime.SocketHub
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos) Services {
	log.Info("Wiring services...")

	hub := realtime.NewHub(log)
	// With a bus, job events fan out through redis and come back via the forwarder.
	var publisher jobs.Publisher = hub
	if clients.Bus != nil {
		publisher = clients.Bus
	}
	registry := jobs.NewRegistry(log, jobs.NewNotifier(log, publisher), newJobStore(reposet.IngestionJob), jobs.RegistryOptions{
		Retention:   cfg.JobRetention,
		MaxRetained: cfg.JobRetentionMax,
	})

	ingestDeps := ingestion.UsecasesDeps{
		Log:               log,
		Registry:          registry,
		Uploads:           clients.Uploads,
		Vectors:           clients.Vectors,
		Documents:         reposet.Document,
		Chunker:           ingestion.TextChunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		MaxUploadBytes:    cfg.MaxUploadBytes,
		AllowedExtensions: cfg.AllowedExtensions,
	}
	if clients.Graph != nil {
		ingestDeps.Graph = clients.Graph
		if clients.LLM != nil {
			ingestDeps.Entities = ingestion.LLMEntityExtractor{LLM: clients.LLM}
		}
	}
	ingest := ingestion.New(ingestDeps)
	worker := jobs.NewWorker(log, registry, ingest, cfg.IngestWorkers, cfg.IngestQueueSize)
	ingest.WithQueue(worker)

	chatUC := chat.New(chat.UsecasesDeps{
		Log:      log.With("component", "Chat"),
		Turns:    reposet.ChatTurn,
		Pipeline: pipelineDeps(log, cfg, clients),
	})

	sockets := realtime.NewSocketHub(log, func(ctx context.Context, _ string, req domainchat.ChatRequest, sink realtime.Sink) error {
		_, err := chatUC.Respond(ctx, req, sink)
		return err
	}, realtime.SocketOptions{
		WriteTimeout:   cfg.SocketWriteTimeout,
		AllowedOrigins: cfg.CORSOrigins,
	})

	return Services{
		Hub:       hub,
		Registry:  registry,
		Worker:    worker,
		Ingestion: ingest,
		Chat:      chatUC,
		Sockets:   sockets,
	}
}

// pipelineDeps picks model-backed collaborators when a model is configured and the
// deterministic ones otherwise. Absent clients stay untyped nil so each tool reports
// itself unavailable.
func pipelineDeps(log *logger.Logger, cfg Config, clients Clients) steps.PipelineDeps {
	var gen steps.TextGenerator
	if clients.LLM != nil {
		gen = clients.LLM
	}
	deps := steps.PipelineDeps{
		Log:        log.With("component", "Pipeline"),
		Router:     steps.KeywordRouter{},
		Synth:      steps.LLMSynthesizer{LLM: gen},
		Critic:     steps.HeuristicCritic{},
		MaxRetries: cfg.MaxRetries,
		TopK:       cfg.TopK,
	}
	if gen != nil {
		deps.Router = steps.LLMRouter{LLM: gen, Fallback: steps.KeywordRouter{}}
		deps.Critic = steps.LLMCritic{LLM: gen, Fallback: steps.HeuristicCritic{}}
	}
	if clients.Vectors != nil {
		deps.Retriever = steps.VectorRetriever{Store: clients.Vectors}
		deps.Indexed = clients.Vectors.Count
	}
	sql := steps.SQLTool{LLM: gen}
	if clients.Analyst != nil {
		sql.DB = clients.Analyst
	}
	deps.SQL = sql
	graph := steps.GraphTool{LLM: gen}
	if clients.Graph != nil {
		graph.Graph = clients.Graph
	}
	deps.Graph = graph
	return deps
}
