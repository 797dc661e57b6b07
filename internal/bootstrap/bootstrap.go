package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docchatlabs/docchat/internal/config"
	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/docchatlabs/docchat/internal/core/ports"
	"github.com/docchatlabs/docchat/internal/core/usecase"
	"github.com/docchatlabs/docchat/internal/infrastructure/chunking"
	"github.com/docchatlabs/docchat/internal/infrastructure/llm/openai"
	"github.com/docchatlabs/docchat/internal/infrastructure/loader"
	"github.com/docchatlabs/docchat/internal/infrastructure/queue/nats"
	"github.com/docchatlabs/docchat/internal/infrastructure/repository/postgres"
	"github.com/docchatlabs/docchat/internal/infrastructure/resilience"
	"github.com/docchatlabs/docchat/internal/infrastructure/search"
	"github.com/docchatlabs/docchat/internal/infrastructure/status"
	"github.com/docchatlabs/docchat/internal/infrastructure/storage/localfs"
	"github.com/docchatlabs/docchat/internal/infrastructure/vector/pinecone"
	"github.com/docchatlabs/docchat/internal/infrastructure/vector/weaviate"
	"github.com/docchatlabs/docchat/internal/observability/logging"
)

// App wires configuration, infrastructure adapters, and use cases into one
// dependency graph shared by the api and worker binaries.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    *nats.Queue
	Storage  *localfs.Storage
	Statuses *postgres.StatusRepository

	Intake    *usecase.Intake
	Pipeline  *usecase.Pipeline
	Agent     ports.AgentRunner
	Streamer  *usecase.Streamer
	Retrieval *usecase.RetrievalService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	statuses := postgres.NewStatusRepository(db)
	if err := statuses.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, logging.WithComponent(logger, "nats"))
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llmClient, err := openai.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.ChatModel, cfg.LLM.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	embedder := openai.NewEmbedder(llmClient)
	generator := openai.NewGenerator(llmClient)
	summarizer := openai.NewSummarizer(llmClient)

	exec := resilience.NewExecutor(resilience.Config{}, logging.WithComponent(logger, "resilience"))

	store, target, err := buildVectorStore(cfg, embedder, exec, logger)
	if err != nil {
		return nil, err
	}

	searcher := search.New(cfg.Search.BaseURL, cfg.Search.APIKey, cfg.Search.MaxResults, exec, logging.WithComponent(logger, "search"))

	chunker, err := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("init splitter: %w", err)
	}
	docLoader := loader.New(logging.WithComponent(logger, "loader"))
	notifier := status.NewNotifier(cfg.StatusCallbackBaseURL, logging.WithComponent(logger, "status"))

	retrieval := usecase.NewRetrievalService(store, target, usecase.RetrievalConfig{
		TopK:                cfg.RetrievalTopK,
		MinScore:            cfg.RetrievalMinScore,
		OverfetchMultiplier: cfg.RetrievalOverfetch,
		Timeout:             cfg.RetrievalTimeout,
	}, logging.WithComponent(logger, "retrieval"))

	agent := usecase.NewOrchestrator(retrieval, generator, searcher, summarizer, usecase.OrchestratorConfig{
		SummaryWordThreshold: cfg.SummaryWordThreshold,
		ContextWindowTurns:   cfg.ContextWindowTurns,
		DefaultLanguage:      cfg.DefaultAnswerLanguage,
	}, logging.WithComponent(logger, "orchestrator"))

	streamer := usecase.NewStreamer(retrieval, generator, agent, usecase.StreamerConfig{
		ChunkChars:         cfg.StreamChunkChars,
		ContextWindowTurns: cfg.ContextWindowTurns,
		DefaultLanguage:    cfg.DefaultAnswerLanguage,
	}, logging.WithComponent(logger, "streamer"))

	intake := usecase.NewIntake(queue, statuses, logging.WithComponent(logger, "intake"))

	pipeline := usecase.NewPipeline(docLoader, chunker, store, statuses, notifier, usecase.PipelineConfig{
		Target:             target,
		DefaultNamespace:   cfg.DefaultNamespace,
		DropNamespace:      cfg.IngestDropNamespace,
		DeleteTenantOnDrop: cfg.IngestDeleteTenantOnDrop,
	}, logging.WithComponent(logger, "pipeline"))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Queue:     queue,
		Storage:   storage,
		Statuses:  statuses,
		Intake:    intake,
		Pipeline:  pipeline,
		Agent:     agent,
		Streamer:  streamer,
		Retrieval: retrieval,

		closeFn: func() {
			_ = store.Close()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func buildVectorStore(cfg config.Config, embedder ports.Embedder, exec *resilience.Executor, logger *slog.Logger) (ports.VectorStore, domain.IndexConfig, error) {
	switch cfg.VectorBackend {
	case "pinecone":
		target := domain.IndexConfig{
			IndexName: cfg.Pinecone.IndexName,
			Namespace: cfg.DefaultNamespace,
			Dimension: cfg.VectorDimension,
			Metric:    cfg.Pinecone.Metric,
			Cloud:     cfg.Pinecone.Cloud,
			Region:    cfg.Pinecone.Region,
		}
		client := pinecone.New(cfg.Pinecone.ControlPlaneURL, cfg.Pinecone.APIKey, embedder, exec, logging.WithComponent(logger, "pinecone"))
		return client, target, nil
	case "weaviate":
		target := domain.IndexConfig{
			IndexName: cfg.Weaviate.ClassName,
			Namespace: cfg.DefaultNamespace,
			Dimension: cfg.VectorDimension,
		}
		client := weaviate.New(cfg.Weaviate.BaseURL, embedder, exec, logging.WithComponent(logger, "weaviate"))
		return client, target, nil
	default:
		return nil, domain.IndexConfig{}, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
