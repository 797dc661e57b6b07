package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/docchatlabs/docchat/internal/core/ports"
)

// Intake accepts ingestion requests on the API side: validate, persist the
// pending status, hand the request to the worker queue.
type Intake struct {
	queue    ports.IngestionQueue
	statuses ports.StatusRepository
	logger   *slog.Logger
}

func NewIntake(queue ports.IngestionQueue, statuses ports.StatusRepository, logger *slog.Logger) *Intake {
	return &Intake{queue: queue, statuses: statuses, logger: logger}
}

func (s *Intake) Accept(ctx context.Context, req domain.IngestionRequest) (domain.IngestionStatus, error) {
	if err := validateRequest(req); err != nil {
		return domain.IngestionStatus{}, err
	}

	status := domain.IngestionStatus{
		RequestID:        req.RequestID,
		FileName:         req.FileName,
		OriginalFileName: req.OriginalFileName,
		State:            domain.IngestionPending,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := s.statuses.Upsert(ctx, status); err != nil {
		return domain.IngestionStatus{}, fmt.Errorf("persist pending status: %w", err)
	}
	if err := s.queue.Publish(ctx, req); err != nil {
		return domain.IngestionStatus{}, fmt.Errorf("enqueue ingestion request: %w", err)
	}

	s.logger.Info("ingestion_request_accepted", "request_id", req.RequestID, "file_name", req.FileName)
	return status, nil
}

func (s *Intake) StatusByRequestID(ctx context.Context, requestID int64) (domain.IngestionStatus, error) {
	return s.statuses.GetByRequestID(ctx, requestID)
}

func validateRequest(req domain.IngestionRequest) error {
	switch {
	case req.RequestID <= 0:
		return domain.WrapError(domain.ErrInvalidInput, "usecase.Accept", errors.New("request_id must be positive"))
	case req.PreSignedURL == "":
		return domain.WrapError(domain.ErrInvalidInput, "usecase.Accept", errors.New("pre_signed_url is required"))
	case req.FileName == "":
		return domain.WrapError(domain.ErrInvalidInput, "usecase.Accept", errors.New("file_name is required"))
	case !req.FileType.Valid():
		return domain.WrapError(domain.ErrInvalidInput, "usecase.Accept", fmt.Errorf("unsupported file type %q", req.FileType))
	default:
		return nil
	}
}

type PipelineConfig struct {
	Target           domain.IndexConfig
	DefaultNamespace string
	// DropNamespace clears existing namespace content before each upsert;
	// DeleteTenantOnDrop removes the tenant itself on backends that have one.
	DropNamespace      bool
	DeleteTenantOnDrop bool
}

// Pipeline runs one ingestion request end to end on the worker side:
// load, chunk, upsert, then persist and deliver exactly one terminal status.
type Pipeline struct {
	loader   ports.DocumentLoader
	chunker  ports.Chunker
	store    ports.VectorStore
	statuses ports.StatusRepository
	notifier ports.StatusNotifier
	cfg      PipelineConfig
	logger   *slog.Logger
}

func NewPipeline(
	loader ports.DocumentLoader,
	chunker ports.Chunker,
	store ports.VectorStore,
	statuses ports.StatusRepository,
	notifier ports.StatusNotifier,
	cfg PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		loader:   loader,
		chunker:  chunker,
		store:    store,
		statuses: statuses,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process never returns an error: every outcome, including invalid input,
// ends in a terminal status that is persisted and delivered to the callback.
func (p *Pipeline) Process(ctx context.Context, req domain.IngestionRequest) domain.IngestionStatus {
	status := domain.IngestionStatus{
		RequestID:        req.RequestID,
		FileName:         req.FileName,
		OriginalFileName: req.OriginalFileName,
		State:            domain.IngestionFailed,
	}

	totalPages, err := p.run(ctx, req)
	if err != nil {
		status.ErrorDetail = err.Error()
		p.logger.Error("ingestion_failed", "request_id", req.RequestID, "file_name", req.FileName, "error", err)
	} else {
		status.State = domain.IngestionCompleted
		status.TotalPages = totalPages
		p.logger.Info("ingestion_completed", "request_id", req.RequestID, "file_name", req.FileName, "total_pages", totalPages)
	}
	status.UpdatedAt = time.Now().UTC()

	p.finish(ctx, req, status)
	return status
}

func (p *Pipeline) run(ctx context.Context, req domain.IngestionRequest) (int, error) {
	if err := validateRequest(req); err != nil {
		return 0, err
	}

	namespace := req.Namespace
	if namespace == "" {
		namespace = p.cfg.DefaultNamespace
	}

	doc, err := p.loader.Load(ctx, req.PreSignedURL, req.FileType)
	if err != nil {
		return 0, err
	}
	totalPages := len(doc.Pages)
	if totalPages == 0 {
		return 0, domain.WrapError(domain.ErrLoad, "usecase.Process", errors.New("document produced no content"))
	}

	chunks, err := p.chunkDocument(doc, req)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrChunking, "usecase.Process", errors.New("no text chunks produced"))
	}

	target := p.cfg.Target.WithNamespace(namespace)
	if err := p.store.EnsureIndex(ctx, target, false); err != nil {
		return 0, err
	}
	if p.cfg.DropNamespace {
		if err := p.store.DropNamespace(ctx, target, p.cfg.DeleteTenantOnDrop); err != nil {
			return 0, err
		}
	}

	result, err := p.store.Upsert(ctx, chunks, target)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("chunks_upserted", "request_id", req.RequestID, "upserted", result.Upserted, "namespace", namespace)

	return totalPages, nil
}

func (p *Pipeline) chunkDocument(doc domain.Document, req domain.IngestionRequest) ([]domain.Chunk, error) {
	title := req.OriginalFileName
	if title == "" {
		title = req.FileName
	}

	var chunks []domain.Chunk
	for _, page := range doc.Pages {
		parts, err := p.chunker.Split(page.Content)
		if err != nil {
			return nil, err
		}
		for _, part := range parts {
			chunks = append(chunks, domain.Chunk{
				Text: part,
				Metadata: map[string]string{
					"original_file_name": req.OriginalFileName,
					"file_name":          req.FileName,
					"file_type":          string(req.FileType),
					"process_type":       "document_upload",
					"title":              title,
					"page":               strconv.Itoa(page.Number),
				},
			})
		}
	}
	return chunks, nil
}

// finish persists and delivers the terminal status. Neither failure changes
// the ingestion outcome, but both are loud in the logs.
func (p *Pipeline) finish(ctx context.Context, req domain.IngestionRequest, status domain.IngestionStatus) {
	if err := p.statuses.Upsert(ctx, status); err != nil {
		p.logger.Error("status_persist_failed", "request_id", req.RequestID, "state", string(status.State), "error", err)
	}
	p.notifier.Notify(ctx, req.StatusCallbackPath, status)
}
