package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/docchatlabs/docchat/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeQueue struct {
	published []domain.IngestionRequest
	err       error
}

func (q *fakeQueue) Publish(ctx context.Context, req domain.IngestionRequest) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, req)
	return nil
}

func (q *fakeQueue) Subscribe(ctx context.Context, handler func(context.Context, domain.IngestionRequest) error) error {
	return nil
}

type fakeStatusRepo struct {
	upserts   []domain.IngestionStatus
	upsertErr error
	byID      map[int64]domain.IngestionStatus
}

func (r *fakeStatusRepo) Upsert(ctx context.Context, status domain.IngestionStatus) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts = append(r.upserts, status)
	return nil
}

func (r *fakeStatusRepo) GetByRequestID(ctx context.Context, requestID int64) (domain.IngestionStatus, error) {
	status, ok := r.byID[requestID]
	if !ok {
		return domain.IngestionStatus{}, domain.WrapError(domain.ErrNotFound, "fake.GetByRequestID", errors.New("missing"))
	}
	return status, nil
}

type fakeNotifier struct {
	paths    []string
	statuses []domain.IngestionStatus
}

func (n *fakeNotifier) Notify(ctx context.Context, callbackPath string, status domain.IngestionStatus) {
	n.paths = append(n.paths, callbackPath)
	n.statuses = append(n.statuses, status)
}

type fakeLoader struct {
	doc domain.Document
	err error
}

func (l *fakeLoader) Load(ctx context.Context, source string, fileType domain.FileType) (domain.Document, error) {
	if l.err != nil {
		return domain.Document{}, l.err
	}
	return l.doc, nil
}

type fakeChunker struct {
	err error
}

func (c *fakeChunker) Split(text string) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

type fakeVectorStore struct {
	ensured    []domain.IndexConfig
	dropped    []bool
	upserted   [][]domain.Chunk
	queries    []string
	results    []domain.RetrievalResult
	queryErr   error
	upsertErr  error
	lastFilter *domain.MetadataFilter
	lastK      int
	lastTarget domain.IndexConfig
}

func (s *fakeVectorStore) EnsureIndex(ctx context.Context, cfg domain.IndexConfig, dropIfExists bool) error {
	s.ensured = append(s.ensured, cfg)
	return nil
}

func (s *fakeVectorStore) Upsert(ctx context.Context, chunks []domain.Chunk, target domain.IndexConfig) (domain.UpsertResult, error) {
	if s.upsertErr != nil {
		return domain.UpsertResult{}, s.upsertErr
	}
	s.upserted = append(s.upserted, chunks)
	return domain.UpsertResult{Upserted: len(chunks)}, nil
}

func (s *fakeVectorStore) Query(ctx context.Context, text string, target domain.IndexConfig, k int, filter *domain.MetadataFilter) ([]domain.RetrievalResult, error) {
	s.queries = append(s.queries, text)
	s.lastFilter = filter
	s.lastK = k
	s.lastTarget = target
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.results, nil
}

func (s *fakeVectorStore) DropNamespace(ctx context.Context, target domain.IndexConfig, deleteTenant bool) error {
	s.dropped = append(s.dropped, deleteTenant)
	return nil
}

func (s *fakeVectorStore) Close() error { return nil }

func TestAcceptPersistsPendingAndPublishes(t *testing.T) {
	queue := &fakeQueue{}
	repo := &fakeStatusRepo{}
	intake := NewIntake(queue, repo, testLogger())

	req := domain.IngestionRequest{
		RequestID:    42,
		PreSignedURL: "http://files/report.pdf",
		FileName:     "report.pdf",
		FileType:     domain.FileTypePDF,
	}
	status, err := intake.Accept(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.State != domain.IngestionPending {
		t.Fatalf("expected pending state, got %s", status.State)
	}
	if len(repo.upserts) != 1 || repo.upserts[0].RequestID != 42 {
		t.Fatalf("expected pending status persisted, got %+v", repo.upserts)
	}
	if len(queue.published) != 1 || queue.published[0].RequestID != 42 {
		t.Fatalf("expected request published, got %+v", queue.published)
	}
}

func TestAcceptRejectsInvalidRequests(t *testing.T) {
	intake := NewIntake(&fakeQueue{}, &fakeStatusRepo{}, testLogger())
	cases := []domain.IngestionRequest{
		{PreSignedURL: "u", FileName: "f", FileType: domain.FileTypeTXT},
		{RequestID: 1, FileName: "f", FileType: domain.FileTypeTXT},
		{RequestID: 1, PreSignedURL: "u", FileType: domain.FileTypeTXT},
		{RequestID: 1, PreSignedURL: "u", FileName: "f", FileType: "exe"},
	}
	for i, req := range cases {
		if _, err := intake.Accept(context.Background(), req); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("case %d: expected invalid input error, got %v", i, err)
		}
	}
}

func TestAcceptPublishFailureSurfaces(t *testing.T) {
	queue := &fakeQueue{err: errors.New("nats down")}
	intake := NewIntake(queue, &fakeStatusRepo{}, testLogger())
	_, err := intake.Accept(context.Background(), domain.IngestionRequest{
		RequestID:    1,
		PreSignedURL: "u",
		FileName:     "f",
		FileType:     domain.FileTypeTXT,
	})
	if err == nil {
		t.Fatalf("expected publish failure to surface")
	}
}

func newTestPipeline(loader *fakeLoader, store *fakeVectorStore, repo *fakeStatusRepo, notifier *fakeNotifier, cfg PipelineConfig) *Pipeline {
	return NewPipeline(loader, &fakeChunker{}, store, repo, notifier, cfg, testLogger())
}

func TestProcessCompletesAndNotifies(t *testing.T) {
	loader := &fakeLoader{doc: domain.Document{Pages: []domain.Page{
		{Number: 1, Content: "first page text"},
		{Number: 2, Content: "second page text"},
	}}}
	store := &fakeVectorStore{}
	repo := &fakeStatusRepo{}
	notifier := &fakeNotifier{}
	pipeline := newTestPipeline(loader, store, repo, notifier, PipelineConfig{
		Target:           domain.IndexConfig{IndexName: "docs"},
		DefaultNamespace: "default",
	})

	req := domain.IngestionRequest{
		RequestID:          7,
		PreSignedURL:       "http://files/a.txt",
		FileName:           "a.txt",
		OriginalFileName:   "Annual Report.txt",
		FileType:           domain.FileTypeTXT,
		StatusCallbackPath: "/api/v1/ingest-status",
	}
	status := pipeline.Process(context.Background(), req)

	if status.State != domain.IngestionCompleted {
		t.Fatalf("expected completed, got %s (%s)", status.State, status.ErrorDetail)
	}
	if status.TotalPages != 2 {
		t.Fatalf("expected 2 pages, got %d", status.TotalPages)
	}
	if len(store.ensured) != 1 || store.ensured[0].Namespace != "default" {
		t.Fatalf("expected index ensured with default namespace, got %+v", store.ensured)
	}
	if len(store.upserted) != 1 || len(store.upserted[0]) != 2 {
		t.Fatalf("expected 2 chunks upserted, got %+v", store.upserted)
	}
	meta := store.upserted[0][0].Metadata
	if meta["title"] != "Annual Report.txt" || meta["process_type"] != "document_upload" || meta["page"] != "1" {
		t.Fatalf("unexpected chunk metadata %+v", meta)
	}
	if len(repo.upserts) != 1 || repo.upserts[0].State != domain.IngestionCompleted {
		t.Fatalf("expected terminal status persisted, got %+v", repo.upserts)
	}
	if len(notifier.paths) != 1 || notifier.paths[0] != "/api/v1/ingest-status" {
		t.Fatalf("expected callback delivered, got %+v", notifier.paths)
	}
}

func TestProcessLoadFailureProducesFailedStatus(t *testing.T) {
	loader := &fakeLoader{err: domain.WrapError(domain.ErrLoad, "loader.Load", errors.New("corrupt pdf"))}
	repo := &fakeStatusRepo{}
	notifier := &fakeNotifier{}
	pipeline := newTestPipeline(loader, &fakeVectorStore{}, repo, notifier, PipelineConfig{DefaultNamespace: "default"})

	status := pipeline.Process(context.Background(), domain.IngestionRequest{
		RequestID:    8,
		PreSignedURL: "u",
		FileName:     "f.pdf",
		FileType:     domain.FileTypePDF,
	})
	if status.State != domain.IngestionFailed {
		t.Fatalf("expected failed state, got %s", status.State)
	}
	if status.ErrorDetail == "" {
		t.Fatalf("expected error detail to be set")
	}
	if len(notifier.statuses) != 1 || notifier.statuses[0].State != domain.IngestionFailed {
		t.Fatalf("expected failed status notified, got %+v", notifier.statuses)
	}
}

func TestProcessEmptyDocumentFails(t *testing.T) {
	loader := &fakeLoader{doc: domain.Document{}}
	pipeline := newTestPipeline(loader, &fakeVectorStore{}, &fakeStatusRepo{}, &fakeNotifier{}, PipelineConfig{DefaultNamespace: "default"})

	status := pipeline.Process(context.Background(), domain.IngestionRequest{
		RequestID:    9,
		PreSignedURL: "u",
		FileName:     "f.txt",
		FileType:     domain.FileTypeTXT,
	})
	if status.State != domain.IngestionFailed {
		t.Fatalf("expected failed state, got %s", status.State)
	}
}

func TestProcessDropsNamespaceWhenConfigured(t *testing.T) {
	loader := &fakeLoader{doc: domain.Document{Pages: []domain.Page{{Number: 1, Content: "text"}}}}
	store := &fakeVectorStore{}
	pipeline := newTestPipeline(loader, store, &fakeStatusRepo{}, &fakeNotifier{}, PipelineConfig{
		DefaultNamespace:   "default",
		DropNamespace:      true,
		DeleteTenantOnDrop: true,
	})

	status := pipeline.Process(context.Background(), domain.IngestionRequest{
		RequestID:    10,
		PreSignedURL: "u",
		FileName:     "f.txt",
		FileType:     domain.FileTypeTXT,
		Namespace:    "tenant-a",
	})
	if status.State != domain.IngestionCompleted {
		t.Fatalf("expected completed, got %s (%s)", status.State, status.ErrorDetail)
	}
	if len(store.dropped) != 1 || !store.dropped[0] {
		t.Fatalf("expected namespace dropped with tenant deletion, got %+v", store.dropped)
	}
	if store.ensured[0].Namespace != "tenant-a" {
		t.Fatalf("expected explicit namespace, got %q", store.ensured[0].Namespace)
	}
}

func TestProcessPersistFailureStillNotifies(t *testing.T) {
	loader := &fakeLoader{doc: domain.Document{Pages: []domain.Page{{Number: 1, Content: "text"}}}}
	repo := &fakeStatusRepo{upsertErr: errors.New("db down")}
	notifier := &fakeNotifier{}
	pipeline := newTestPipeline(loader, &fakeVectorStore{}, repo, notifier, PipelineConfig{DefaultNamespace: "default"})

	status := pipeline.Process(context.Background(), domain.IngestionRequest{
		RequestID:    11,
		PreSignedURL: "u",
		FileName:     "f.txt",
		FileType:     domain.FileTypeTXT,
	})
	if status.State != domain.IngestionCompleted {
		t.Fatalf("expected completed despite persist failure, got %s", status.State)
	}
	if len(notifier.statuses) != 1 {
		t.Fatalf("expected callback delivered despite persist failure")
	}
}
