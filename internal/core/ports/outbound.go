package ports

import (
	"context"
	"io"

	"github.com/docchatlabs/docchat/internal/core/domain"
)

// DocumentLoader resolves a source reference (local path, file:// or http(s)
// URL) into page/section documents.
type DocumentLoader interface {
	Load(ctx context.Context, source string, fileType domain.FileType) (domain.Document, error)
}

// Chunker splits text into bounded overlapping chunks.
type Chunker interface {
	Split(text string) ([]string, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the backend-neutral contract both vector database clients
// conform to. Scores returned by Query are normalized to [0,1].
type VectorStore interface {
	EnsureIndex(ctx context.Context, cfg domain.IndexConfig, dropIfExists bool) error
	Upsert(ctx context.Context, chunks []domain.Chunk, target domain.IndexConfig) (domain.UpsertResult, error)
	Query(ctx context.Context, text string, target domain.IndexConfig, k int, filter *domain.MetadataFilter) ([]domain.RetrievalResult, error)
	DropNamespace(ctx context.Context, target domain.IndexConfig, deleteTenant bool) error
	Close() error
}

// Generator produces answer text from a prompt, optionally token by token.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Stream(ctx context.Context, prompt string, onToken func(ctx context.Context, token string) error) error
}

// Summarizer condenses long tool output before answering.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// WebSearcher queries an external search service and returns an attributed
// plain-text digest.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// StatusRepository persists ingestion statuses keyed by request id.
type StatusRepository interface {
	Upsert(ctx context.Context, status domain.IngestionStatus) error
	GetByRequestID(ctx context.Context, requestID int64) (domain.IngestionStatus, error)
}

// StatusNotifier delivers terminal statuses to the caller's callback.
// Delivery failures never change the ingestion outcome.
type StatusNotifier interface {
	Notify(ctx context.Context, callbackPath string, status domain.IngestionStatus)
}

// IngestionQueue publishes and consumes ingestion requests.
type IngestionQueue interface {
	Publish(ctx context.Context, req domain.IngestionRequest) error
	Subscribe(ctx context.Context, handler func(context.Context, domain.IngestionRequest) error) error
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Path(key string) string
	Remove(ctx context.Context, key string) error
}
