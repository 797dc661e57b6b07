package pinecone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/docchatlabs/docchat/internal/core/ports"
	"github.com/docchatlabs/docchat/internal/infrastructure/resilience"
)

// Client speaks the Pinecone serverless REST API. The control plane resolves
// index lifecycle and the data-plane host; vector traffic goes straight to
// that host. Namespaces are flat, so tenant flags are no-ops here.
type Client struct {
	controlPlaneURL string
	apiKey          string
	httpClient      *http.Client
	embedder        ports.Embedder
	exec            *resilience.Executor
	logger          *slog.Logger

	ensureMu     sync.Mutex
	ensuredIndex string
	host         string
}

func New(controlPlaneURL, apiKey string, embedder ports.Embedder, exec *resilience.Executor, logger *slog.Logger) *Client {
	return &Client{
		controlPlaneURL: strings.TrimRight(controlPlaneURL, "/"),
		apiKey:          apiKey,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		embedder:        embedder,
		exec:            exec,
		logger:          logger,
	}
}

type indexDescription struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// EnsureIndex validates or creates the index, then caches its data-plane
// host. A pre-existing index counts as success. Only one goroutine resolves
// at a time; later calls for the same index return from cache.
func (c *Client) EnsureIndex(ctx context.Context, cfg domain.IndexConfig, dropIfExists bool) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()

	if dropIfExists {
		if err := c.deleteIndex(ctx, cfg.IndexName); err != nil {
			return err
		}
		c.ensuredIndex = ""
		c.host = ""
	}
	if c.ensuredIndex == cfg.IndexName && c.host != "" {
		return nil
	}

	desc, err := c.describeIndex(ctx, cfg.IndexName)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		if err := c.createIndex(ctx, cfg); err != nil {
			return err
		}
		desc, err = c.awaitReady(ctx, cfg.IndexName)
		if err != nil {
			return err
		}
	}
	if desc.Host == "" {
		return domain.WrapError(domain.ErrVectorDBOperation, "pinecone.EnsureIndex", fmt.Errorf("index %q has no data plane host", cfg.IndexName))
	}

	c.ensuredIndex = cfg.IndexName
	c.host = desc.Host
	c.logger.Info("pinecone_index_ready", "index", cfg.IndexName, "host", desc.Host)
	return nil
}

func (c *Client) Upsert(ctx context.Context, chunks []domain.Chunk, target domain.IndexConfig) (domain.UpsertResult, error) {
	if len(chunks) == 0 {
		return domain.UpsertResult{Message: "no chunks to upsert"}, nil
	}
	host, err := c.resolveHost(ctx, target)
	if err != nil {
		return domain.UpsertResult{}, err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.UpsertResult{}, domain.WrapError(domain.ErrVectorDBOperation, "pinecone.Upsert", err)
	}
	if len(vectors) != len(chunks) {
		return domain.UpsertResult{}, domain.WrapError(domain.ErrVectorDBOperation, "pinecone.Upsert", fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	type vectorRecord struct {
		ID       string         `json:"id"`
		Values   []float32      `json:"values"`
		Metadata map[string]any `json:"metadata"`
	}
	records := make([]vectorRecord, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		id := pointID(target.Namespace, chunk.Metadata["file_name"], i)
		metadata := make(map[string]any, len(chunk.Metadata)+1)
		for k, v := range chunk.Metadata {
			metadata[k] = v
		}
		metadata["text"] = chunk.Text
		records = append(records, vectorRecord{ID: id, Values: vectors[i], Metadata: metadata})
		ids = append(ids, id)
	}

	payload := map[string]any{
		"vectors":   records,
		"namespace": target.Namespace,
	}
	var out struct {
		UpsertedCount int `json:"upsertedCount"`
	}
	err = c.exec.Do(ctx, "pinecone.upsert", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, dataURL(host)+"/vectors/upsert", payload, &out, "upsert")
	}, classifyPineconeError)
	if err != nil {
		return domain.UpsertResult{}, wrapPineconeError("pinecone.Upsert", err)
	}

	return domain.UpsertResult{
		Upserted:    out.UpsertedCount,
		DocumentIDs: ids,
		Message:     fmt.Sprintf("upserted %d vectors into namespace %q", out.UpsertedCount, target.Namespace),
	}, nil
}

func (c *Client) Query(ctx context.Context, text string, target domain.IndexConfig, k int, filter *domain.MetadataFilter) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, nil
	}
	host, err := c.resolveHost(ctx, target)
	if err != nil {
		return nil, err
	}

	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVectorDBOperation, "pinecone.Query", err)
	}

	payload := map[string]any{
		"vector":          vector,
		"topK":            k,
		"namespace":       target.Namespace,
		"includeMetadata": true,
	}
	if filter != nil {
		payload["filter"] = map[string]any{
			filter.Field: map[string]any{"$eq": filter.Value},
		}
	}

	var out struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	err = c.exec.Do(ctx, "pinecone.query", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, dataURL(host)+"/query", payload, &out, "query")
	}, classifyPineconeError)
	if err != nil {
		return nil, wrapPineconeError("pinecone.Query", err)
	}

	results := make([]domain.RetrievalResult, 0, len(out.Matches))
	for _, match := range out.Matches {
		metadata := make(map[string]string, len(match.Metadata))
		text := ""
		for key, value := range match.Metadata {
			s := fmt.Sprintf("%v", value)
			if key == "text" {
				text = s
				continue
			}
			metadata[key] = s
		}
		results = append(results, domain.RetrievalResult{
			Chunk: domain.Chunk{Text: text, Metadata: metadata},
			Score: clampScore(match.Score),
		})
	}
	return results, nil
}

// DropNamespace removes every vector in the namespace. deleteTenant has no
// extra meaning for a flat-namespace backend.
func (c *Client) DropNamespace(ctx context.Context, target domain.IndexConfig, deleteTenant bool) error {
	host, err := c.resolveHost(ctx, target)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"deleteAll": true,
		"namespace": target.Namespace,
	}
	var out struct{}
	err = c.exec.Do(ctx, "pinecone.drop_namespace", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, dataURL(host)+"/vectors/delete", payload, &out, "drop namespace")
	}, classifyPineconeError)
	if err != nil {
		// Deleting an absent namespace is already the desired end state.
		if isNotFound(err) {
			return nil
		}
		return wrapPineconeError("pinecone.DropNamespace", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) resolveHost(ctx context.Context, target domain.IndexConfig) (string, error) {
	c.ensureMu.Lock()
	if c.ensuredIndex == target.IndexName && c.host != "" {
		host := c.host
		c.ensureMu.Unlock()
		return host, nil
	}
	c.ensureMu.Unlock()

	if err := c.EnsureIndex(ctx, target, false); err != nil {
		return "", err
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	return c.host, nil
}

func (c *Client) describeIndex(ctx context.Context, name string) (indexDescription, error) {
	var desc indexDescription
	err := c.exec.Do(ctx, "pinecone.describe_index", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, c.controlPlaneURL+"/indexes/"+name, nil, &desc, "describe index")
	}, classifyPineconeError)
	if err != nil {
		return indexDescription{}, wrapPineconeError("pinecone.describeIndex", err)
	}
	return desc, nil
}

func (c *Client) createIndex(ctx context.Context, cfg domain.IndexConfig) error {
	metric := cfg.Metric
	if metric == "" {
		metric = "cosine"
	}
	payload := map[string]any{
		"name":      cfg.IndexName,
		"dimension": cfg.Dimension,
		"metric":    metric,
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  cfg.Cloud,
				"region": cfg.Region,
			},
		},
	}
	var out indexDescription
	err := c.exec.Do(ctx, "pinecone.create_index", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, c.controlPlaneURL+"/indexes", payload, &out, "create index")
	}, classifyPineconeError)
	if err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return nil
		}
		return wrapPineconeError("pinecone.createIndex", err)
	}
	return nil
}

func (c *Client) deleteIndex(ctx context.Context, name string) error {
	var out struct{}
	err := c.exec.Do(ctx, "pinecone.delete_index", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodDelete, c.controlPlaneURL+"/indexes/"+name, nil, &out, "delete index")
	}, classifyPineconeError)
	if err != nil && !isNotFound(err) {
		return wrapPineconeError("pinecone.deleteIndex", err)
	}
	return nil
}

func (c *Client) awaitReady(ctx context.Context, name string) (indexDescription, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for attempt := 0; attempt < 60; attempt++ {
		desc, err := c.describeIndex(ctx, name)
		if err == nil && desc.Status.Ready {
			return desc, nil
		}
		if err != nil && !isNotFound(err) {
			return indexDescription{}, err
		}

		select {
		case <-ctx.Done():
			return indexDescription{}, domain.WrapError(domain.ErrVectorDBConnection, "pinecone.awaitReady", ctx.Err())
		case <-ticker.C:
		}
	}
	return indexDescription{}, domain.WrapError(domain.ErrVectorDBConnection, "pinecone.awaitReady", fmt.Errorf("index %q not ready in time", name))
}

// pointID derives a stable id so re-ingesting the same file overwrites its
// previous vectors instead of appending duplicates.
func pointID(namespace, fileName string, index int) string {
	seed := namespace + "/" + fileName + "/" + strconv.Itoa(index)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

func dataURL(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + strings.TrimRight(host, "/")
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
