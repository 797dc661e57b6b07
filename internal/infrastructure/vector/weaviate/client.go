package weaviate

import (
	"context"
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

// chunkProperties are the schema fields every stored chunk carries.
var chunkProperties = []string{"text", "file_name", "original_file_name", "file_type", "process_type", "title"}

// Client speaks the Weaviate REST and GraphQL APIs. Namespaces map onto
// multi-tenancy: one tenant per namespace inside a shared class.
type Client struct {
	baseURL    string
	httpClient *http.Client
	embedder   ports.Embedder
	exec       *resilience.Executor
	logger     *slog.Logger

	ensureMu       sync.Mutex
	readyChecked   bool
	ensuredClasses map[string]bool
	ensuredTenants map[string]bool
}

func New(baseURL string, embedder ports.Embedder, exec *resilience.Executor, logger *slog.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		embedder:       embedder,
		exec:           exec,
		logger:         logger,
		ensuredClasses: make(map[string]bool),
		ensuredTenants: make(map[string]bool),
	}
}

// EnsureIndex validates or creates the class and the namespace tenant. A
// pre-existing class or tenant counts as success.
func (c *Client) EnsureIndex(ctx context.Context, cfg domain.IndexConfig, dropIfExists bool) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()

	if err := c.checkReadyLocked(ctx); err != nil {
		return err
	}

	if dropIfExists {
		if err := c.deleteClassLocked(ctx, cfg.IndexName); err != nil {
			return err
		}
	}
	if err := c.ensureClassLocked(ctx, cfg.IndexName); err != nil {
		return err
	}
	if cfg.Namespace != "" {
		if err := c.ensureTenantLocked(ctx, cfg.IndexName, cfg.Namespace); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Upsert(ctx context.Context, chunks []domain.Chunk, target domain.IndexConfig) (domain.UpsertResult, error) {
	if len(chunks) == 0 {
		return domain.UpsertResult{Message: "no chunks to upsert"}, nil
	}
	if err := c.EnsureIndex(ctx, target, false); err != nil {
		return domain.UpsertResult{}, err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.UpsertResult{}, domain.WrapError(domain.ErrVectorDBOperation, "weaviate.Upsert", err)
	}
	if len(vectors) != len(chunks) {
		return domain.UpsertResult{}, domain.WrapError(domain.ErrVectorDBOperation, "weaviate.Upsert", fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	type object struct {
		Class      string         `json:"class"`
		ID         string         `json:"id"`
		Tenant     string         `json:"tenant,omitempty"`
		Vector     []float32      `json:"vector"`
		Properties map[string]any `json:"properties"`
	}
	objects := make([]object, 0, len(chunks))
	ids := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		id := objectID(target.Namespace, chunk.Metadata["file_name"], i)
		properties := make(map[string]any, len(chunk.Metadata)+1)
		for k, v := range chunk.Metadata {
			properties[k] = v
		}
		properties["text"] = chunk.Text
		objects = append(objects, object{
			Class:      target.IndexName,
			ID:         id,
			Tenant:     target.Namespace,
			Vector:     vectors[i],
			Properties: properties,
		})
		ids = append(ids, id)
	}

	var out []struct {
		Result struct {
			Errors *struct {
				Error []struct {
					Message string `json:"message"`
				} `json:"error"`
			} `json:"errors"`
		} `json:"result"`
	}
	err = c.exec.Do(ctx, "weaviate.batch_upsert", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/batch/objects", map[string]any{"objects": objects}, &out, "batch upsert")
	}, classifyWeaviateError)
	if err != nil {
		return domain.UpsertResult{}, wrapWeaviateError("weaviate.Upsert", err)
	}
	for _, item := range out {
		if item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			return domain.UpsertResult{}, domain.WrapError(domain.ErrVectorDBOperation, "weaviate.Upsert", fmt.Errorf("batch item rejected: %s", item.Result.Errors.Error[0].Message))
		}
	}

	return domain.UpsertResult{
		Upserted:    len(objects),
		DocumentIDs: ids,
		Message:     fmt.Sprintf("upserted %d objects into tenant %q", len(objects), target.Namespace),
	}, nil
}

func (c *Client) Query(ctx context.Context, text string, target domain.IndexConfig, k int, filter *domain.MetadataFilter) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := c.EnsureIndex(ctx, target, false); err != nil {
		return nil, err
	}

	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, domain.WrapError(domain.ErrVectorDBOperation, "weaviate.Query", err)
	}

	query := buildNearVectorQuery(target.IndexName, target.Namespace, vector, k, filter)
	var out struct {
		Data struct {
			Get map[string][]map[string]any `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	err = c.exec.Do(ctx, "weaviate.query", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/graphql", map[string]any{"query": query}, &out, "graphql query")
	}, classifyWeaviateError)
	if err != nil {
		return nil, wrapWeaviateError("weaviate.Query", err)
	}
	if len(out.Errors) > 0 {
		return nil, domain.WrapError(domain.ErrVectorDBOperation, "weaviate.Query", fmt.Errorf("graphql error: %s", out.Errors[0].Message))
	}

	rows := out.Data.Get[target.IndexName]
	results := make([]domain.RetrievalResult, 0, len(rows))
	for _, row := range rows {
		chunk := domain.Chunk{Metadata: make(map[string]string)}
		score := 0.0
		for key, value := range row {
			switch key {
			case "text":
				chunk.Text = fmt.Sprintf("%v", value)
			case "_additional":
				if extra, ok := value.(map[string]any); ok {
					if certainty, ok := extra["certainty"].(float64); ok {
						score = certainty
					}
				}
			default:
				if value != nil {
					chunk.Metadata[key] = fmt.Sprintf("%v", value)
				}
			}
		}
		results = append(results, domain.RetrievalResult{Chunk: chunk, Score: clampScore(score)})
	}
	return results, nil
}

// DropNamespace removes the tenant entirely or only the objects inside it,
// depending on deleteTenant.
func (c *Client) DropNamespace(ctx context.Context, target domain.IndexConfig, deleteTenant bool) error {
	if target.Namespace == "" {
		return domain.WrapError(domain.ErrInvalidInput, "weaviate.DropNamespace", fmt.Errorf("namespace is required"))
	}

	if deleteTenant {
		err := c.exec.Do(ctx, "weaviate.delete_tenant", func(ctx context.Context) error {
			return c.doJSON(ctx, http.MethodDelete, c.baseURL+"/v1/schema/"+target.IndexName+"/tenants", []string{target.Namespace}, nil, "delete tenant")
		}, classifyWeaviateError)
		if err != nil && !isNotFound(err) {
			return wrapWeaviateError("weaviate.DropNamespace", err)
		}
		c.ensureMu.Lock()
		delete(c.ensuredTenants, target.IndexName+"/"+target.Namespace)
		c.ensureMu.Unlock()
		return nil
	}

	payload := map[string]any{
		"match": map[string]any{
			"class": target.IndexName,
			"where": map[string]any{
				"path":      []string{"id"},
				"operator":  "Like",
				"valueText": "*",
			},
		},
	}
	err := c.exec.Do(ctx, "weaviate.delete_tenant_data", func(ctx context.Context) error {
		url := c.baseURL + "/v1/batch/objects?tenant=" + target.Namespace
		return c.doJSON(ctx, http.MethodDelete, url, payload, nil, "delete tenant data")
	}, classifyWeaviateError)
	if err != nil && !isNotFound(err) {
		return wrapWeaviateError("weaviate.DropNamespace", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) checkReadyLocked(ctx context.Context) error {
	if c.readyChecked {
		return nil
	}
	err := c.exec.Do(ctx, "weaviate.ready", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/.well-known/ready", nil, nil, "readiness check")
	}, classifyWeaviateError)
	if err != nil {
		return domain.WrapError(domain.ErrVectorDBConnection, "weaviate.checkReady", err)
	}
	c.readyChecked = true
	return nil
}

func (c *Client) ensureClassLocked(ctx context.Context, class string) error {
	if c.ensuredClasses[class] {
		return nil
	}

	err := c.exec.Do(ctx, "weaviate.get_class", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/schema/"+class, nil, nil, "get class")
	}, classifyWeaviateError)
	if err == nil {
		c.ensuredClasses[class] = true
		return nil
	}
	if !isNotFound(err) {
		return wrapWeaviateError("weaviate.ensureClass", err)
	}

	properties := make([]map[string]any, 0, len(chunkProperties))
	for _, name := range chunkProperties {
		properties = append(properties, map[string]any{
			"name":     name,
			"dataType": []string{"text"},
		})
	}
	payload := map[string]any{
		"class":      class,
		"vectorizer": "none",
		"multiTenancyConfig": map[string]any{
			"enabled": true,
		},
		"properties": properties,
	}
	err = c.exec.Do(ctx, "weaviate.create_class", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/schema", payload, nil, "create class")
	}, classifyWeaviateError)
	if err != nil && !isConflict(err) {
		return wrapWeaviateError("weaviate.ensureClass", err)
	}

	c.ensuredClasses[class] = true
	c.logger.Info("weaviate_class_ready", "class", class)
	return nil
}

func (c *Client) ensureTenantLocked(ctx context.Context, class, tenant string) error {
	key := class + "/" + tenant
	if c.ensuredTenants[key] {
		return nil
	}

	var existing []struct {
		Name string `json:"name"`
	}
	err := c.exec.Do(ctx, "weaviate.list_tenants", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, c.baseURL+"/v1/schema/"+class+"/tenants", nil, &existing, "list tenants")
	}, classifyWeaviateError)
	if err != nil {
		return wrapWeaviateError("weaviate.ensureTenant", err)
	}
	for _, t := range existing {
		if t.Name == tenant {
			c.ensuredTenants[key] = true
			return nil
		}
	}

	payload := []map[string]any{{"name": tenant}}
	err = c.exec.Do(ctx, "weaviate.create_tenant", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, c.baseURL+"/v1/schema/"+class+"/tenants", payload, nil, "create tenant")
	}, classifyWeaviateError)
	if err != nil && !isConflict(err) {
		return wrapWeaviateError("weaviate.ensureTenant", err)
	}

	c.ensuredTenants[key] = true
	c.logger.Info("weaviate_tenant_ready", "class", class, "tenant", tenant)
	return nil
}

func (c *Client) deleteClassLocked(ctx context.Context, class string) error {
	err := c.exec.Do(ctx, "weaviate.delete_class", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodDelete, c.baseURL+"/v1/schema/"+class, nil, nil, "delete class")
	}, classifyWeaviateError)
	if err != nil && !isNotFound(err) {
		return wrapWeaviateError("weaviate.deleteClass", err)
	}
	delete(c.ensuredClasses, class)
	for key := range c.ensuredTenants {
		if strings.HasPrefix(key, class+"/") {
			delete(c.ensuredTenants, key)
		}
	}
	return nil
}

// objectID derives a stable id so re-ingesting the same file overwrites its
// previous objects instead of appending duplicates.
func objectID(namespace, fileName string, index int) string {
	seed := namespace + "/" + fileName + "/" + strconv.Itoa(index)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}

func buildNearVectorQuery(class, tenant string, vector []float32, k int, filter *domain.MetadataFilter) string {
	var values strings.Builder
	for i, v := range vector {
		if i > 0 {
			values.WriteString(", ")
		}
		values.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}

	var sb strings.Builder
	sb.WriteString("{ Get { ")
	sb.WriteString(class)
	sb.WriteString("(")
	if tenant != "" {
		sb.WriteString(fmt.Sprintf("tenant: %q, ", tenant))
	}
	sb.WriteString(fmt.Sprintf("limit: %d, nearVector: { vector: [%s] }", k, values.String()))
	if filter != nil {
		sb.WriteString(fmt.Sprintf(", where: { path: [%q], operator: Equal, valueText: %q }", filter.Field, filter.Value))
	}
	sb.WriteString(") { ")
	sb.WriteString(strings.Join(chunkProperties, " "))
	sb.WriteString(" _additional { certainty } } } }")
	return sb.String()
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
