package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeOpenAI answers the chat completion and embeddings endpoints with
// canned payloads and records the last prompt seen.
func fakeOpenAI(t *testing.T, completion string) (*httptest.Server, *string) {
	t.Helper()
	lastPrompt := new(string)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			var req struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
				*lastPrompt = req.Messages[len(req.Messages)-1].Content
			}
			json.NewEncoder(w).Encode(map[string]any{
				"id":     "cmpl-1",
				"object": "chat.completion",
				"choices": []map[string]any{
					{
						"index":         0,
						"message":       map[string]any{"role": "assistant", "content": completion},
						"finish_reason": "stop",
					},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/embeddings"):
			var req struct {
				Input []string `json:"input"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			data := make([]map[string]any, len(req.Input))
			for i := range req.Input {
				data[i] = map[string]any{
					"object":    "embedding",
					"embedding": []float32{0.1, 0.2, 0.3},
					"index":     i,
				}
			}
			json.NewEncoder(w).Encode(map[string]any{
				"object": "list",
				"data":   data,
				"model":  "test-embed",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return server, lastPrompt
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := New(baseURL, "test-key", "test-chat", "test-embed")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

func TestGeneratorReturnsTrimmedCompletion(t *testing.T) {
	server, _ := fakeOpenAI(t, "  the answer  ")
	defer server.Close()

	gen := NewGenerator(newTestClient(t, server.URL))
	out, err := gen.Generate(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "the answer" {
		t.Fatalf("expected trimmed completion, got %q", out)
	}
}

func TestEmbedderReturnsVectorPerText(t *testing.T) {
	server, _ := fakeOpenAI(t, "")
	defer server.Close()

	emb := NewEmbedder(newTestClient(t, server.URL))
	vectors, err := emb.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	if len(vectors[0]) != 3 {
		t.Fatalf("expected 3-dim vector, got %d", len(vectors[0]))
	}

	query, err := emb.EmbedQuery(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(query) != 3 {
		t.Fatalf("expected 3-dim query vector, got %d", len(query))
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	server, _ := fakeOpenAI(t, "")
	defer server.Close()

	emb := NewEmbedder(newTestClient(t, server.URL))
	vectors, err := emb.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors != nil {
		t.Fatalf("expected nil vectors for empty input, got %v", vectors)
	}
}

func TestSummarizerSendsContentInPrompt(t *testing.T) {
	server, lastPrompt := fakeOpenAI(t, "a short digest")
	defer server.Close()

	sum := NewSummarizer(newTestClient(t, server.URL))
	out, err := sum.Summarize(context.Background(), "very long web search output")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "a short digest" {
		t.Fatalf("unexpected summary %q", out)
	}
	if !strings.Contains(*lastPrompt, "very long web search output") {
		t.Fatalf("expected content in prompt, got %q", *lastPrompt)
	}
}
