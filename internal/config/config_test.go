package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("RETRIEVAL_TOP_K", "")
	t.Setenv("RETRIEVAL_MIN_SCORE", "")
	t.Setenv("RETRIEVAL_OVERFETCH", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RetrievalTopK)
	}
	if cfg.RetrievalMinScore != 0.5 {
		t.Fatalf("expected default min score 0.5, got %v", cfg.RetrievalMinScore)
	}
	if cfg.RetrievalOverfetch != 2 {
		t.Fatalf("expected default overfetch 2, got %d", cfg.RetrievalOverfetch)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Fatalf("expected default chunking 1000/200, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("VECTOR_BACKEND", "weaviate")
	t.Setenv("RETRIEVAL_MIN_SCORE", "0.72")
	t.Setenv("SUMMARY_WORD_THRESHOLD", "180")
	t.Setenv("INGEST_DROP_NAMESPACE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.VectorBackend != "weaviate" {
		t.Fatalf("expected vector backend override, got %q", cfg.VectorBackend)
	}
	if cfg.RetrievalMinScore != 0.72 {
		t.Fatalf("expected min score 0.72, got %v", cfg.RetrievalMinScore)
	}
	if cfg.SummaryWordThreshold != 180 {
		t.Fatalf("expected summary threshold 180, got %d", cfg.SummaryWordThreshold)
	}
	if !cfg.IngestDropNamespace {
		t.Fatalf("expected drop namespace true")
	}
}

func TestLoadYAMLOverlayWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("api_port: \"9999\"\npinecone:\n  index_name: from-file\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("API_PORT", "8080")
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIPort != "9999" {
		t.Fatalf("expected file value to win, got %q", cfg.APIPort)
	}
	if cfg.Pinecone.IndexName != "from-file" {
		t.Fatalf("expected pinecone index from file, got %q", cfg.Pinecone.IndexName)
	}
}

func TestLoadBadConfigFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
