package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveOpenRemoveRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := storage.Save(ctx, "doc.txt", strings.NewReader("payload")); err != nil {
		t.Fatalf("save: %v", err)
	}

	reader, err := storage.Open(ctx, "doc.txt")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	raw, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "payload" {
		t.Fatalf("unexpected content %q", raw)
	}

	if err := storage.Remove(ctx, "doc.txt"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := storage.Open(ctx, "doc.txt"); err == nil {
		t.Fatalf("expected open to fail after remove")
	}
	// Removing twice is not an error.
	if err := storage.Remove(ctx, "doc.txt"); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}

func TestPathFlattensTraversal(t *testing.T) {
	base := t.TempDir()
	storage, err := New(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := storage.Path("../../etc/passwd")
	if strings.Contains(path, "..") {
		t.Fatalf("expected traversal to be stripped, got %q", path)
	}
	if !strings.HasPrefix(path, base) {
		t.Fatalf("expected path under base %q, got %q", base, path)
	}
}
