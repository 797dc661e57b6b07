package loader

import (
	"archive/zip"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/xuri/excelize/v2"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadRejectsUnknownFileType(t *testing.T) {
	l := New(testLogger())
	_, err := l.Load(context.Background(), "somewhere.bin", domain.FileType("bin"))
	if err == nil {
		t.Fatalf("expected error for unsupported file type")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
}

func TestLoadTextLocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("  line one\nline two  "), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	l := New(testLogger())
	doc, err := l.Load(context.Background(), path, domain.FileTypeTXT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Content != "line one\nline two" {
		t.Fatalf("unexpected content: %q", doc.Pages[0].Content)
	}
	if doc.FileType != domain.FileTypeTXT {
		t.Fatalf("expected txt file type, got %q", doc.FileType)
	}
}

func TestLoadTextFileScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("content"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	l := New(testLogger())
	doc, err := l.Load(context.Background(), "file://"+path, domain.FileTypeTXT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 || doc.Pages[0].Content != "content" {
		t.Fatalf("unexpected pages: %+v", doc.Pages)
	}
}

func TestLoadDownloadsHTTPSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote body"))
	}))
	defer server.Close()

	l := New(testLogger())
	doc, err := l.Load(context.Background(), server.URL+"/doc.txt", domain.FileTypeTXT)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 || doc.Pages[0].Content != "remote body" {
		t.Fatalf("unexpected pages: %+v", doc.Pages)
	}
}

func TestLoadDownloadFailureIsLoadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	l := New(testLogger())
	_, err := l.Load(context.Background(), server.URL+"/doc.txt", domain.FileTypeTXT)
	if err == nil {
		t.Fatalf("expected error for forbidden download")
	}
	if !domain.IsKind(err, domain.ErrLoad) {
		t.Fatalf("expected load error kind, got %v", err)
	}
}

func TestLoadDOCXExtractsParagraphs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	writeDocxFixture(t, path, []string{"First paragraph.", "Second paragraph."})

	l := New(testLogger())
	doc, err := l.Load(context.Background(), path, domain.FileTypeDOCX)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected single page, got %d", len(doc.Pages))
	}
	content := doc.Pages[0].Content
	if !strings.Contains(content, "First paragraph.") || !strings.Contains(content, "Second paragraph.") {
		t.Fatalf("missing paragraph text: %q", content)
	}
	if !strings.Contains(content, "First paragraph.\nSecond paragraph.") {
		t.Fatalf("expected paragraph break between paragraphs: %q", content)
	}
}

func TestLoadXLSXOnePagePerSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	writeXlsxFixture(t, path)

	l := New(testLogger())
	doc, err := l.Load(context.Background(), path, domain.FileTypeXLSX)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if !strings.Contains(doc.Pages[0].Content, "alpha\tbeta") {
		t.Fatalf("expected tab-joined cells, got %q", doc.Pages[0].Content)
	}
	if !strings.HasPrefix(doc.Pages[1].Content, "Extra") {
		t.Fatalf("expected sheet name heading, got %q", doc.Pages[1].Content)
	}
}

func writeDocxFixture(t *testing.T, path string, paragraphs []string) {
	t.Helper()

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>`)
		body.WriteString(p)
		body.WriteString(`</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx fixture: %v", err)
	}
	defer file.Close()

	zw := zip.NewWriter(file)
	entry, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := entry.Write([]byte(body.String())); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func writeXlsxFixture(t *testing.T, path string) {
	t.Helper()

	f := excelize.NewFile()
	if err := f.SetSheetRow("Sheet1", "A1", &[]any{"alpha", "beta"}); err != nil {
		t.Fatalf("set row: %v", err)
	}
	if _, err := f.NewSheet("Extra"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := f.SetSheetRow("Extra", "A1", &[]any{"gamma"}); err != nil {
		t.Fatalf("set row: %v", err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save xlsx: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close xlsx: %v", err)
	}
}
