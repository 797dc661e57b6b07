package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/docchatlabs/docchat/internal/core/domain"
)

// Loader resolves a source reference into page/section documents. Local
// paths and file:// URLs are read in place; http(s) URLs are downloaded to a
// temporary file first.
type Loader struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func New(logger *slog.Logger) *Loader {
	return &Loader{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

func (l *Loader) Load(ctx context.Context, source string, fileType domain.FileType) (domain.Document, error) {
	if !fileType.Valid() {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "loader.Load", fmt.Errorf("unsupported file type %q", fileType))
	}

	path, cleanup, err := l.resolve(ctx, source)
	if err != nil {
		return domain.Document{}, domain.WrapError(domain.ErrLoad, "loader.Load", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	var pages []domain.Page
	switch fileType {
	case domain.FileTypeTXT:
		pages, err = loadText(path)
	case domain.FileTypePDF:
		pages, err = loadPDF(path)
	case domain.FileTypeDOCX:
		pages, err = loadDOCX(path)
	case domain.FileTypeXLSX:
		pages, err = loadXLSX(path)
	}
	if err != nil {
		return domain.Document{}, domain.WrapError(domain.ErrLoad, "loader.Load", err)
	}

	l.logger.Debug("document_loaded", "source", source, "file_type", string(fileType), "pages", len(pages))
	return domain.Document{Pages: pages, FileType: fileType}, nil
}

// resolve turns the source reference into a readable local path. The cleanup
// callback, when non-nil, removes a downloaded temporary file.
func (l *Loader) resolve(ctx context.Context, source string) (string, func(), error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.download(ctx, source)
	case strings.HasPrefix(source, "file://"):
		return strings.TrimPrefix(source, "file://"), nil, nil
	case source == "":
		return "", nil, errors.New("empty source reference")
	default:
		return source, nil, nil
	}
}

func (l *Loader) download(ctx context.Context, url string) (string, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "docchat-download-*")
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}

	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil {
			l.logger.Warn("temp_file_cleanup_failed", "path", tmp.Name(), "error", err)
		}
	}
	return tmp.Name(), cleanup, nil
}

func loadText(path string) ([]domain.Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		return nil, errors.New("text file is not valid utf-8")
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, nil
	}
	return []domain.Page{{Number: 1, Content: text}}, nil
}
