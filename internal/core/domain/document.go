package domain

import "time"

type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeTXT  FileType = "txt"
	FileTypeDOCX FileType = "docx"
	FileTypeXLSX FileType = "xlsx"
)

func (t FileType) Valid() bool {
	switch t {
	case FileTypePDF, FileTypeTXT, FileTypeDOCX, FileTypeXLSX:
		return true
	default:
		return false
	}
}

// Page is one page/section of a loaded source document.
type Page struct {
	Number  int    `json:"number"`
	Content string `json:"content"`
}

// Document is the raw loaded content of one source file. Immutable once
// produced by the loader.
type Document struct {
	Pages            []Page   `json:"pages"`
	OriginalFileName string   `json:"original_file_name"`
	FileType         FileType `json:"file_type"`
}

// Chunk is a bounded text slice of a Document, the unit of embedding and
// storage.
type Chunk struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// IndexConfig identifies one backend target: index/collection plus the
// namespace or tenant inside it. Placement hints are backend-specific and
// each adapter reads only the fields it understands.
type IndexConfig struct {
	IndexName string `json:"index_name"`
	Namespace string `json:"namespace"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`

	// Flat-namespace placement (serverless cloud/region).
	Cloud  string `json:"cloud,omitempty"`
	Region string `json:"region,omitempty"`

	// Tenant-partitioned placement.
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

func (c IndexConfig) WithNamespace(namespace string) IndexConfig {
	c.Namespace = namespace
	return c
}

type UpsertResult struct {
	Upserted    int      `json:"upserted"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	Message     string   `json:"message,omitempty"`
}

type IngestionState string

const (
	IngestionPending   IngestionState = "PENDING"
	IngestionCompleted IngestionState = "COMPLETED"
	IngestionFailed    IngestionState = "FAILED"
)

// IngestionRequest is consumed exactly once by the ingestion pipeline.
type IngestionRequest struct {
	RequestID        int64    `json:"request_id"`
	PreSignedURL     string   `json:"pre_signed_url"`
	FileName         string   `json:"file_name"`
	OriginalFileName string   `json:"original_file_name"`
	FileType         FileType `json:"file_type"`
	Namespace        string   `json:"namespace,omitempty"`
	// Optional callback path for the external status sink.
	StatusCallbackPath string `json:"response_data_api_path,omitempty"`
}

type IngestionStatus struct {
	RequestID        int64          `json:"request_id"`
	FileName         string         `json:"file_name"`
	OriginalFileName string         `json:"original_file_name"`
	State            IngestionState `json:"status"`
	TotalPages       int            `json:"total_pages,omitempty"`
	ErrorDetail      string         `json:"error_detail,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (s IngestionStatus) Terminal() bool {
	return s.State == IngestionCompleted || s.State == IngestionFailed
}
