package domain

import "time"

// IngestStatus tracks a document through the ingestion state machine.
// Terminal states are parse_failed, embed_failed and indexed; retries start
// over from uploaded with a fresh document id.
type IngestStatus string

const (
	StatusUploaded    IngestStatus = "uploaded"
	StatusParsing     IngestStatus = "parsing"
	StatusParseFailed IngestStatus = "parse_failed"
	StatusChunked     IngestStatus = "chunked"
	StatusEmbedding   IngestStatus = "embedding"
	StatusEmbedFailed IngestStatus = "embed_failed"
	StatusIndexed     IngestStatus = "indexed"
)

// FileType is the declared media kind of an upload, derived from its
// extension before any content is read.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeDOCX     FileType = "docx"
	FileTypePPTX     FileType = "pptx"
	FileTypeXLSX     FileType = "xlsx"
	FileTypeText     FileType = "txt"
	FileTypeMarkdown FileType = "markdown"
	FileTypeImage    FileType = "image"
)

// Document is one uploaded file. It exists for the duration of ingestion;
// after indexing only its chunks persist in the vector store.
type Document struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	FileType    FileType     `json:"file_type"`
	Size        int64        `json:"size"`
	StoragePath string       `json:"storage_path"`
	Status      IngestStatus `json:"status"`
	Error       string       `json:"error,omitempty"`
	UploadedAt  time.Time    `json:"uploaded_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
