package domain

import "fmt"

// ContentType distinguishes chunks built from extracted text from chunks
// built from a vision-model transcript of an image.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentImage ContentType = "image"
)

// Segment is one parser output unit: a page, a slide, a sheet, a whole
// text body, or one image transcript. The chunker never merges text across
// segments, so positional metadata on a chunk is always exact.
type Segment struct {
	Text        string
	Page        int // 1-based, 0 when not applicable
	Slide       int // 1-based slide or sheet number, 0 when not applicable
	ImageIndex  int
	ContentType ContentType
}

// Chunk is the atomic unit of indexing and retrieval.
type Chunk struct {
	ID          string      `json:"id"`
	DocumentID  string      `json:"document_id"`
	Seq         int         `json:"seq"`
	SourceFile  string      `json:"source_file"`
	FileType    FileType    `json:"file_type"`
	Text        string      `json:"text"`
	Page        int         `json:"page,omitempty"`
	Slide       int         `json:"slide,omitempty"`
	ContentType ContentType `json:"content_type"`
}

// ChunkID derives the stable chunk identifier from document id and
// sequence number. Re-ingesting the same id overwrites in the index.
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s:%d", documentID, seq)
}
