package domain

// RetrievedChunk pairs an indexed chunk with its similarity score.
type RetrievedChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Citation references a chunk that grounded part of an answer.
type Citation struct {
	Index       int         `json:"index"`
	SourceFile  string      `json:"source_file"`
	Page        int         `json:"page,omitempty"`
	Slide       int         `json:"slide,omitempty"`
	ContentType ContentType `json:"content_type"`
	Preview     string      `json:"preview"`
}

// Answer is generated text plus the citations that grounded it, in
// original retrieval order.
type Answer struct {
	Text        string     `json:"answer"`
	Sources     []Citation `json:"sources"`
	SourceCount int        `json:"source_count"`
}

// IngestResult reports a completed (or partially completed) ingestion.
type IngestResult struct {
	Document      *Document `json:"document"`
	ChunksTotal   int       `json:"chunks_total"`
	ChunksIndexed int       `json:"chunks_indexed"`
}

const previewChars = 200

// CitationFor builds the citation payload for a retrieved chunk at the
// given 1-based index.
func CitationFor(index int, chunk RetrievedChunk) Citation {
	preview := chunk.Text
	if len([]rune(preview)) > previewChars {
		preview = string([]rune(preview)[:previewChars]) + "..."
	}
	return Citation{
		Index:       index,
		SourceFile:  chunk.SourceFile,
		Page:        chunk.Page,
		Slide:       chunk.Slide,
		ContentType: chunk.ContentType,
		Preview:     preview,
	}
}
