package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

// parsePDF extracts text page by page so page metadata on chunks is exact.
func parsePDF(data []byte) ([]domain.Segment, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrParseFailed, "open pdf", err)
	}

	segments := make([]domain.Segment, 0, reader.NumPage())
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, domain.WrapError(domain.ErrParseFailed, fmt.Sprintf("extract pdf page %d", pageNum), err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text:        text,
			Page:        pageNum,
			ContentType: domain.ContentText,
		})
	}

	if len(segments) == 0 {
		return nil, domain.WrapError(domain.ErrParseFailed, "extract pdf", fmt.Errorf("no extractable text"))
	}
	return segments, nil
}
