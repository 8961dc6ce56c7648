package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

// parseXLSX renders each sheet as tab-separated rows, one segment per
// non-empty sheet. The 1-based sheet position is recorded in the slide
// field so citations can point at a sheet the way they point at a slide.
func parseXLSX(data []byte) ([]domain.Segment, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrParseFailed, "open xlsx", err)
	}
	defer workbook.Close()

	var segments []domain.Segment
	for sheetIndex, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return nil, domain.WrapError(domain.ErrParseFailed, fmt.Sprintf("read sheet %q", sheet), err)
		}

		var b strings.Builder
		b.WriteString(sheet)
		b.WriteString("\n")
		empty := true
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			empty = false
			b.WriteString(line)
			b.WriteString("\n")
		}
		if empty {
			continue
		}
		segments = append(segments, domain.Segment{
			Text:        strings.TrimSpace(b.String()),
			Slide:       sheetIndex + 1,
			ContentType: domain.ContentText,
		})
	}

	if len(segments) == 0 {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse xlsx", fmt.Errorf("no extractable cells"))
	}
	return segments, nil
}
