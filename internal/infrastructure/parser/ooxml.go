package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

// OOXML documents (docx, pptx) are zip archives of XML parts. Text lives
// in run elements (w:t for WordprocessingML, a:t for DrawingML); the
// decoder matches on local names so namespace prefixes do not matter.

func openOOXML(data []byte, operation string) (*zip.Reader, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrParseFailed, operation, err)
	}
	return archive, nil
}

func readArchiveFile(archive *zip.Reader, name string) ([]byte, error) {
	for _, file := range archive.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		raw, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// collectTextRuns walks one XML part and gathers the character data of
// every element with the given local name. Elements with the break local
// name (w:p paragraph ends for docx, empty for pptx) append a separator.
func collectTextRuns(part []byte, runLocal, breakLocal string) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(part))

	var pieces []string
	var current strings.Builder
	depth := 0

	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			pieces = append(pieces, text)
		}
		current.Reset()
	}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == runLocal {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == runLocal && depth > 0 {
				depth--
			}
			if breakLocal != "" && t.Name.Local == breakLocal {
				flush()
			}
		case xml.CharData:
			if depth > 0 {
				current.Write(t)
			}
		}
	}
	flush()
	return pieces, nil
}

func parseDOCX(data []byte) ([]domain.Segment, error) {
	archive, err := openOOXML(data, "open docx")
	if err != nil {
		return nil, err
	}

	part, err := readArchiveFile(archive, "word/document.xml")
	if err != nil {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse docx", err)
	}

	paragraphs, err := collectTextRuns(part, "t", "p")
	if err != nil {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse docx", err)
	}
	if len(paragraphs) == 0 {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse docx", fmt.Errorf("no extractable text"))
	}

	// The whole body is a single source unit; paragraph structure is kept
	// through blank lines.
	return []domain.Segment{{
		Text:        strings.Join(paragraphs, "\n\n"),
		ContentType: domain.ContentText,
	}}, nil
}
