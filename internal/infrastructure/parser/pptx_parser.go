package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// parsePPTX emits one text segment per non-empty slide in slide order,
// plus vision transcripts for pictures embedded on each slide.
func (p *Parser) parsePPTX(ctx context.Context, data []byte) ([]domain.Segment, error) {
	archive, err := openOOXML(data, "open pptx")
	if err != nil {
		return nil, err
	}

	var slideNumbers []int
	for _, file := range archive.File {
		if m := slidePartPattern.FindStringSubmatch(file.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slideNumbers = append(slideNumbers, n)
		}
	}
	if len(slideNumbers) == 0 {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse pptx", fmt.Errorf("no slides found"))
	}
	sort.Ints(slideNumbers)

	var segments []domain.Segment
	for _, slideNum := range slideNumbers {
		part, err := readArchiveFile(archive, fmt.Sprintf("ppt/slides/slide%d.xml", slideNum))
		if err != nil {
			return nil, domain.WrapError(domain.ErrParseFailed, "parse pptx", err)
		}
		runs, err := collectTextRuns(part, "t", "")
		if err != nil {
			return nil, domain.WrapError(domain.ErrParseFailed, fmt.Sprintf("parse slide %d", slideNum), err)
		}
		if text := strings.Join(runs, "\n"); strings.TrimSpace(text) != "" {
			segments = append(segments, domain.Segment{
				Text:        text,
				Slide:       slideNum,
				ContentType: domain.ContentText,
			})
		}

		for imageIndex, imagePart := range slideImageParts(archive, slideNum) {
			imageData, err := readArchiveFile(archive, imagePart)
			if err != nil {
				return nil, domain.WrapError(domain.ErrParseFailed, "read slide image", err)
			}
			imageSegments, err := p.imageSegments(ctx, imageData, slideNum, imageIndex, false)
			if err != nil {
				return nil, err
			}
			segments = append(segments, imageSegments...)
		}
	}

	if len(segments) == 0 {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse pptx", fmt.Errorf("no extractable content"))
	}
	return segments, nil
}

type relationships struct {
	Relationships []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// slideImageParts resolves a slide's image relationships to archive part
// names, in relationship order. A slide without a rels part has no images.
func slideImageParts(archive *zip.Reader, slideNum int) []string {
	relsPart, err := readArchiveFile(archive, fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", slideNum))
	if err != nil {
		return nil
	}
	var rels relationships
	if err := xml.Unmarshal(relsPart, &rels); err != nil {
		return nil
	}

	var parts []string
	for _, rel := range rels.Relationships {
		if !strings.HasSuffix(rel.Type, "/image") {
			continue
		}
		// Targets are relative to ppt/slides, e.g. "../media/image1.png".
		parts = append(parts, path.Clean(path.Join("ppt/slides", rel.Target)))
	}
	return parts
}
