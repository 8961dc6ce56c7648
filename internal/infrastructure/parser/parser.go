package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lake2804/ChatPDF/internal/core/domain"
	"github.com/lake2804/ChatPDF/internal/core/ports"
)

const (
	ocrPrefix     = "[IMAGE OCR] "
	captionPrefix = "[IMAGE DESCRIPTION] "
)

// Parser dispatches an upload to the extractor for its format and turns
// image content into text segments via the vision model.
type Parser struct {
	vision ports.VisionModel
}

func New(vision ports.VisionModel) *Parser {
	return &Parser{vision: vision}
}

func (p *Parser) Parse(ctx context.Context, doc *domain.Document, data []byte) ([]domain.Segment, error) {
	switch doc.FileType {
	case domain.FileTypePDF:
		return parsePDF(data)
	case domain.FileTypeDOCX:
		return parseDOCX(data)
	case domain.FileTypePPTX:
		return p.parsePPTX(ctx, data)
	case domain.FileTypeXLSX:
		return parseXLSX(data)
	case domain.FileTypeText, domain.FileTypeMarkdown:
		return parseText(data)
	case domain.FileTypeImage:
		return p.parseImage(ctx, data)
	default:
		return nil, domain.WrapError(domain.ErrUnsupportedFormat, "parse", fmt.Errorf("no extractor for %q", doc.FileType))
	}
}

// imageSegments runs OCR and captioning over one image. required controls
// failure handling: a standalone image upload with no usable transcript is
// a parse failure, while an image embedded in a slide is skipped.
func (p *Parser) imageSegments(ctx context.Context, image []byte, slide, imageIndex int, required bool) ([]domain.Segment, error) {
	mimeType := http.DetectContentType(image)

	var out []domain.Segment
	ocrText, err := p.vision.OCR(ctx, image, mimeType)
	if err != nil {
		if required {
			return nil, fmt.Errorf("ocr image: %w", err)
		}
		slog.Warn("embedded_image_ocr_failed", "slide", slide, "image_index", imageIndex, "error", err)
	} else if ocrText != "" {
		out = append(out, domain.Segment{
			Text:        ocrPrefix + ocrText,
			Slide:       slide,
			ImageIndex:  imageIndex,
			ContentType: domain.ContentImage,
		})
	}

	caption, err := p.vision.Caption(ctx, image, mimeType)
	if err != nil {
		if required && len(out) == 0 {
			return nil, fmt.Errorf("caption image: %w", err)
		}
		slog.Warn("embedded_image_caption_failed", "slide", slide, "image_index", imageIndex, "error", err)
	} else if caption != "" {
		out = append(out, domain.Segment{
			Text:        captionPrefix + caption,
			Slide:       slide,
			ImageIndex:  imageIndex,
			ContentType: domain.ContentImage,
		})
	}

	if required && len(out) == 0 {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse image", fmt.Errorf("vision model produced no transcript"))
	}
	return out, nil
}

func (p *Parser) parseImage(ctx context.Context, data []byte) ([]domain.Segment, error) {
	segments, err := p.imageSegments(ctx, data, 0, 0, true)
	if err != nil {
		if domain.IsKind(err, domain.ErrParseFailed) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrParseFailed, "parse image", err)
	}
	return segments, nil
}
