package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

func parseText(data []byte) ([]domain.Segment, error) {
	if !utf8.Valid(data) {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse text", fmt.Errorf("content is not valid utf-8"))
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, domain.WrapError(domain.ErrParseFailed, "parse text", fmt.Errorf("file is empty"))
	}
	return []domain.Segment{{
		Text:        text,
		ContentType: domain.ContentText,
	}}, nil
}
