package domain

import (
	"path/filepath"
	"strings"
)

// DetectFileType resolves an upload's media kind from its filename
// extension. The set of formats is closed; anything else is rejected here,
// before any content is read.
func DetectFileType(filename string) (FileType, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return FileTypePDF, nil
	case ".docx":
		return FileTypeDOCX, nil
	case ".pptx":
		return FileTypePPTX, nil
	case ".xlsx":
		return FileTypeXLSX, nil
	case ".txt":
		return FileTypeText, nil
	case ".md", ".markdown":
		return FileTypeMarkdown, nil
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return FileTypeImage, nil
	default:
		return "", WrapError(ErrUnsupportedFormat, "detect format", errExtension(ext))
	}
}

type errExtension string

func (e errExtension) Error() string {
	if e == "" {
		return "file has no extension"
	}
	return "extension " + string(e) + " is not supported"
}
