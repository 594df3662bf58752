// Package extract converts raw file bytes into normalized plain text ready
// for chunking and embedding.
package extract

import (
	"strings"
	"unicode/utf8"

	"studybase/rag"
)

// Text extracts normalized UTF-8 text from raw file bytes according to the
// declared file type. The type set is closed: an unrecognized tag is a
// configuration problem, not an extraction failure.
func Text(data []byte, ft rag.FileType) (string, error) {
	switch ft {
	case rag.FileTypePDF:
		return fromPDF(data)
	case rag.FileTypeMarkdown:
		return fromMarkdown(data)
	case rag.FileTypeText:
		return fromText(data)
	default:
		return "", rag.Configurationf("unsupported file type: %s", ft)
	}
}

// fromText decodes plain text as UTF-8 and trims surrounding whitespace.
func fromText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", &rag.ExtractionError{Cause: errInvalidUTF8}
	}
	return strings.TrimSpace(string(data)), nil
}
