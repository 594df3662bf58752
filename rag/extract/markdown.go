package extract

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"studybase/rag"
)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// fromMarkdown splits an optional leading front matter block from the body.
// When front matter is present its key-value pairs are serialized as a single
// JSON line prefixed to the body, so embeddings capture the metadata too.
func fromMarkdown(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", &rag.ExtractionError{Cause: errInvalidUTF8}
	}

	content := string(data)
	meta, body := splitFrontMatter(content)
	if len(meta) > 0 {
		line, err := json.Marshal(meta)
		if err != nil {
			return "", &rag.ExtractionError{Cause: err}
		}
		body = string(line) + "\n" + body
	}

	return strings.TrimSpace(body), nil
}

// splitFrontMatter parses a leading "---" delimited block of key: value
// lines. Content without front matter is returned unchanged.
func splitFrontMatter(content string) (map[string]string, string) {
	lines := strings.Split(content, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return nil, content
	}

	meta := make(map[string]string)
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "---" {
			return meta, strings.Join(lines[i+1:], "\n")
		}
		if idx := strings.Index(line, ":"); idx > 0 {
			key := strings.TrimSpace(line[:idx])
			value := strings.Trim(strings.TrimSpace(line[idx+1:]), `"`)
			meta[key] = value
		}
	}

	// Opening delimiter without a closing one: treat the whole file as body.
	return nil, content
}
