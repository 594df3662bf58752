// Package chunk splits extracted text into overlapping fixed-size segments,
// the unit of embedding and retrieval.
package chunk

import (
	"strings"

	"studybase/rag"
)

// Split slices text into windows of size runes, each window starting
// size-overlap runes after the previous one. Text no longer than size yields
// a single chunk (or none when blank). Windows that are whitespace-only are
// dropped; callers assign dense indices from the returned order.
//
// Split is a pure function: identical inputs always yield identical chunks.
// Window positions are measured in runes so multi-byte characters are never
// split mid-sequence.
func Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, rag.Configurationf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, rag.Configurationf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, rag.Configurationf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}

	runes := []rune(text)
	if len(runes) <= size {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return []string{text}, nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := string(runes[start:end])
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, piece)
		}
	}

	return chunks, nil
}
