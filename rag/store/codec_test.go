package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybase/rag"
)

func TestVectorCodecRoundTrip(t *testing.T) {
	vector := []float32{0.1, -2.5, 3.75, 0}
	decoded, err := DecodeVector(EncodeVector(vector))
	require.NoError(t, err)
	assert.Equal(t, vector, decoded)
}

func TestVectorCodecEmpty(t *testing.T) {
	decoded, err := DecodeVector(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestVectorCodecRejectsBadVersion(t *testing.T) {
	blob := EncodeVector([]float32{1, 2, 3})
	blob[0] = 99
	_, err := DecodeVector(blob)
	assert.Error(t, err)
}

func TestVectorCodecRejectsTruncatedBlob(t *testing.T) {
	blob := EncodeVector([]float32{1, 2, 3})
	_, err := DecodeVector(blob[:len(blob)-2])
	assert.Error(t, err)
}

func TestVectorCodecDetectsDimensionMismatch(t *testing.T) {
	// A blob whose header claims more values than the body holds is the shape
	// a corpus-wide dimension mismatch takes at read time.
	blob := EncodeVector([]float32{1, 2, 3, 4})
	short := append([]byte{}, blob[:5]...)
	short = append(short, blob[5:13]...)
	_, err := DecodeVector(short)
	assert.Error(t, err)
}

func TestDocumentCodecRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := rag.Document{
		ID:           "doc_0123456789abcdef",
		UserID:       "user-1",
		Filename:     "notes.md",
		FileType:     rag.FileTypeMarkdown,
		FileSize:     2048,
		ChunkSize:    500,
		ChunkOverlap: 50,
		ChunkCount:   4,
		Status:       rag.StatusCompleted,
		CreatedAt:    now,
		UpdatedAt:    now.Add(time.Second),
	}

	fields := stringify(encodeDocument(doc))
	decoded, err := decodeDocument(fields)
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestChunkCodecRoundTrip(t *testing.T) {
	chunk := rag.Chunk{
		DocumentID: "doc_1",
		Index:      3,
		Content:    "some extracted text",
		Embedding:  []float32{0.25, 0.5, -1},
	}

	fields := stringify(encodeChunk(chunk))
	decoded, err := decodeChunk(fields)
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
}
