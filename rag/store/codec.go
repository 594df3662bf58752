package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"studybase/rag"
)

// Hash field names for document and chunk records. The typed structs in the
// rag package are serialized to flat string fields only here, at the storage
// boundary.
const (
	docFieldID           = "id"
	docFieldUserID       = "user_id"
	docFieldFilename     = "filename"
	docFieldFileType     = "file_type"
	docFieldFileSize     = "file_size"
	docFieldChunkSize    = "chunk_size"
	docFieldChunkOverlap = "chunk_overlap"
	docFieldChunkCount   = "chunks_count"
	docFieldStatus       = "status"
	docFieldCreatedAt    = "created_at"
	docFieldUpdatedAt    = "updated_at"
	docFieldError        = "error_message"

	chunkFieldDocumentID = "document_id"
	chunkFieldIndex      = "chunk_index"
	chunkFieldContent    = "content"
	chunkFieldEmbedding  = "embedding"
)

// vectorEncodingVersion tags the embedding blob layout so a corpus written
// with a different layout fails loudly at read time.
const vectorEncodingVersion = 1

// EncodeVector serializes an embedding as a versioned, length-prefixed array
// of little-endian float32 values: 1 version byte, a uint32 element count,
// then the values.
func EncodeVector(vector []float32) []byte {
	buf := make([]byte, 1+4+4*len(vector))
	buf[0] = vectorEncodingVersion
	binary.LittleEndian.PutUint32(buf[1:], uint32(len(vector)))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[5+4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes an embedding blob, validating version and length
// so dimension mismatches surface here rather than as silent shape errors
// downstream.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < 5 {
		return nil, fmt.Errorf("embedding blob too short: %d bytes", len(data))
	}
	if data[0] != vectorEncodingVersion {
		return nil, fmt.Errorf("unsupported embedding encoding version %d", data[0])
	}

	count := binary.LittleEndian.Uint32(data[1:])
	if uint32(len(data)-5) != count*4 {
		return nil, fmt.Errorf("embedding blob length mismatch: header says %d values, body holds %d bytes", count, len(data)-5)
	}

	vector := make([]float32, count)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[5+4*i:]))
	}
	return vector, nil
}

// encodeDocument flattens a document record into hash fields.
func encodeDocument(doc rag.Document) map[string]interface{} {
	return map[string]interface{}{
		docFieldID:           doc.ID,
		docFieldUserID:       doc.UserID,
		docFieldFilename:     doc.Filename,
		docFieldFileType:     doc.FileType.String(),
		docFieldFileSize:     strconv.FormatInt(doc.FileSize, 10),
		docFieldChunkSize:    strconv.Itoa(doc.ChunkSize),
		docFieldChunkOverlap: strconv.Itoa(doc.ChunkOverlap),
		docFieldChunkCount:   strconv.Itoa(doc.ChunkCount),
		docFieldStatus:       string(doc.Status),
		docFieldCreatedAt:    doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		docFieldUpdatedAt:    doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		docFieldError:        doc.ErrorMessage,
	}
}

// decodeDocument parses hash fields back into a typed record. Numeric and
// enum fields are parsed once here; business logic never re-parses strings.
func decodeDocument(fields map[string]string) (rag.Document, error) {
	doc := rag.Document{
		ID:           fields[docFieldID],
		UserID:       fields[docFieldUserID],
		Filename:     fields[docFieldFilename],
		FileType:     rag.FileType(fields[docFieldFileType]),
		Status:       rag.DocumentStatus(fields[docFieldStatus]),
		ErrorMessage: fields[docFieldError],
	}

	var err error
	if doc.FileSize, err = strconv.ParseInt(fields[docFieldFileSize], 10, 64); err != nil {
		return rag.Document{}, fmt.Errorf("bad file_size %q: %w", fields[docFieldFileSize], err)
	}
	if doc.ChunkSize, err = strconv.Atoi(fields[docFieldChunkSize]); err != nil {
		return rag.Document{}, fmt.Errorf("bad chunk_size %q: %w", fields[docFieldChunkSize], err)
	}
	if doc.ChunkOverlap, err = strconv.Atoi(fields[docFieldChunkOverlap]); err != nil {
		return rag.Document{}, fmt.Errorf("bad chunk_overlap %q: %w", fields[docFieldChunkOverlap], err)
	}
	if doc.ChunkCount, err = strconv.Atoi(fields[docFieldChunkCount]); err != nil {
		return rag.Document{}, fmt.Errorf("bad chunks_count %q: %w", fields[docFieldChunkCount], err)
	}
	if doc.CreatedAt, err = parseTime(fields[docFieldCreatedAt]); err != nil {
		return rag.Document{}, fmt.Errorf("bad created_at %q: %w", fields[docFieldCreatedAt], err)
	}
	if doc.UpdatedAt, err = parseTime(fields[docFieldUpdatedAt]); err != nil {
		return rag.Document{}, fmt.Errorf("bad updated_at %q: %w", fields[docFieldUpdatedAt], err)
	}

	return doc, nil
}

// encodeChunk flattens a chunk into hash fields, embedding included.
func encodeChunk(chunk rag.Chunk) map[string]interface{} {
	fields := map[string]interface{}{
		chunkFieldDocumentID: chunk.DocumentID,
		chunkFieldIndex:      strconv.Itoa(chunk.Index),
		chunkFieldContent:    chunk.Content,
	}
	if len(chunk.Embedding) > 0 {
		fields[chunkFieldEmbedding] = EncodeVector(chunk.Embedding)
	}
	return fields
}

// decodeChunk parses chunk hash fields.
func decodeChunk(fields map[string]string) (rag.Chunk, error) {
	chunk := rag.Chunk{
		DocumentID: fields[chunkFieldDocumentID],
		Content:    fields[chunkFieldContent],
	}

	var err error
	if chunk.Index, err = strconv.Atoi(fields[chunkFieldIndex]); err != nil {
		return rag.Chunk{}, fmt.Errorf("bad chunk_index %q: %w", fields[chunkFieldIndex], err)
	}
	if chunk.Embedding, err = DecodeVector([]byte(fields[chunkFieldEmbedding])); err != nil {
		return rag.Chunk{}, err
	}

	return chunk, nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
