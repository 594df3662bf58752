package rag

import "time"

// FileType identifies the declared type of an uploaded file. Dispatch is by
// this tag only; content is never sniffed.
type FileType string

const (
	FileTypePDF      FileType = "pdf"
	FileTypeText     FileType = "txt"
	FileTypeMarkdown FileType = "md"
)

// String returns the string representation of the FileType.
func (ft FileType) String() string {
	return string(ft)
}

// DocumentStatus tracks the ingestion lifecycle of a document.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document is the metadata record for one uploaded file. ChunkCount is
// authoritative only once Status is completed.
type Document struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Filename     string         `json:"filename"`
	FileType     FileType       `json:"file_type"`
	FileSize     int64          `json:"file_size"`
	ChunkSize    int            `json:"chunk_size"`
	ChunkOverlap int            `json:"chunk_overlap"`
	ChunkCount   int            `json:"chunks_count"`
	Status       DocumentStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Chunk is one segment of a document's extracted text. Indices are dense and
// zero-based for a completed document.
type Chunk struct {
	DocumentID string    `json:"document_id"`
	Index      int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// IndexEntry is the retrieval-oriented projection of a chunk: its vector, raw
// text, and attribution metadata. Entries are also created independently for
// question/answer seed data, in which case DocumentID is empty.
type IndexEntry struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id,omitempty"`
	Subject    string    `json:"subject"`
	TopicPath  []string  `json:"topic_path"`
	Content    string    `json:"content"`
	Vector     []float32 `json:"vector,omitempty"`
}

// SearchResult pairs an index entry with its cosine similarity score.
type SearchResult struct {
	Entry IndexEntry
	Score float64
}

// Source is the attribution attached to an answer: subject tag, topic path,
// and a trimmed snippet of the retrieved text.
type Source struct {
	Subject   string   `json:"subject"`
	TopicPath []string `json:"topic_path"`
	Content   string   `json:"content"`
}
