// Package ingest drives a document through extract, chunk, embed, and
// persist, maintaining the pending → processing → completed/failed lifecycle.
package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"studybase/rag"
	"studybase/rag/chunk"
	"studybase/rag/embed"
	"studybase/rag/extract"
	"studybase/rag/index"
	"studybase/rag/store"
)

// Config carries the validation limits and chunking defaults.
type Config struct {
	MaxFileSize         int64
	DefaultChunkSize    int
	DefaultChunkOverlap int
}

// Orchestrator owns document status writes. All ingestion, lookup, and
// deletion paths go through it.
type Orchestrator struct {
	store  store.Store
	index  index.Index
	engine *embed.Engine
	cfg    Config
}

// New creates an orchestrator over the given store, index, and embedding
// engine.
func New(st store.Store, idx index.Index, engine *embed.Engine, cfg Config) *Orchestrator {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 << 20
	}
	if cfg.DefaultChunkSize <= 0 {
		cfg.DefaultChunkSize = 500
	}
	if cfg.DefaultChunkOverlap < 0 {
		cfg.DefaultChunkOverlap = 50
	}
	return &Orchestrator{store: st, index: idx, engine: engine, cfg: cfg}
}

// Request is one file to ingest.
type Request struct {
	UserID       string
	Filename     string
	Content      []byte
	ChunkSize    int
	ChunkOverlap int
}

// UploadError names a file that failed during batch ingestion.
type UploadError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Ingest runs the full pipeline for one file: validate, create the pending
// record, then extract, chunk, embed, and persist. Any mid-pipeline error
// marks the document failed with the cause recorded, then resurfaces.
func (o *Orchestrator) Ingest(ctx context.Context, req Request) (rag.Document, error) {
	fileType, chunkSize, chunkOverlap, err := o.validate(req)
	if err != nil {
		return rag.Document{}, err
	}

	now := time.Now().UTC()
	doc := rag.Document{
		ID:           newDocumentID(),
		UserID:       req.UserID,
		Filename:     req.Filename,
		FileType:     fileType,
		FileSize:     int64(len(req.Content)),
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Status:       rag.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.store.Create(ctx, doc); err != nil {
		return rag.Document{}, err
	}

	if err := o.store.UpdateStatus(ctx, doc.ID, store.StatusUpdate{Status: rag.StatusProcessing}); err != nil {
		return rag.Document{}, err
	}

	if err := o.process(ctx, doc, req.Content); err != nil {
		return rag.Document{}, o.fail(ctx, doc.ID, err)
	}

	final, err := o.store.Get(ctx, doc.ID)
	if err != nil {
		return rag.Document{}, err
	}
	return final, nil
}

// process runs extract → chunk → embed → persist for an already-created
// document. Chunk persistence is one batch call, so a failure before that
// point leaves zero chunks referencing the document.
func (o *Orchestrator) process(ctx context.Context, doc rag.Document, content []byte) error {
	text, err := extract.Text(content, doc.FileType)
	if err != nil {
		return err
	}

	pieces, err := chunk.Split(text, doc.ChunkSize, doc.ChunkOverlap)
	if err != nil {
		return err
	}

	if len(pieces) > 0 {
		vectors, err := o.engine.Embed(ctx, pieces)
		if err != nil {
			return err
		}

		chunks := make([]rag.Chunk, len(pieces))
		entries := make([]rag.IndexEntry, len(pieces))
		for i, piece := range pieces {
			chunks[i] = rag.Chunk{
				DocumentID: doc.ID,
				Index:      i,
				Content:    piece,
				Embedding:  vectors[i],
			}
			entries[i] = rag.IndexEntry{
				ID:         fmt.Sprintf("%s:%d", doc.ID, i),
				DocumentID: doc.ID,
				Subject:    doc.Filename,
				Content:    piece,
				Vector:     vectors[i],
			}
		}

		if err := o.store.SaveChunks(ctx, doc.ID, chunks); err != nil {
			return err
		}
		if err := o.index.Add(ctx, entries); err != nil {
			return err
		}
	}

	count := len(pieces)
	return o.store.UpdateStatus(ctx, doc.ID, store.StatusUpdate{
		Status:     rag.StatusCompleted,
		ChunkCount: &count,
	})
}

// fail records the failed status with the triggering error, then returns the
// original error. If even the status write fails, that storage error wins.
func (o *Orchestrator) fail(ctx context.Context, docID string, cause error) error {
	log.Printf("ingest: document %s failed: %v", docID, cause)
	if err := o.store.UpdateStatus(ctx, docID, store.StatusUpdate{
		Status:       rag.StatusFailed,
		ErrorMessage: cause.Error(),
	}); err != nil {
		return err
	}
	return cause
}

// IngestBatch runs the full pipeline for each file independently: one file's
// failure never aborts the others.
func (o *Orchestrator) IngestBatch(ctx context.Context, userID string, files []Request) ([]rag.Document, []UploadError) {
	var succeeded []rag.Document
	var failed []UploadError
	for _, req := range files {
		req.UserID = userID
		doc, err := o.Ingest(ctx, req)
		if err != nil {
			name := req.Filename
			if name == "" {
				name = "unknown"
			}
			failed = append(failed, UploadError{Filename: name, Error: err.Error()})
			continue
		}
		succeeded = append(succeeded, doc)
	}
	return succeeded, failed
}

// Get returns a document after the ownership check: unknown id is not-found,
// someone else's id is forbidden. The two are never conflated.
func (o *Orchestrator) Get(ctx context.Context, id, userID string) (rag.Document, error) {
	doc, err := o.store.Get(ctx, id)
	if err != nil {
		return rag.Document{}, err
	}
	if doc.UserID != userID {
		return rag.Document{}, rag.ErrForbidden
	}
	return doc, nil
}

// Chunks returns a document's chunks, owner-only.
func (o *Orchestrator) Chunks(ctx context.Context, id, userID string) ([]rag.Chunk, error) {
	if _, err := o.Get(ctx, id, userID); err != nil {
		return nil, err
	}
	return o.store.Chunks(ctx, id)
}

// List returns all documents owned by a user, most recent first.
func (o *Orchestrator) List(ctx context.Context, userID string) ([]rag.Document, error) {
	return o.store.ListByUser(ctx, userID)
}

// Delete removes a document, its chunks, and its index entries as one logical
// unit, owner-only.
func (o *Orchestrator) Delete(ctx context.Context, id, userID string) error {
	if _, err := o.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := o.index.DeleteByDocument(ctx, id); err != nil {
		return err
	}
	return o.store.Delete(ctx, id, userID)
}

// validate rejects a request before any state is created.
func (o *Orchestrator) validate(req Request) (rag.FileType, int, int, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return "", 0, 0, rag.Validationf("filename is required")
	}
	if int64(len(req.Content)) > o.cfg.MaxFileSize {
		return "", 0, 0, &rag.ValidationError{
			Msg:      fmt.Sprintf("file size exceeds maximum allowed size of %d bytes", o.cfg.MaxFileSize),
			TooLarge: true,
		}
	}

	fileType, err := fileTypeFromFilename(req.Filename)
	if err != nil {
		return "", 0, 0, err
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = o.cfg.DefaultChunkSize
	}
	chunkOverlap := req.ChunkOverlap
	if chunkOverlap < 0 {
		chunkOverlap = o.cfg.DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		return "", 0, 0, rag.Validationf("chunk overlap (%d) must be smaller than chunk size (%d)", chunkOverlap, chunkSize)
	}

	return fileType, chunkSize, chunkOverlap, nil
}

// fileTypeFromFilename maps a filename extension onto the closed file type
// set. Anything outside {pdf, txt, md} is rejected up front.
func fileTypeFromFilename(filename string) (rag.FileType, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "pdf":
		return rag.FileTypePDF, nil
	case "txt":
		return rag.FileTypeText, nil
	case "md":
		return rag.FileTypeMarkdown, nil
	default:
		return "", rag.Validationf("invalid file type %q, allowed types: pdf, txt, md", ext)
	}
}

// newDocumentID generates an identifier in the form doc_<16 hex chars>.
func newDocumentID() string {
	u := uuid.New()
	return "doc_" + hex.EncodeToString(u[:])[:16]
}
