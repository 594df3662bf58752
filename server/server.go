// Package server exposes the ingestion and answering pipelines over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"studybase/auth"
	"studybase/config"
	"studybase/rag"
	"studybase/rag/answer"
	"studybase/rag/embed"
	"studybase/rag/index"
	"studybase/rag/ingest"
	"studybase/rag/store"
)

type Server struct {
	cfg      config.Config
	ingestor *ingest.Orchestrator
	answerer *answer.Answerer
	store    store.Store
	index    index.Index
	engine   *embed.Engine
	verifier auth.Verifier
}

func New(cfg config.Config, ingestor *ingest.Orchestrator, answerer *answer.Answerer, st store.Store, idx index.Index, engine *embed.Engine, verifier auth.Verifier) *Server {
	return &Server{
		cfg:      cfg,
		ingestor: ingestor,
		answerer: answerer,
		store:    st,
		index:    idx,
		engine:   engine,
		verifier: verifier,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/documents", s.withAuth(s.handleListDocuments))
	mux.HandleFunc("/api/v1/documents/", s.handleDocumentsScoped)
	mux.HandleFunc("/api/v1/chat", s.withAuth(s.handleChat))
	mux.HandleFunc("/api/v1/chat/seed", s.withAuth(s.handleChatSeed))
	return s.withCORS(mux)
}

// handleDocumentsScoped dispatches everything under /api/v1/documents/:
// upload, upload/batch, health/check, and the per-document routes.
func (s *Server) handleDocumentsScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/documents/"), "/")
	parts := strings.Split(rest, "/")

	// Health stays unauthenticated so probes work without credentials.
	if rest == "health/check" {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleHealth(w, r)
		return
	}

	id, err := s.authenticate(r)
	if err != nil {
		writeErr(w, http.StatusUnauthorized, err)
		return
	}

	switch {
	case rest == "upload":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleUpload(w, r, id)
	case rest == "upload/batch":
		if r.Method != http.MethodPost {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleUploadBatch(w, r, id)
	case len(parts) == 1 && parts[0] != "":
		s.handleDocument(w, r, id, parts[0])
	case len(parts) == 2 && parts[1] == "chunks":
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		s.handleChunks(w, r, id, parts[0])
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	req, err := s.uploadRequest(r, id.UserID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	doc, err := s.ingestor.Ingest(r.Context(), req)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       doc.ID,
		"message":  "document uploaded and processed successfully",
		"document": doc,
	})
}

func (s *Server) handleUploadBatch(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := r.ParseMultipartForm(s.cfg.MaxFileSize + (1 << 20)); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}

	chunkSize, chunkOverlap, err := chunkParams(r)
	if err != nil {
		writeDomainErr(w, err)
		return
	}

	var requests []ingest.Request
	for _, fh := range headers {
		content, err := readUpload(fh)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		requests = append(requests, ingest.Request{
			Filename:     fh.Filename,
			Content:      content,
			ChunkSize:    chunkSize,
			ChunkOverlap: chunkOverlap,
		})
	}

	succeeded, failed := s.ingestor.IngestBatch(r.Context(), id.UserID, requests)
	if succeeded == nil {
		succeeded = []rag.Document{}
	}
	if failed == nil {
		failed = []ingest.UploadError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"succeeded":    succeeded,
		"failed":       failed,
		"total":        len(requests),
		"failed_count": len(failed),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	docs, err := s.ingestor.List(r.Context(), id.UserID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if docs == nil {
		docs = []rag.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "total": len(docs)})
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request, id auth.Identity, docID string) {
	switch r.Method {
	case http.MethodGet:
		doc, err := s.ingestor.Get(r.Context(), docID, id.UserID)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := s.ingestor.Delete(r.Context(), docID, id.UserID); err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "document deleted successfully"})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request, id auth.Identity, docID string) {
	chunks, err := s.ingestor.Chunks(r.Context(), docID, id.UserID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	// Embeddings are storage detail, not API payload.
	views := make([]rag.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = nil
		views[i] = c
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": docID,
		"chunks":      views,
		"total":       len(views),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]string{"status": "healthy", "redis": "connected", "vector_index": "connected", "embedding_model": "ready"}
	code := http.StatusOK

	if err := s.store.Ping(ctx); err != nil {
		status["redis"] = "error: " + err.Error()
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := s.index.Ping(ctx); err != nil {
		status["vector_index"] = "error: " + err.Error()
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := s.engine.Ready(ctx); err != nil {
		status["embedding_model"] = "error: " + err.Error()
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	var req struct {
		Question string        `json:"question"`
		History  []answer.Turn `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("question is required"))
		return
	}

	text, sources, err := s.answerer.Answer(r.Context(), req.Question, req.History)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	if sources == nil {
		sources = []rag.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"answer": text, "sources": sources})
}

func (s *Server) handleChatSeed(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if id.Role != auth.RoleAdmin {
		writeErr(w, http.StatusForbidden, rag.ErrForbidden)
		return
	}

	var req struct {
		Entries []answer.SeedEntry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if len(req.Entries) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("entries are required"))
		return
	}
	for _, e := range req.Entries {
		if strings.TrimSpace(e.Content) == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("entry content is required"))
			return
		}
	}

	n, err := s.answerer.Seed(r.Context(), req.Entries)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexed": n})
}

// uploadRequest reads the single-file multipart form: a "file" part plus
// optional chunk_size and chunk_overlap fields.
func (s *Server) uploadRequest(r *http.Request, userID string) (ingest.Request, error) {
	if err := r.ParseMultipartForm(s.cfg.MaxFileSize + (1 << 20)); err != nil {
		return ingest.Request{}, rag.Validationf("parse multipart: %v", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return ingest.Request{}, rag.Validationf("file is required")
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return ingest.Request{}, rag.Validationf("read upload: %v", err)
	}

	chunkSize, chunkOverlap, err := chunkParams(r)
	if err != nil {
		return ingest.Request{}, err
	}

	return ingest.Request{
		UserID:       userID,
		Filename:     header.Filename,
		Content:      content,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}, nil
}

// chunkParams reads the optional chunk_size and chunk_overlap form fields.
// Absent fields come back as zero and negative one so the orchestrator applies
// its defaults; malformed values are rejected here.
func chunkParams(r *http.Request) (int, int, error) {
	chunkSize := 0
	if v := r.FormValue("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, rag.Validationf("chunk_size must be an integer")
		}
		chunkSize = n
	}
	chunkOverlap := -1
	if v := r.FormValue("chunk_overlap"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, rag.Validationf("chunk_overlap must be an integer")
		}
		chunkOverlap = n
	}
	return chunkSize, chunkOverlap, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// authenticate resolves the bearer token on a request.
func (s *Server) authenticate(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	return s.verifier.Verify(strings.TrimSpace(token))
}

type authedHandler func(w http.ResponseWriter, r *http.Request, id auth.Identity)

func (s *Server) withAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.authenticate(r)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r, id)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeDomainErr maps the pipeline error taxonomy onto HTTP status codes.
func writeDomainErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError

	var vErr *rag.ValidationError
	var cfgErr *rag.ConfigurationError
	var exErr *rag.ExtractionError
	var muErr *rag.ModelUnavailableError
	switch {
	case errors.As(err, &vErr):
		code = http.StatusBadRequest
		if vErr.TooLarge {
			code = http.StatusRequestEntityTooLarge
		}
	case errors.As(err, &cfgErr), errors.As(err, &exErr):
		code = http.StatusBadRequest
	case errors.Is(err, rag.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, rag.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthorized):
		code = http.StatusUnauthorized
	case errors.As(err, &muErr):
		code = http.StatusServiceUnavailable
	}

	if code == http.StatusInternalServerError {
		log.Printf("server: internal error: %v", err)
	}
	writeErr(w, code, err)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
