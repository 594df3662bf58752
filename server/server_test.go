package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybase/auth"
	"studybase/config"
	"studybase/rag"
	"studybase/rag/answer"
	"studybase/rag/embed"
	"studybase/rag/index"
	"studybase/rag/ingest"
	"studybase/rag/store"
)

const testDim = 32

type fakeChatModel struct {
	reply string
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(f.reply, nil), nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.Config{
		MaxFileSize: 1 << 20,
		CORSOrigin:  "*",
		SearchTopK:  5,
	}
	st := store.NewMemoryStore()
	idx := index.NewMemory()
	engine := embed.NewEngine(func(ctx context.Context) (embedding.Embedder, error) {
		return &embed.Deterministic{Dim: testDim}, nil
	}, testDim)
	verifier, err := auth.NewStaticVerifier("alice-token:alice,bob-token:bob,admin-token:root:admin")
	require.NoError(t, err)

	ingestor := ingest.New(st, idx, engine, ingest.Config{MaxFileSize: cfg.MaxFileSize})
	answerer := answer.New(engine, idx, &fakeChatModel{reply: "Atoms are the basic units of matter."}, cfg.SearchTopK)

	srv := httptest.NewServer(New(cfg, ingestor, answerer, st, idx, engine, verifier).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func uploadBody(t *testing.T, field string, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func doRequest(t *testing.T, method, url, token string, body *bytes.Buffer, contentType string) *http.Response {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

type uploadResponse struct {
	ID       string       `json:"id"`
	Message  string       `json:"message"`
	Document rag.Document `json:"document"`
}

func uploadFile(t *testing.T, srv *httptest.Server, token, filename, content string) rag.Document {
	t.Helper()
	body, ct := uploadBody(t, "file", map[string]string{filename: content}, nil)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/documents/upload", token, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out uploadResponse
	decodeBody(t, resp, &out)
	return out.Document
}

func TestMissingTokenRejected(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/documents")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/documents", "bogus-token", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUploadResponseEnvelope(t *testing.T) {
	srv := newTestServer(t)

	body, ct := uploadBody(t, "file", map[string]string{"hello.txt": "Hello World"}, nil)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/documents/upload", "alice-token", body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out uploadResponse
	decodeBody(t, resp, &out)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, out.Document.ID, out.ID)
	assert.NotEmpty(t, out.Message)
	assert.Equal(t, rag.StatusCompleted, out.Document.Status)
}

func TestUploadAndFetchDocument(t *testing.T) {
	srv := newTestServer(t)

	doc := uploadFile(t, srv, "alice-token", "hello.txt", "Hello World")
	assert.Equal(t, rag.StatusCompleted, doc.Status)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Equal(t, "alice", doc.UserID)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/documents/"+doc.ID, "alice-token", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got rag.Document
	decodeBody(t, resp, &got)
	assert.Equal(t, doc.ID, got.ID)

	var list struct {
		Documents []rag.Document `json:"documents"`
		Total     int            `json:"total"`
	}
	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/documents", "alice-token", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &list)
	assert.Equal(t, 1, list.Total)
}

func TestUploadChunkParamsRespected(t *testing.T) {
	srv := newTestServer(t)

	body, ct := uploadBody(t, "file", map[string]string{"long.txt": strings.Repeat("a", 600)}, map[string]string{
		"chunk_size":    "500",
		"chunk_overlap": "50",
	})
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/documents/upload", "alice-token", body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out uploadResponse
	decodeBody(t, resp, &out)
	assert.Equal(t, 2, out.Document.ChunkCount)
	assert.Equal(t, 500, out.Document.ChunkSize)
	assert.Equal(t, 50, out.Document.ChunkOverlap)
}

func TestUploadRejections(t *testing.T) {
	srv := newTestServer(t)

	body, ct := uploadBody(t, "file", map[string]string{"notes.docx": "x"}, nil)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/documents/upload", "alice-token", body, ct)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body, ct = uploadBody(t, "file", map[string]string{"big.txt": strings.Repeat("a", (1<<20)+1)}, nil)
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/documents/upload", "alice-token", body, ct)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	body, ct = uploadBody(t, "file", map[string]string{"a.txt": "x"}, map[string]string{"chunk_size": "abc"})
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/documents/upload", "alice-token", body, ct)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBatchUploadPartialFailure(t *testing.T) {
	srv := newTestServer(t)

	body, ct := uploadBody(t, "files", map[string]string{
		"one.txt": "first file",
		"two.exe": "second file",
	}, nil)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/documents/upload/batch", "alice-token", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Succeeded   []rag.Document       `json:"succeeded"`
		Failed      []ingest.UploadError `json:"failed"`
		Total       int                  `json:"total"`
		FailedCount int                  `json:"failed_count"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.FailedCount)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, "two.exe", out.Failed[0].Filename)
}

func TestOwnershipMapping(t *testing.T) {
	srv := newTestServer(t)

	doc := uploadFile(t, srv, "alice-token", "secret.txt", "private notes")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/documents/"+doc.ID, "bob-token", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/documents/doc_missing", "bob-token", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChunksOmitEmbeddings(t *testing.T) {
	srv := newTestServer(t)

	doc := uploadFile(t, srv, "alice-token", "hello.txt", "Hello World")

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/documents/"+doc.ID+"/chunks", "alice-token", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		DocumentID string           `json:"document_id"`
		Chunks     []map[string]any `json:"chunks"`
		Total      int              `json:"total"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, doc.ID, out.DocumentID)
	require.Equal(t, 1, out.Total)
	assert.Equal(t, "Hello World", out.Chunks[0]["content"])
	assert.NotContains(t, out.Chunks[0], "embedding")
}

func TestDeleteDocument(t *testing.T) {
	srv := newTestServer(t)

	doc := uploadFile(t, srv, "alice-token", "hello.txt", "Hello World")

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/documents/"+doc.ID, "alice-token", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/documents/"+doc.ID, "alice-token", nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthCheckUnauthenticated(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/documents/health/check")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	decodeBody(t, resp, &out)
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, "ready", out["embedding_model"])
}

func TestChatAnswersWithSources(t *testing.T) {
	srv := newTestServer(t)

	uploadFile(t, srv, "alice-token", "atoms.txt", "Atoms are the basic units of matter and consist of protons, neutrons, and electrons.")

	payload := bytes.NewBufferString(`{"question": "What are atoms made of?"}`)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/chat", "alice-token", payload, "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Answer  string       `json:"answer"`
		Sources []rag.Source `json:"sources"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, "Atoms are the basic units of matter.", out.Answer)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "atoms.txt", out.Sources[0].Subject)
}

func TestChatRequiresQuestion(t *testing.T) {
	srv := newTestServer(t)

	payload := bytes.NewBufferString(`{"question": "  "}`)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/chat", "alice-token", payload, "application/json")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChatSeedAdminOnly(t *testing.T) {
	srv := newTestServer(t)

	payload := `{"entries": [{"subject": "Chemistry", "topic_path": ["Matter", "Atoms"], "content": "Atoms consist of protons, neutrons, and electrons."}]}`

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/chat/seed", "alice-token", bytes.NewBufferString(payload), "application/json")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/chat/seed", "admin-token", bytes.NewBufferString(payload), "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Indexed int `json:"indexed"`
	}
	decodeBody(t, resp, &out)
	assert.Equal(t, 1, out.Indexed)
}
