package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarlab/paperparse/internal/docmodel"
	"github.com/scholarlab/paperparse/internal/layout"
	"github.com/scholarlab/paperparse/internal/pdfsource"
	"github.com/scholarlab/paperparse/internal/pipeline"
	"github.com/scholarlab/paperparse/internal/store"
)

// newTestServer wires a server over a real store and a stopped runner, so
// submitted jobs stay queued and handler behavior is deterministic.
func newTestServer(t *testing.T, apiKey string) (*Server, *store.Store) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	runner := pipeline.NewRunner(
		pdfsource.New(1<<20, nil), nil, layout.NewDefault(), st,
		pipeline.RunnerConfig{WorkerCount: 1, MaxQueueSize: 8}, nil)

	srv := NewServer(runner, st, Config{
		DataDir:        dir,
		MaxUploadBytes: 1 << 20,
		APIKey:         apiKey,
	}, nil)
	return srv, st
}

func multipartPDF(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUploadAccepted(t *testing.T) {
	srv, st := newTestServer(t, "")

	body, contentType := multipartPDF(t, "file", "paper.pdf", []byte("%PDF-1.4 test"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		DocumentID uuid.UUID `json:"document_id"`
		Status     string    `json:"status"`
		PollURL    string    `json:"poll_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, store.DocPending, resp.Status)
	assert.Contains(t, resp.PollURL, resp.DocumentID.String())

	got, err := st.GetRecord(context.Background(), resp.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", got.Filename)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	srv, _ := newTestServer(t, "")

	body, contentType := multipartPDF(t, "file", "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadRequiresFileField(t *testing.T) {
	srv, _ := newTestServer(t, "")

	body, contentType := multipartPDF(t, "attachment", "paper.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPendingDocument(t *testing.T) {
	srv, st := newTestServer(t, "")

	doc, err := st.CreateDocument(context.Background(), "paper.pdf")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Document store.DocumentRecord `json:"document"`
		Result   *json.RawMessage     `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, store.DocPending, resp.Document.Status)
	assert.Nil(t, resp.Result, "no aggregate before completion")
}

func TestGetCompletedDocument(t *testing.T) {
	srv, st := newTestServer(t, "")
	ctx := context.Background()

	doc, err := st.CreateDocument(ctx, "paper.pdf")
	require.NoError(t, err)
	require.NoError(t, st.SaveResult(ctx, doc.ID, 3, 1024, &docmodel.StructuredDocument{
		Metadata: docmodel.Metadata{Title: "Stored Paper"},
		Sections: []docmodel.Section{{ID: uuid.New(), Title: "Intro", Level: 1}},
		Outcome:  docmodel.ExtractionOutcome{Method: "local_heuristic", Status: docmodel.StatusCompleted},
	}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result docmodel.StructuredDocument `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Stored Paper", resp.Result.Metadata.Title)
	require.Len(t, resp.Result.Sections, 1)
}

func TestGetUnknownDocument(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutcomeEndpoint(t *testing.T) {
	srv, st := newTestServer(t, "")
	ctx := context.Background()

	doc, err := st.CreateDocument(ctx, "paper.pdf")
	require.NoError(t, err)
	require.NoError(t, st.MarkFailed(ctx, doc.ID, docmodel.ExtractionOutcome{
		Status: docmodel.StatusFailed,
		Attempts: []docmodel.Attempt{
			{Method: "remote_structured", Error: "down"},
			{Method: "raw_text", Error: "empty"},
		},
	}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/"+doc.ID.String()+"/outcome", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status  string                      `json:"status"`
		Outcome docmodel.ExtractionOutcome  `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, store.DocFailed, resp.Status)
	require.Len(t, resp.Outcome.Attempts, 2)
}

func TestDeleteDocument(t *testing.T) {
	srv, st := newTestServer(t, "")

	doc, err := st.CreateDocument(context.Background(), "paper.pdf")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/"+doc.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays public.
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
