package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scholarlab/paperparse/internal/pipeline"
	"github.com/scholarlab/paperparse/internal/store"
)

// handleUpload accepts a PDF, registers it, and queues extraction.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	rec, err := s.st.CreateDocument(r.Context(), filename)
	if err != nil {
		jsonError(w, "failed to register document", http.StatusInternalServerError)
		return
	}

	path := s.spoolPath(rec.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.log.Error("spool write failed", "path", path, "error", err)
		jsonError(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	if err := s.runner.Submit(pipeline.Job{DocID: rec.ID, Path: path}); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"document_id": rec.ID,
		"status":      rec.Status,
		"poll_url":    fmt.Sprintf("/api/documents/%s/outcome", rec.ID),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.st.ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

// handleGet returns the full structured aggregate once extraction is
// complete, or the lifecycle record while the run is still pending.
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocID(w, r)
	if !ok {
		return
	}

	rec, err := s.st.GetRecord(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if rec.Status != store.DocCompleted {
		json.NewEncoder(w).Encode(map[string]any{"document": rec})
		return
	}

	doc, err := s.st.GetDocument(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"document": rec, "result": doc})
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocID(w, r)
	if !ok {
		return
	}

	rec, err := s.st.GetRecord(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}
	outcome, err := s.st.GetOutcome(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"document_id": rec.ID,
		"status":      rec.Status,
		"outcome":     outcome,
	})
}

// handleReextract queues a fresh run for an existing document. The
// previous result stays readable until the new run replaces it.
func (s *Server) handleReextract(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocID(w, r)
	if !ok {
		return
	}

	rec, err := s.st.GetRecord(r.Context(), id)
	if err != nil {
		storeError(w, err)
		return
	}

	path := s.spoolPath(id)
	if _, err := os.Stat(path); err != nil {
		jsonError(w, "original file no longer available", http.StatusConflict)
		return
	}

	if err := s.runner.Submit(pipeline.Job{DocID: id, Path: path}); err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"document_id": rec.ID,
		"poll_url":    fmt.Sprintf("/api/documents/%s/outcome", rec.ID),
	})
}

// handleDelete cancels any in-flight run and removes the document, its
// result rows, and the spooled file.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseDocID(w, r)
	if !ok {
		return
	}

	if s.runner.Cancel(id) {
		s.log.Info("cancelled in-flight extraction", "doc_id", id)
	}

	if err := s.st.DeleteDocument(r.Context(), id); err != nil {
		storeError(w, err)
		return
	}
	if err := os.Remove(s.spoolPath(id)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("spool cleanup failed", "doc_id", id, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) spoolPath(id uuid.UUID) string {
	return filepath.Join(s.cfg.DataDir, id.String()+".pdf")
}

func parseDocID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "docID"))
	if err != nil {
		jsonError(w, "invalid document id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
