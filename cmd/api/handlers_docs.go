package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/WessleyAI/career-agent/engine/domain"
	"github.com/WessleyAI/career-agent/engine/extract"
	"github.com/WessleyAI/career-agent/engine/ingest"
	"github.com/WessleyAI/career-agent/pkg/mid"
)

type uploadResponse struct {
	Status   string `json:"status"`
	ResumeID string `json:"resume_id"`
	Chunks   int    `json:"chunks"`
}

type preview struct {
	ID      int    `json:"id"`
	Preview string `json:"preview"`
}

type previewResponse struct {
	Status      string    `json:"status"`
	TotalChunks int       `json:"total_chunks"`
	Previews    []preview `json:"previews"`
}

type jobRequest struct {
	Description string         `json:"description"`
	Format      extract.Format `json:"format,omitempty"`
}

type jobResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
	Chunks int    `json:"chunks"`
}

func (s *server) resumePath(id string) string {
	return filepath.Join(s.uploadDir, id+".pdf")
}

// handleUploadResume stores the uploaded PDF, indexes its text and records
// the caller as owner.
func (s *server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		mid.Error(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		mid.Error(w, http.StatusBadRequest, "only PDF resumes are supported")
		return
	}

	id := s.newID()
	path := s.resumePath(id)
	if err := saveUpload(path, file); err != nil {
		s.writeError(w, r, err)
		return
	}
	ev, err := s.indexResume(r.Context(), id, path)
	if err != nil {
		os.Remove(path)
		s.writeError(w, r, err)
		return
	}
	if err := s.accounts.AddOwnership(r.Context(), caller(r).UserID, id); err != nil {
		s.discardResume(r.Context(), id, path)
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Status: "uploaded", ResumeID: id, Chunks: ev.Chunks})
}

func (s *server) handleReindex(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.owns(w, r, id) {
		return
	}
	path := s.resumePath(id)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		s.writeError(w, r, domain.NotFound(domain.DocResume))
		return
	}
	ev, err := s.indexResume(r.Context(), id, path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.matcher.Invalidate(r.Context(), id); err != nil {
		s.log.Warn("reindex: match cache not invalidated", "resume_id", id, "err", err)
	}
	writeJSON(w, http.StatusOK, uploadResponse{Status: "indexed", ResumeID: id, Chunks: ev.Chunks})
}

// discardResume removes an upload nobody owns: the stored file and its
// indexed chunks.
func (s *server) discardResume(ctx context.Context, id, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("upload: remove orphaned file", "resume_id", id, "err", err)
	}
	if err := s.chunks.DeleteDoc(context.WithoutCancel(ctx), id, domain.DocResume); err != nil {
		s.log.Warn("upload: delete orphaned chunks", "resume_id", id, "err", err)
	}
}

func (s *server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.owns(w, r, id) {
		return
	}
	chunks, err := s.chunks.Chunks(r.Context(), id, domain.DocResume)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(chunks) == 0 {
		s.writeError(w, r, domain.NotFound(domain.DocResume))
		return
	}
	resp := previewResponse{Status: "processed", TotalChunks: len(chunks), Previews: []preview{}}
	for _, c := range chunks[:min(previewChunks, len(chunks))] {
		resp.Previews = append(resp.Previews, preview{ID: c.Index, Preview: domain.Truncate(c.Text, domain.ListPreviewLen)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleUploadJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	text, err := extract.JobText(req.Format, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := s.newID()
	ev, err := s.ingest.Ingest(r.Context(), ingest.Request{DocID: id, Type: domain.DocJob, Text: text})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Status: "job stored", JobID: id, Chunks: ev.Chunks})
}

func (s *server) indexResume(ctx context.Context, id, path string) (ingest.Ingested, error) {
	text, err := s.pdf.Text(ctx, path)
	if err != nil {
		return ingest.Ingested{}, err
	}
	return s.ingest.Ingest(ctx, ingest.Request{DocID: id, Type: domain.DocResume, Text: text})
}

func saveUpload(path string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("api: create upload dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("api: create upload: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("api: write upload: %w", err)
	}
	return f.Close()
}
