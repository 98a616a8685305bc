package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/config"
	"github.com/dgallion1/edugest/internal/pipeline"
	"github.com/dgallion1/edugest/internal/source"
)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	declared := r.FormValue("declared_type")
	if declared != "" {
		t, ok := classify.Normalize(declared)
		if !ok {
			jsonError(w, fmt.Sprintf("unknown declared_type %q", declared), http.StatusBadRequest)
			return
		}
		declared = t
	}

	job := pipeline.NewJob(filename, data)
	job.SourceID = r.FormValue("source_id")
	job.DeclaredType = declared
	job.Qualification = strings.TrimSpace(r.FormValue("qualification"))
	job.Focus = strings.TrimSpace(r.FormValue("focus"))
	domain, ok := s.domain(w, r.FormValue("domain"))
	if !ok {
		return
	}
	job.Domain = domain

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"source_id":  job.SourceID,
		"status":     pipeline.StatusQueued,
		"poll_url":   fmt.Sprintf("/api/ingest/%s/status", job.ID),
		"result_url": fmt.Sprintf("/api/ingest/%s/result", job.ID),
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleIngestResult returns the extracted items once the job is done.
func (s *Server) handleIngestResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if !snap.Status.Done() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "job still running",
			"status": snap.Status,
			"phase":  snap.Phase,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":         snap.ID,
		"source_id":      snap.SourceID,
		"status":         snap.Status,
		"classification": snap.Classification,
		"result":         job.Result(),
		"saved":          snap.Saved,
		"errors":         snap.Progress.Errors,
		"warnings":       snap.Progress.Warnings,
	})
}

// readUpload parses the multipart "file" field, writing the error response
// itself when it returns false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !source.IsSupportedExtension(filename) {
		r.MultipartForm.RemoveAll()
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return "", nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		r.MultipartForm.RemoveAll()
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return "", nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		r.MultipartForm.RemoveAll()
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return "", nil, false
	}
	return filename, data, true
}

// domain applies the default domain and rejects names that cannot be
// config override file names, writing the error response itself.
func (s *Server) domain(w http.ResponseWriter, v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		v = s.cfg.DefaultDomain
	}
	if !config.ValidLayerName(v) {
		jsonError(w, fmt.Sprintf("invalid domain %q", v), http.StatusBadRequest)
		return "", false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
