package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/edugest/internal/classify"
	"github.com/dgallion1/edugest/internal/source"
	"github.com/dgallion1/edugest/internal/store"
	"github.com/dgallion1/edugest/internal/textnorm"
)

// correctionSampleChars bounds the text kept with a correction.
const correctionSampleChars = 4000

// handleClassify classifies an upload without queueing a job.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	filename, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	doc, err := source.LoadBytes(data, filename)
	if err != nil {
		jsonError(w, "load: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	domain, ok := s.domain(w, r.FormValue("domain"))
	if !ok {
		return
	}
	cfg, err := s.svc.Configs.Resolve(domain, "")
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var corrections classify.CorrectionSource
	if s.svc.Corrections != nil {
		corrections = s.svc.Corrections
	}
	fewShot := classify.FewShot(r.Context(), corrections, domain, cfg.Classification.FewShotMax, s.log)
	cls := s.svc.Classifier.Classify(r.Context(), doc.Text, doc.FileName, cfg, fewShot)

	writeJSON(w, http.StatusOK, map[string]any{
		"file_name":      doc.FileName,
		"format":         doc.Format,
		"page_count":     doc.PageCount,
		"classification": cls,
		"examples":       len(fewShot),
	})
}

type correctionRequest struct {
	SourceID      string `json:"source_id"`
	FileName      string `json:"file_name"`
	Domain        string `json:"domain"`
	Sample        string `json:"sample"`
	OriginalType  string `json:"original_type"`
	CorrectedType string `json:"corrected_type"`
}

// handleCorrection stores a human classification fix for future few-shot
// prompts.
func (s *Server) handleCorrection(w http.ResponseWriter, r *http.Request) {
	if s.svc.Corrections == nil {
		jsonError(w, "corrections unavailable", http.StatusServiceUnavailable)
		return
	}

	var req correctionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	corrected, ok := classify.Normalize(req.CorrectedType)
	if !ok {
		jsonError(w, fmt.Sprintf("unknown corrected_type %q", req.CorrectedType), http.StatusBadRequest)
		return
	}
	original, _ := classify.Normalize(req.OriginalType)
	domain, ok := s.domain(w, req.Domain)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Sample) == "" {
		jsonError(w, "sample is required", http.StatusBadRequest)
		return
	}

	c := &store.Correction{
		Domain:        domain,
		SourceID:      req.SourceID,
		FileName:      sanitizeFilename(req.FileName),
		Sample:        textnorm.Truncate(req.Sample, correctionSampleChars),
		OriginalType:  original,
		CorrectedType: corrected,
	}
	if err := s.svc.Corrections.AddCorrection(r.Context(), c); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("classification corrected", "source_id", c.SourceID, "from", original, "to", corrected)
	writeJSON(w, http.StatusCreated, c)
}
