package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ultrasop/ultrasop/internal/generate"
	"github.com/ultrasop/ultrasop/internal/sop"
)

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InputText string `json:"inputText"`
		Title     string `json:"title"`
		Detail    string `json:"detail"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.InputText) == "" {
		writeError(w, http.StatusBadRequest, "inputText is required")
		return
	}
	detail, ok := s.detailLevel(w, req.Detail)
	if !ok {
		return
	}

	doc, err := s.gen.GenerateFromNotes(r.Context(), req.InputText, req.Title, detail)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"sop": s.store.Insert(doc)})
	case errors.Is(err, generate.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "generation backend not configured (missing API key)")
	case errors.Is(err, generate.ErrUpstream) && doc != nil:
		// The model failed or returned unusable output, but the heuristic
		// fallback produced a usable document; hand it over with a warning
		// instead of failing.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"warning": "model backend error, generated a heuristic draft",
			"sop":     s.store.Insert(doc),
		})
	default:
		s.logger.Error("generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "generation failed")
	}
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string     `json:"title"`
		Summary string     `json:"summary"`
		Steps   []sop.Step `json:"steps"`
		Detail  string     `json:"detail"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Steps) == 0 {
		writeError(w, http.StatusBadRequest, "steps are required")
		return
	}
	detail, ok := s.detailLevel(w, req.Detail)
	if !ok {
		return
	}

	steps, degraded, err := s.gen.EnhanceSteps(r.Context(), req.Title, req.Summary, req.Steps, detail)
	if err != nil {
		s.writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"steps": steps, "degraded": degraded})
}

func (s *Server) handleEnhanceStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string    `json:"title"`
		Summary string    `json:"summary"`
		Step    *sop.Step `json:"step"`
		Detail  string    `json:"detail"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Step == nil || strings.TrimSpace(req.Step.Title) == "" {
		writeError(w, http.StatusBadRequest, "step is required")
		return
	}
	detail, ok := s.detailLevel(w, req.Detail)
	if !ok {
		return
	}

	step, err := s.gen.EnhanceStep(r.Context(), req.Title, req.Summary, *req.Step, detail)
	if err != nil {
		s.writeGenerateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"step": step})
}

func (s *Server) detailLevel(w http.ResponseWriter, raw string) (generate.DetailLevel, bool) {
	if raw == "" {
		return s.cfg.DefaultDetail, true
	}
	detail := generate.DetailLevel(raw)
	if !detail.Valid() {
		writeError(w, http.StatusBadRequest, "detail must be preview, full or rich")
		return "", false
	}
	return detail, true
}

func (s *Server) writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, generate.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "generation backend not configured (missing API key)")
	case errors.Is(err, generate.ErrBadOutput), errors.Is(err, generate.ErrUpstream):
		writeError(w, http.StatusBadGateway, "model backend error")
	default:
		s.logger.Error("enhancement failed", "error", err)
		writeError(w, http.StatusInternalServerError, "enhancement failed")
	}
}
