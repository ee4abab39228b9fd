package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ultrasop/ultrasop/internal/export"
	"github.com/ultrasop/ultrasop/internal/sop"
)

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"versions": s.store.Active().Versions})
}

func (s *Server) handleSaveVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v, err := s.store.SaveVersion(r.Context(), req.Notes)
	if err != nil {
		s.logger.Error("save version failed", "error", err)
		writeError(w, http.StatusInternalServerError, "saving version failed")
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleDeleteVersion(w http.ResponseWriter, r *http.Request) {
	n, ok := parseVersionN(w, r)
	if !ok {
		return
	}
	var delErr error
	s.store.UpdateActive(func(d *sop.Document) {
		delErr = d.DeleteVersion(n)
	})
	if errors.Is(delErr, sop.ErrVersionNotFound) {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": s.store.Active().Versions})
}

func (s *Server) handleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	n, ok := parseVersionN(w, r)
	if !ok {
		return
	}
	var restoreErr error
	d := s.store.UpdateActive(func(d *sop.Document) {
		restoreErr = d.Restore(n)
	})
	if errors.Is(restoreErr, sop.ErrVersionNotFound) {
		writeError(w, http.StatusNotFound, "version not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDiffVersion(w http.ResponseWriter, r *http.Request) {
	n, ok := parseVersionN(w, r)
	if !ok {
		return
	}
	changes, err := s.store.Active().DiffAgainstPrevious(n)
	switch {
	case errors.Is(err, sop.ErrVersionNotFound):
		writeError(w, http.StatusNotFound, "version not found")
		return
	case errors.Is(err, sop.ErrNoPreviousVersion):
		writeJSON(w, http.StatusOK, map[string]any{
			"changes": []sop.Change{},
			"message": "No previous version to compare",
		})
		return
	}
	if changes == nil {
		changes = []sop.Change{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	d := s.store.Active()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", pdfFilename(d.DisplayTitle())))
	if err := export.ToPDF(d, w, export.Options{ProductName: s.cfg.ProductName}); err != nil {
		s.logger.Error("pdf export failed", "doc", d.ID, "error", err)
	}
}

// pdfFilename slugs a title into a safe attachment name.
func pdfFilename(title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ', r == '-', r == '_':
			return '-'
		}
		return -1
	}, title)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "sop"
	}
	return slug + ".pdf"
}

func parseVersionN(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "invalid version number")
		return 0, false
	}
	return n, true
}
