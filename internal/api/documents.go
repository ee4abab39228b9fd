package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ultrasop/ultrasop/internal/sop"
	"github.com/ultrasop/ultrasop/internal/store"
)

// listResponse is the shape of every endpoint that returns the whole
// workspace.
type listResponse struct {
	ActiveID  uuid.UUID       `json:"activeId"`
	Documents []*sop.Document `json:"documents"`
}

func (s *Server) workspace() listResponse {
	return listResponse{
		ActiveID:  s.store.Active().ID,
		Documents: s.store.List(),
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.workspace())
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title    string `json:"title"`
		Template string `json:"template"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		d   *sop.Document
		err error
	)
	if req.Template != "" {
		d, err = s.store.CreateFromTemplate(req.Template)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown template: "+req.Template)
			return
		}
	} else {
		d = s.store.Create(req.Title)
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Active())
}

func (s *Server) handleSelectActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID uuid.UUID `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SetActive(req.ID); err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, s.store.Active())
}

// updateRequest uses pointers so absent fields leave the document alone.
type updateRequest struct {
	Title   *string     `json:"title"`
	Summary *string     `json:"summary"`
	Steps   *[]sop.Step `json:"steps"`
}

func (s *Server) handleUpdateActive(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d := s.store.UpdateActive(func(d *sop.Document) {
		if req.Title != nil {
			d.Title = *req.Title
		}
		if req.Summary != nil {
			d.Summary = *req.Summary
		}
		if req.Steps != nil {
			d.Steps = sop.SanitizeSteps(*req.Steps)
		}
	})
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleClearActive(w http.ResponseWriter, r *http.Request) {
	d := s.store.UpdateActive(func(d *sop.Document) {
		d.Clear()
	})
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	for _, d := range s.store.List() {
		if d.ID == id {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	writeError(w, http.StatusNotFound, "document not found")
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, s.workspace())
}

func (s *Server) handleDuplicateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	for _, d := range s.store.List() {
		if d.ID == id {
			writeJSON(w, http.StatusCreated, s.store.Insert(d.Duplicate()))
			return
		}
	}
	writeError(w, http.StatusNotFound, "document not found")
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"templates": sop.Templates})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return uuid.UUID{}, false
	}
	return id, true
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
