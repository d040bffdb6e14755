package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/acdc/internal/analysis"
)

func (s *Server) listSchemas(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.schemas.Names())
}

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, ok := s.schemas.Raw(name)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown schema: "+name)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Get())
}

// putAnalysis merges a full or partial document and returns the result.
func (s *Server) putAnalysis(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, s.cfg.MaxUpload)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", err.Error())
		return
	}
	doc, err := s.store.Merge(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// resetAnalysis starts a new analysis under a fresh ID.
func (s *Server) resetAnalysis(w http.ResponseWriter, r *http.Request) {
	s.eval.Cancel()
	s.bus.Reset()
	writeJSON(w, http.StatusOK, s.store.Reset())
}

func (s *Server) updateConditions(w http.ResponseWriter, r *http.Request) {
	var cs []analysis.ConditionEntry
	if err := decodeJSON(r, &cs); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONDITIONS", "invalid condition list: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.store.SetConditions(cs))
}

// startEvaluation stores the submitted document and evaluates it.
func (s *Server) startEvaluation(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r, s.cfg.MaxUpload)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", err.Error())
		return
	}
	doc := s.store.Get()
	if len(body) > 0 {
		if doc, err = s.store.Merge(body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DOCUMENT", err.Error())
			return
		}
	}
	runID, err := s.eval.Start(doc)
	switch {
	case errors.Is(err, ErrNoConditions):
		writeError(w, http.StatusBadRequest, "NO_CONDITIONS", err.Error())
		return
	case errors.Is(err, ErrRunning):
		writeError(w, http.StatusConflict, "RUNNING", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"ID":       runID,
		"Analysis": doc.ID,
	})
}

func (s *Server) cancelEvaluation(w http.ResponseWriter, r *http.Request) {
	s.eval.Cancel()
	w.WriteHeader(http.StatusNoContent)
}
