package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SaveVariableRequest is the body of POST /api/custom_variables.
type SaveVariableRequest struct {
	Name   string `json:"name"`
	Config any    `json:"config"`
}

// handleListVariables returns every custom variable.
func (s *Server) handleListVariables(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.vars.GetAll())
}

// handleSaveVariable creates or replaces one custom variable. Persistence
// failures are logged by the store and do not fail the request.
func (s *Server) handleSaveVariable(w http.ResponseWriter, r *http.Request) {
	var req SaveVariableRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.vars.Set(r.Context(), req.Name, req.Config); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Variable %s saved", req.Name),
	})
}

// handleDeleteVariable removes one custom variable.
func (s *Server) handleDeleteVariable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.vars.Delete(r.Context(), name); err != nil {
		s.writeCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Variable %s deleted", name),
	})
}
