package api

import (
	"net/http"

	"github.com/flowpbx/ivrflow/internal/api/middleware"
	"github.com/flowpbx/ivrflow/internal/callflow"
	"github.com/go-chi/chi/v5"
)

// callFlowResponse is the JSON shape of a contact's flow record.
type callFlowResponse struct {
	Contact    string            `json:"contact"`
	Flow       string            `json:"flow"`
	Status     string            `json:"status"`
	AuditTrail map[string]string `json:"audit_trail"`
}

// handleGetCallFlow returns the status and audit trail of a contact's
// outcome monitoring flow.
func (s *Server) handleGetCallFlow(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if msg := validateContactRef("contact reference", ref); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	rec, err := s.engine.Record(r.Context(), ref)
	if err != nil {
		s.logger.Error("failed to read call flow record",
			"contact", ref,
			"admin", middleware.AdminFromContext(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}

	audit := make(map[string]string, len(rec.AuditTrail))
	for state, eventID := range rec.AuditTrail {
		audit[state.String()] = eventID
	}

	writeJSON(w, http.StatusOK, callFlowResponse{
		Contact:    ref,
		Flow:       callflow.FlowName,
		Status:     rec.Status.String(),
		AuditTrail: audit,
	})
}
