package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/nest-unify/internal/audit"
)

// handleListAudit returns the activity trail, newest first. Supports
// action, entity_type, entity_id, limit, and offset query parameters.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit trail not available")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:   q.Get("action"),
		Entity:   q.Get("entity_type"),
		EntityID: q.Get("entity_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = parsed
	}
	if raw := q.Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = parsed
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// recordAudit writes an activity trail entry, attributing it to the
// authenticated user on the request. Best-effort: a failed write is
// logged and never fails the request that triggered it.
func (s *Server) recordAudit(r *http.Request, action, entity, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}

	user, _ := r.Context().Value(ctxKeyUser).(string) //nolint:errcheck // unauthenticated routes have no user
	entry := &audit.Entry{
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		User:     user,
		Details:  details,
	}
	if err := s.audit.Record(r.Context(), entry); err != nil {
		s.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
