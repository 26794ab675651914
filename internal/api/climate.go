package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/nest-unify/internal/audit"
	"github.com/nerrad567/nest-unify/internal/climate"
)

// commandRequest is the request body for POST /pairs/{id}/commands.
type commandRequest struct {
	Op          string   `json:"op"`
	Temperature *float64 `json:"temperature,omitempty"`
	Mode        string   `json:"mode,omitempty"`
}

// commandResponse reports the outcome of a dispatched command.
type commandResponse struct {
	Status string                 `json:"status"`
	Op     string                 `json:"op"`
	PairID string                 `json:"pair_id"`
	State  climate.CompositeState `json:"state"`
}

// handleGetClimateState returns the current composite state for a pair.
func (s *Server) handleGetClimateState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inst, err := s.manager.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inst.Aggregator.CurrentState())
}

// handleGetClimateSources returns the per-capability source labels for a pair.
// Lighter than the full state for dashboards that only show routing diagnostics.
func (s *Server) handleGetClimateSources(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inst, err := s.manager.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	state := inst.Aggregator.CurrentState()
	writeJSON(w, http.StatusOK, map[string]any{
		"pair_id":   id,
		"available": state.Available,
		"sources":   state.Sources,
	})
}

// handleGetClimateHistory returns recent composite state changes for a pair.
// The limit query parameter caps the number of entries (clamped server-side).
func (s *Server) handleGetClimateHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history not available")
		return
	}

	// Verify the pair exists so unknown IDs return 404 instead of an empty list.
	if _, err := s.manager.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("failed to read state history", "pair_id", id, "error", err)
		writeInternalError(w, "failed to read state history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pair_id": id,
		"history": entries,
		"count":   len(entries),
	})
}

// handleClimateCommand dispatches a thermostat command for a pair.
//
// The dispatcher handles source selection and fallback; this handler only
// validates the request shape and maps the outcome to an HTTP status.
func (s *Server) handleClimateCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inst, err := s.manager.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	ctx := r.Context()
	switch req.Op {
	case climate.OpSetTemperature:
		if req.Temperature == nil {
			writeBadRequest(w, "temperature is required for "+climate.OpSetTemperature)
			return
		}
		err = inst.Dispatcher.SetTargetTemperature(ctx, *req.Temperature)
	case climate.OpSetHVACMode:
		if req.Mode == "" {
			writeBadRequest(w, "mode is required for "+climate.OpSetHVACMode)
			return
		}
		err = inst.Dispatcher.SetHVACMode(ctx, req.Mode)
	case climate.OpSetFanMode:
		if req.Mode == "" {
			writeBadRequest(w, "mode is required for "+climate.OpSetFanMode)
			return
		}
		err = inst.Dispatcher.SetFanMode(ctx, req.Mode)
	case climate.OpTurnOn:
		err = inst.Dispatcher.TurnOn(ctx)
	case climate.OpTurnOff:
		err = inst.Dispatcher.TurnOff(ctx)
	default:
		writeBadRequest(w, "unknown op: "+req.Op)
		return
	}

	if err != nil {
		s.logger.Warn("command dispatch failed", "pair_id", id, "op", req.Op, "error", err)
		writeDomainError(w, err)
		return
	}

	details := map[string]any{"op": req.Op}
	if req.Temperature != nil {
		details["temperature"] = *req.Temperature
	}
	if req.Mode != "" {
		details["mode"] = req.Mode
	}
	s.recordAudit(r, audit.ActionCommandDispatched, audit.EntityPair, id, details)

	writeJSON(w, http.StatusOK, commandResponse{
		Status: "accepted",
		Op:     req.Op,
		PairID: id,
		State:  inst.Aggregator.CurrentState(),
	})
}
