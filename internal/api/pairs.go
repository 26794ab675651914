package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/nest-unify/internal/audit"
	"github.com/nerrad567/nest-unify/internal/pairing"
)

// createPairRequest is the request body for POST /pairs.
type createPairRequest struct {
	Name         string `json:"name"`
	MatterEntity string `json:"matter_entity"`
	GoogleEntity string `json:"google_entity"`
}

// renamePairRequest is the request body for PATCH /pairs/{id}.
type renamePairRequest struct {
	Name string `json:"name"`
}

// handleListPairs returns all registered pairs.
func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.pairs.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list pairs", "error", err)
		writeInternalError(w, "failed to list pairs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pairs": pairs,
		"count": len(pairs),
	})
}

// handleCreatePair registers a new thermostat pair and starts its
// aggregation pipeline.
func (s *Server) handleCreatePair(w http.ResponseWriter, r *http.Request) {
	var req createPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if s.runtime == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "pair runtime not available")
		return
	}

	pair := &pairing.Pair{
		ID:           uuid.New().String(),
		Name:         req.Name,
		MatterEntity: req.MatterEntity,
		GoogleEntity: req.GoogleEntity,
	}

	if err := s.pairs.Create(r.Context(), pair); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := s.runtime.StartPair(r.Context(), *pair); err != nil {
		// The pair is persisted but not running; surface the failure and
		// let the operator retry via delete + recreate or a restart.
		s.logger.Error("failed to start pair runtime", "pair_id", pair.ID, "error", err)
		writeInternalError(w, "pair created but failed to start: "+err.Error())
		return
	}

	s.logger.Info("pair created",
		"pair_id", pair.ID,
		"name", pair.Name,
		"matter_entity", pair.MatterEntity,
		"google_entity", pair.GoogleEntity,
	)

	s.recordAudit(r, audit.ActionPairCreated, audit.EntityPair, pair.ID, map[string]any{
		"name":          pair.Name,
		"matter_entity": pair.MatterEntity,
		"google_entity": pair.GoogleEntity,
	})

	if s.hub != nil {
		s.hub.Broadcast(ChannelPairChange, map[string]any{
			"action": "created",
			"pair":   pair,
		})
	}

	writeJSON(w, http.StatusCreated, pair)
}

// handleGetPair returns a single pair by ID.
func (s *Server) handleGetPair(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	pair, err := s.pairs.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// handleRenamePair updates a pair's display name.
func (s *Server) handleRenamePair(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req renamePairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.pairs.Rename(r.Context(), id, req.Name); err != nil {
		writeDomainError(w, err)
		return
	}

	pair, err := s.pairs.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info("pair renamed", "pair_id", id, "name", req.Name)

	s.recordAudit(r, audit.ActionPairRenamed, audit.EntityPair, id, map[string]any{
		"name": req.Name,
	})

	if s.hub != nil {
		s.hub.Broadcast(ChannelPairChange, map[string]any{
			"action": "renamed",
			"pair":   pair,
		})
	}

	writeJSON(w, http.StatusOK, pair)
}

// handleDeletePair stops a pair's aggregation pipeline and removes it.
func (s *Server) handleDeletePair(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.pairs.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	if s.runtime != nil {
		if err := s.runtime.StopPair(id); err != nil {
			// Row is gone; the stale runtime instance is cleaned up on restart.
			s.logger.Warn("failed to stop pair runtime", "pair_id", id, "error", err)
		}
	}

	s.logger.Info("pair deleted", "pair_id", id)

	s.recordAudit(r, audit.ActionPairDeleted, audit.EntityPair, id, nil)

	if s.hub != nil {
		s.hub.Broadcast(ChannelPairChange, map[string]any{
			"action":  "deleted",
			"pair_id": id,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "pair_id": id})
}

// handleDiscoverPairs suggests unpaired matter/google entity combinations
// from entities currently visible on the bus.
func (s *Server) handleDiscoverPairs(w http.ResponseWriter, r *http.Request) {
	if s.entities == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "entity observer not available")
		return
	}

	existing, err := s.pairs.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list pairs for discovery", "error", err)
		writeInternalError(w, "failed to list pairs")
		return
	}

	seen := s.entities.SeenEntities()
	observed := make([]pairing.Observation, 0, len(seen))
	for _, e := range seen {
		observed = append(observed, pairing.Observation{
			EntityID:     e.EntityID,
			FriendlyName: e.FriendlyName,
			Available:    e.Available,
		})
	}

	candidates := pairing.Discover(observed, existing)

	writeJSON(w, http.StatusOK, map[string]any{
		"candidates": candidates,
		"count":      len(candidates),
	})
}
