package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
	"github.com/sentinelforge/sentinelforge-backend/internal/repository"
)

// ListActions returns stored remediation actions in insertion order with
// optional action_type and executed filters.
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.store.ListActions(r.Context())
	if err != nil {
		h.log.Error("failed to list actions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}

	q := r.URL.Query()
	var actionType *models.ActionType
	if raw := q.Get("action_type"); raw != "" {
		a, ok := models.ParseActionType(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid action_type")
			return
		}
		actionType = &a
	}
	var executed *bool
	if raw := q.Get("executed"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid executed")
			return
		}
		executed = &b
	}

	filtered := make([]*models.RemediationAction, 0, len(actions))
	for _, a := range actions {
		if actionType != nil && a.ActionType != *actionType {
			continue
		}
		if executed != nil && a.Executed != *executed {
			continue
		}
		filtered = append(filtered, a)
	}

	limit := parseLimit(r)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	respondJSON(w, http.StatusOK, filtered)
}

// GetAction returns one remediation action by id.
func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	action, err := h.store.GetAction(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "action not found")
			return
		}
		h.log.Error("failed to get action", "action_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get action")
		return
	}
	respondJSON(w, http.StatusOK, action)
}
