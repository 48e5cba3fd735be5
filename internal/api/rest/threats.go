package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sentinelforge/sentinelforge-backend/internal/models"
	"github.com/sentinelforge/sentinelforge-backend/internal/repository"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// parseLimit clamps the limit query parameter into [1, maxListLimit].
func parseLimit(r *http.Request) int {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

// ListThreats returns stored threats in insertion order with optional
// severity, threat_type, and resolved filters; limit truncates the list.
func (h *Handler) ListThreats(w http.ResponseWriter, r *http.Request) {
	threats, err := h.store.ListThreats(r.Context())
	if err != nil {
		h.log.Error("failed to list threats", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list threats")
		return
	}

	q := r.URL.Query()
	var severity *models.ThreatSeverity
	if raw := q.Get("severity"); raw != "" {
		s, ok := models.ParseSeverity(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid severity")
			return
		}
		severity = &s
	}
	var threatType *models.ThreatType
	if raw := q.Get("threat_type"); raw != "" {
		t, ok := models.ParseThreatType(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid threat_type")
			return
		}
		threatType = &t
	}
	var resolved *bool
	if raw := q.Get("resolved"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid resolved")
			return
		}
		resolved = &b
	}

	filtered := make([]*models.Threat, 0, len(threats))
	for _, t := range threats {
		if severity != nil && t.Severity != *severity {
			continue
		}
		if threatType != nil && t.ThreatType != *threatType {
			continue
		}
		if resolved != nil && t.Resolved != *resolved {
			continue
		}
		filtered = append(filtered, t)
	}

	limit := parseLimit(r)
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	respondJSON(w, http.StatusOK, filtered)
}

// GetThreat returns one threat by id.
func (h *Handler) GetThreat(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	threat, err := h.store.GetThreat(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "threat not found")
			return
		}
		h.log.Error("failed to get threat", "threat_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get threat")
		return
	}
	respondJSON(w, http.StatusOK, threat)
}

// ResolveThreat marks a threat as resolved.
func (h *Handler) ResolveThreat(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.MarkResolved(r.Context(), id, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "threat not found")
			return
		}
		h.log.Error("failed to resolve threat", "threat_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to resolve threat")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "resolved",
		"threat_id": id.String(),
	})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
