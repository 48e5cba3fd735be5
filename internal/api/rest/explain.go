package rest

import (
	"errors"
	"net/http"

	"github.com/sentinelforge/sentinelforge-backend/internal/repository"
)

// ExplainThreat returns an operator-readable explanation for one threat.
func (h *Handler) ExplainThreat(w http.ResponseWriter, r *http.Request) {
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

	pod := threat.SourcePod
	if pod == "" {
		pod = "unknown pod"
	}

	explanation := h.explain.Explain(r.Context(), threat)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"threat_id":   threat.ID.String(),
		"summary":     threat.ThreatType.Humanize() + " in " + pod,
		"details":     threat.Description,
		"severity":    threat.Severity,
		"detected_at": threat.DetectedAt,
		"explanation": explanation,
	})
}
