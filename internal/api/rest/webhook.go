package rest

import (
	"encoding/json"
	"net/http"
)

// FalcoWebhook ingests one detector envelope and runs the full pipeline:
// normalize, score, decide, execute. The response reports what was decided.
// A structurally invalid envelope is acknowledged with a null threat rather
// than rejected, so the detector's delivery loop never backs up on retries.
func (h *Handler) FalcoWebhook(w http.ResponseWriter, r *http.Request) {
	event, ok := h.decodeEnvelope(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	threat, err := h.processor.ProcessEvent(ctx, event)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to process event")
		return
	}
	if threat == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "processed",
			"threat": nil,
		})
		return
	}

	score := h.detector.Score(threat)
	threat.MLScore = &score
	if err := h.store.AddThreat(ctx, threat); err != nil {
		h.log.Error("failed to persist ML score", "threat_id", threat.ID, "error", err)
	}

	action := h.policy.Decide(threat)
	h.remediation.Execute(ctx, action, threat)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "processed",
		"threat_id": threat.ID.String(),
		"severity":  threat.Severity,
		"action":    action.ActionType,
	})
}

// Simulate runs only the normalization stage, for testing detector payloads
// without triggering remediation.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	event, ok := h.decodeEnvelope(w, r)
	if !ok {
		return
	}

	threat, err := h.processor.ProcessEvent(r.Context(), event)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to process event")
		return
	}
	if threat == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status": "processed",
			"threat": nil,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "processed",
		"threat_id": threat.ID.String(),
	})
}

// decodeEnvelope reads the request body as a JSON object. Valid JSON that is
// not an object (array, string, number) is treated the same as a missing
// envelope; malformed JSON is a server-side failure of the delivery contract.
func (h *Handler) decodeEnvelope(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	var event map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		if _, ok := err.(*json.UnmarshalTypeError); ok {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"status": "processed",
				"threat": nil,
			})
			return nil, false
		}
		h.log.Error("failed to decode webhook body", "error", err)
		respondError(w, http.StatusInternalServerError, "invalid request body")
		return nil, false
	}
	return event, true
}
