package rest

import "net/http"

// Root returns the service banner.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "SentinelForge API",
		"status":  "running",
		"version": apiVersion,
	})
}

// Health aggregates per-service health. The pipeline keeps serving in
// degraded mode, so this never returns a non-200 status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	services := map[string]interface{}{
		"ml":          h.detector.Health(),
		"rl":          h.policy.Health(),
		"llm":         h.explain.Health(),
		"remediation": h.remediation.Health(),
	}

	status := "healthy"
	for _, svc := range services {
		if m, ok := svc.(map[string]interface{}); ok {
			if s, _ := m["status"].(string); s != "healthy" {
				status = "degraded"
				break
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"services": services,
	})
}
