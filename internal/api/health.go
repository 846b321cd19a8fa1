package api

import "net/http"

// HealthHandler returns the health check handler consumed by the
// orchestration layer.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
