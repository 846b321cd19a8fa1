package api

import (
	"net/http"

	"github.com/pixeltracker/capi-relay/internal/capi"
)

// DiagnosticsHandler backs the operator-facing connection tester. It sends a
// synthetic event through the exact delivery path real traffic uses.
type DiagnosticsHandler struct {
	sink *capi.Client
}

func NewDiagnosticsHandler(sink *capi.Client) *DiagnosticsHandler {
	return &DiagnosticsHandler{sink: sink}
}

func (h *DiagnosticsHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	result := h.sink.TestConnection(r.Context())
	respondJSON(w, http.StatusOK, result)
}
