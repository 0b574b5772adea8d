package handlers

import (
	"net/http"

	"github.com/Vodeneev/ttmonitor/internal/pkg/performance"
)

// HandleMetrics handles /metrics endpoint
func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, performance.GetTracker().GetMetrics())
}
