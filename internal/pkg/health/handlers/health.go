package handlers

import (
	"net/http"
	"time"
)

// ErrorEntry is one recorded scrape failure.
type ErrorEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
	Error     string    `json:"error"`
}

// HealthReport is the /health response body.
type HealthReport struct {
	Status                 string       `json:"status"`
	UptimeSeconds          float64      `json:"uptime_seconds"`
	ScrapeCount            int64        `json:"scrape_count"`
	LastScrape             *time.Time   `json:"last_scrape"`
	SinceLastScrapeSeconds *float64     `json:"time_since_last_scrape_seconds"`
	RecentErrors           []ErrorEntry `json:"recent_errors"`
}

// HealthReporter produces the current health report.
type HealthReporter interface {
	Report() HealthReport
}

// HandlePing handles /ping endpoint
func HandlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong\n"))
}

// HandleHealth serves the report of h on /health.
func HandleHealth(h HealthReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.Report())
	}
}
