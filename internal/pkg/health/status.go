package health

import (
	"sync"
	"time"

	"github.com/Vodeneev/ttmonitor/internal/pkg/health/handlers"
)

const (
	maxErrors    = 10
	reportErrors = 3
)

// Reporter receives the outcome of every refresh attempt.
type Reporter interface {
	RecordObservation(source string, success bool, err error)
}

// Status keeps process-wide scrape health for /health.
type Status struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	status  string
	count   int64
	last    time.Time
	errors  []handlers.ErrorEntry
}

func NewStatus() *Status {
	return newStatus(time.Now)
}

func newStatus(now func() time.Time) *Status {
	return &Status{now: now, started: now(), status: "starting"}
}

func (s *Status) RecordObservation(source string, success bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = s.now()
	s.count++
	s.status = "healthy"
	if !success {
		s.status = "unhealthy"
	}
	if err != nil {
		s.errors = append(s.errors, handlers.ErrorEntry{Timestamp: s.last, Source: source, Error: err.Error()})
		if len(s.errors) > maxErrors {
			s.errors = append(s.errors[:0], s.errors[len(s.errors)-maxErrors:]...)
		}
	}
}

// Report implements handlers.HealthReporter.
func (s *Status) Report() handlers.HealthReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r := handlers.HealthReport{
		Status:        s.status,
		UptimeSeconds: now.Sub(s.started).Seconds(),
		ScrapeCount:   s.count,
		RecentErrors:  []handlers.ErrorEntry{},
	}
	if !s.last.IsZero() {
		last := s.last
		since := now.Sub(last).Seconds()
		r.LastScrape = &last
		r.SinceLastScrapeSeconds = &since
	}
	from := max(len(s.errors)-reportErrors, 0)
	r.RecentErrors = append(r.RecentErrors, s.errors[from:]...)
	return r
}
