package performance

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

const maxRecentCycles = 1000

// Tracker tracks timings of refresh cycles per source
type Tracker struct {
	mu sync.RWMutex

	sources map[string]*sourceStats
	recent  []Cycle
}

// Cycle is one fetch-extract-store pass over a source
type Cycle struct {
	Source    string
	Full      bool
	Fetch     time.Duration
	Extract   time.Duration
	Store     time.Duration
	Total     time.Duration
	Matches   int
	Stored    int
	Success   bool
	Error     string
	Timestamp time.Time
}

type sourceStats struct {
	runs, fullRuns, failures int
	matches, stored          int

	fetch, extract, store, total time.Duration
}

var globalTracker = NewTracker()

// GetTracker returns the global performance tracker
func GetTracker() *Tracker {
	return globalTracker
}

func NewTracker() *Tracker {
	return &Tracker{
		sources: make(map[string]*sourceStats),
		recent:  make([]Cycle, 0, 64),
	}
}

// Reset resets all metrics
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sources = make(map[string]*sourceStats)
	t.recent = t.recent[:0]
}

// RecordCycle records a complete refresh cycle
func (t *Tracker) RecordCycle(c Cycle) {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sources[c.Source]
	if !ok {
		st = &sourceStats{}
		t.sources[c.Source] = st
	}
	st.runs++
	if c.Full {
		st.fullRuns++
	}
	if !c.Success {
		st.failures++
	}
	st.matches += c.Matches
	st.stored += c.Stored
	st.fetch += c.Fetch
	st.extract += c.Extract
	st.store += c.Store
	st.total += c.Total

	if len(t.recent) >= maxRecentCycles {
		copy(t.recent, t.recent[1:])
		t.recent = t.recent[:len(t.recent)-1]
	}
	t.recent = append(t.recent, c)
}

// SourceMetrics is the per-source part of MetricsResponse
type SourceMetrics struct {
	Runs           int     `json:"runs"`
	FullRefreshes  int     `json:"full_refreshes"`
	Failures       int     `json:"failures"`
	TotalMatches   int     `json:"total_matches"`
	TotalStored    int     `json:"total_stored"`
	AvgFetch       string  `json:"avg_fetch"`
	AvgExtract     string  `json:"avg_extract"`
	AvgStore       string  `json:"avg_store"`
	AvgTotal       string  `json:"avg_total"`
	FetchPercent   float64 `json:"fetch_percent"`
	ExtractPercent float64 `json:"extract_percent"`
	StorePercent   float64 `json:"store_percent"`
}

// SlowCycle is one entry of MetricsResponse.SlowestCycles
type SlowCycle struct {
	Source    string `json:"source"`
	Full      bool   `json:"full"`
	Duration  string `json:"duration"`
	Timestamp string `json:"timestamp"`
}

// MetricsResponse represents the JSON response structure for /metrics endpoint
type MetricsResponse struct {
	Overall struct {
		TotalRuns    int `json:"total_runs"`
		TotalMatches int `json:"total_matches"`
		Failures     int `json:"failures"`
	} `json:"overall"`

	Sources       map[string]SourceMetrics `json:"sources"`
	SlowestCycles []SlowCycle              `json:"slowest_cycles"`
}

func percent(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// GetMetrics returns structured metrics for JSON API
func (t *Tracker) GetMetrics() MetricsResponse {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var resp MetricsResponse
	resp.Sources = make(map[string]SourceMetrics, len(t.sources))

	for name, st := range t.sources {
		resp.Overall.TotalRuns += st.runs
		resp.Overall.TotalMatches += st.matches
		resp.Overall.Failures += st.failures

		runs := time.Duration(max(st.runs, 1))
		resp.Sources[name] = SourceMetrics{
			Runs:           st.runs,
			FullRefreshes:  st.fullRuns,
			Failures:       st.failures,
			TotalMatches:   st.matches,
			TotalStored:    st.stored,
			AvgFetch:       (st.fetch / runs).String(),
			AvgExtract:     (st.extract / runs).String(),
			AvgStore:       (st.store / runs).String(),
			AvgTotal:       (st.total / runs).String(),
			FetchPercent:   percent(st.fetch, st.total),
			ExtractPercent: percent(st.extract, st.total),
			StorePercent:   percent(st.store, st.total),
		}
	}

	for _, c := range t.slowest(5) {
		resp.SlowestCycles = append(resp.SlowestCycles, SlowCycle{
			Source:    c.Source,
			Full:      c.Full,
			Duration:  c.Total.String(),
			Timestamp: c.Timestamp.Format(time.RFC3339),
		})
	}
	return resp
}

// slowest returns the n longest recent cycles. t.mu must be held.
func (t *Tracker) slowest(n int) []Cycle {
	cycles := make([]Cycle, len(t.recent))
	copy(cycles, t.recent)
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Total > cycles[j].Total })
	if len(cycles) > n {
		cycles = cycles[:n]
	}
	return cycles
}

// PrintSummary logs the per-source summary
func (t *Tracker) PrintSummary() {
	m := t.GetMetrics()
	if m.Overall.TotalRuns == 0 {
		slog.Info("No performance data collected yet")
		return
	}

	slog.Info("PERFORMANCE SUMMARY",
		"total_runs", m.Overall.TotalRuns,
		"total_matches", m.Overall.TotalMatches,
		"failures", m.Overall.Failures)

	names := make([]string, 0, len(m.Sources))
	for name := range m.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := m.Sources[name]
		slog.Info("Source timing (average per cycle)",
			"source", name,
			"runs", s.Runs,
			"full_refreshes", s.FullRefreshes,
			"failures", s.Failures,
			"fetch", s.AvgFetch, "fetch_percent", s.FetchPercent,
			"extract", s.AvgExtract, "extract_percent", s.ExtractPercent,
			"store", s.AvgStore, "store_percent", s.StorePercent,
			"total", s.AvgTotal)
	}
}
