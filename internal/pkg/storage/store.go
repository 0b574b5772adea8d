package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

const (
	DefaultMaxHistory   = 100
	DefaultScrapeSource = "hardrock"

	lockStripes = 64
)

// MergeOutcome says what happened to one match during Merge.
type MergeOutcome string

const (
	OutcomeCreated MergeOutcome = "created"
	OutcomeUpdated MergeOutcome = "updated"
	OutcomeFailed  MergeOutcome = "failed"
)

// MatchResult is the per-match part of a MergeResult.
type MatchResult struct {
	MatchID string
	Outcome MergeOutcome
	Err     error
}

// MergeResult reports a Merge call match by match.
type MergeResult struct {
	Results []MatchResult
	Stored  int
}

// Failed returns the results that were not stored.
func (r MergeResult) Failed() []MatchResult {
	var out []MatchResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// Stats summarizes the stored records.
type Stats struct {
	Total    int `json:"total_matches"`
	Live     int `json:"live_matches"`
	Upcoming int `json:"upcoming_matches"`
}

// Option configures a MatchStore.
type Option func(*MatchStore)

// WithMaxHistory caps every history at n entries.
func WithMaxHistory(n int) Option {
	return func(s *MatchStore) { s.maxHistory = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *MatchStore) { s.now = now }
}

// WithScrapeSource sets the scrape_source written on new records.
func WithScrapeSource(src string) Option {
	return func(s *MatchStore) { s.scrapeSource = src }
}

// MatchStore diffs incoming matches against their stored records and keeps
// capped per-facet histories. Merges of the same ID are serialized; merges
// of different IDs run concurrently.
type MatchStore struct {
	t            Transport
	maxHistory   int
	scrapeSource string
	now          func() time.Time
	locks        [lockStripes]sync.Mutex
}

func NewMatchStore(t Transport, opts ...Option) *MatchStore {
	s := &MatchStore{
		t:            t,
		maxHistory:   DefaultMaxHistory,
		scrapeSource: DefaultScrapeSource,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MatchStore) lock(id string) func() {
	mu := &s.locks[xxhash.Sum64String(id)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Merge folds matches into the store. A failure for one ID is logged and
// reported in the result; the rest of the batch is still merged.
func (s *MatchStore) Merge(ctx context.Context, matches []models.Match) MergeResult {
	res := MergeResult{Results: make([]MatchResult, 0, len(matches))}
	for _, m := range matches {
		outcome, err := s.mergeOne(ctx, m)
		if err != nil {
			slog.Error("Failed to store match", "match_id", m.ID, "error", err)
			res.Results = append(res.Results, MatchResult{MatchID: m.ID, Outcome: OutcomeFailed, Err: err})
			continue
		}
		res.Stored++
		res.Results = append(res.Results, MatchResult{MatchID: m.ID, Outcome: outcome})
	}
	slog.Info("Stored matches", "stored", res.Stored, "total", len(matches))
	return res
}

func (s *MatchStore) mergeOne(ctx context.Context, m models.Match) (MergeOutcome, error) {
	if m.ID == "" {
		return OutcomeFailed, &StoreError{Op: "merge", Err: errors.New("empty match id")}
	}

	unlock := s.lock(m.ID)
	defer unlock()

	existing, err := s.t.Get(ctx, m.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return OutcomeFailed, &StoreError{Op: "get", MatchID: m.ID, Err: err}
	}

	now := s.now()
	outcome := OutcomeUpdated
	rec := existing
	if rec == nil {
		outcome = OutcomeCreated
		rec = &models.MatchRecord{CreatedAt: models.At(now), ScrapeSource: s.scrapeSource}
	} else if rec.ScrapeSource == "" {
		rec.ScrapeSource = s.scrapeSource
	}
	rec.SetSnapshot(m)
	rec.LastUpdated = models.At(now)
	appendHistory(rec, m, now, s.maxHistory)

	if err := s.t.Upsert(ctx, rec); err != nil {
		return OutcomeFailed, &StoreError{Op: "upsert", MatchID: m.ID, Err: err}
	}
	return outcome, nil
}

// Get returns the record for id, or ErrNotFound.
func (s *MatchStore) Get(ctx context.Context, id string) (*models.MatchRecord, error) {
	rec, err := s.t.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, &StoreError{Op: "get", MatchID: id, Err: err}
	}
	return rec, nil
}

func (s *MatchStore) ByStatus(ctx context.Context, status models.MatchStatus) ([]*models.MatchRecord, error) {
	recs, err := s.t.Query(ctx, Filter{Status: status})
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	return recs, nil
}

// UpdatedWithin returns records whose last update is no older than d.
func (s *MatchStore) UpdatedWithin(ctx context.Context, d time.Duration) ([]*models.MatchRecord, error) {
	recs, err := s.t.Query(ctx, Filter{UpdatedAfter: s.now().Add(-d)})
	if err != nil {
		return nil, &StoreError{Op: "query", Err: err}
	}
	return recs, nil
}

// ChangedWithin returns records updated within d whose history for facet f
// holds more than threshold entries.
func (s *MatchStore) ChangedWithin(ctx context.Context, f models.Facet, threshold int, d time.Duration) ([]*models.MatchRecord, error) {
	recs, err := s.UpdatedWithin(ctx, d)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, rec := range recs {
		if rec.HistoryLen(f) > threshold {
			out = append(out, rec)
		}
	}
	return out, nil
}

// DeleteOlderThan removes records not updated for longer than age and
// returns how many were removed.
func (s *MatchStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age)
	stale, err := s.t.Query(ctx, Filter{UpdatedBefore: cutoff})
	if err != nil {
		return 0, &StoreError{Op: "query", Err: err}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	ids := make([]string, len(stale))
	for i, rec := range stale {
		ids[i] = rec.ID
	}
	n, err := s.t.Delete(ctx, ids)
	if err != nil {
		return n, &StoreError{Op: "delete", Err: err}
	}
	slog.Info("Deleted old matches", "deleted", n, "cutoff", cutoff.Format(time.RFC3339))
	return n, nil
}

// OddsHistory returns the odds history for id.
func (s *MatchStore) OddsHistory(ctx context.Context, id string) ([]models.OddsEntry, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.OddsHistory, nil
}

// ScoreProgression returns the score history for id.
func (s *MatchStore) ScoreProgression(ctx context.Context, id string) ([]models.ScoreEntry, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.ScoreHistory, nil
}

func (s *MatchStore) Stats(ctx context.Context) (Stats, error) {
	recs, err := s.t.Query(ctx, Filter{})
	if err != nil {
		return Stats{}, &StoreError{Op: "stats", Err: err}
	}
	st := Stats{Total: len(recs)}
	for _, rec := range recs {
		switch rec.Status {
		case models.StatusLive:
			st.Live++
		case models.StatusUpcoming:
			st.Upcoming++
		}
	}
	return st, nil
}

func (s *MatchStore) Close() error {
	if err := s.t.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}
