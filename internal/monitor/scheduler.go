// Package monitor runs one refresh loop per source and coordinates them.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Vodeneev/ttmonitor/internal/parser/browser"
	"github.com/Vodeneev/ttmonitor/internal/parser/parsers"
	"github.com/Vodeneev/ttmonitor/internal/pkg/config"
	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
	"github.com/Vodeneev/ttmonitor/internal/pkg/performance"
	"github.com/Vodeneev/ttmonitor/internal/pkg/storage"
	"github.com/Vodeneev/ttmonitor/internal/pkg/validation"
)

// Merger is the part of the store a scheduler writes to.
type Merger interface {
	Merge(ctx context.Context, matches []models.Match) storage.MergeResult
}

// Observation is published after every refresh attempt.
type Observation struct {
	Source     string
	Matches    []models.Match
	Extraction parsers.Result
	Merge      storage.MergeResult
	Full       bool
	Err        error
	At         time.Time
}

func (o Observation) Success() bool { return o.Err == nil }

// sourceState is everything a scheduler remembers between iterations.
type sourceState struct {
	matches  []models.Match
	result   parsers.Result
	html     string
	lastFull time.Time
}

// cycle carries one refresh attempt's output and timings.
type cycle struct {
	full     bool
	matches  []models.Match
	fetch    time.Duration
	extract  time.Duration
	started  time.Time
	parseRes parsers.Result
}

// Scheduler polls one source, adapting its cadence to whether any match is
// live, and hands every observation to the store.
type Scheduler struct {
	source    config.SourceConfig
	cfg       config.SchedulerConfig
	browser   browser.Browser
	extractor parsers.Extractor
	store     Merger
	out       chan<- Observation
	tracker   *performance.Tracker

	now   func() time.Time
	state stateCell

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewScheduler wires a scheduler for src. out may be nil.
func NewScheduler(src config.SourceConfig, cfg config.SchedulerConfig, b browser.Browser, ex parsers.Extractor, store Merger, out chan<- Observation) *Scheduler {
	return &Scheduler{
		source:    src,
		cfg:       cfg,
		browser:   b,
		extractor: ex,
		store:     store,
		out:       out,
		tracker:   performance.GetTracker(),
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

func (s *Scheduler) Name() string { return s.source.Name }

func (s *Scheduler) State() State { return s.state.load() }

// Stop asks the loop to exit at its next check. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// nextInterval picks the wait before the next refresh from the last
// observed matches.
func (s *Scheduler) nextInterval(matches []models.Match) time.Duration {
	if models.AnyLive(matches) {
		return s.cfg.LiveInterval
	}
	return s.cfg.UpcomingInterval
}

// Run performs the initial full refresh and then loops until ctx ends, Stop
// is called or max duration passes. Only a failed initial refresh is
// returned as an error.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer s.state.store(StateStopped)

	log := slog.With("source", s.source.Name)
	started := s.now()

	st, c, err := s.fullRefresh(ctx, sourceState{})
	if err != nil {
		log.Error("Initial load failed", "error", err)
		s.publish(ctx, c, storage.MergeResult{}, err)
		return fmt.Errorf("initial full refresh of %s: %w", s.source.Name, err)
	}
	s.commit(ctx, c)

	wait := s.nextInterval(st.matches)
	for {
		s.state.store(StatePolling)
		if s.cfg.MaxDuration > 0 {
			wait = min(wait, max(s.cfg.MaxDuration-s.now().Sub(started), 0))
		}
		if !s.sleep(ctx, wait) {
			log.Info("Scheduler stopped")
			return nil
		}
		if s.cfg.MaxDuration > 0 && s.now().Sub(started) >= s.cfg.MaxDuration {
			log.Info("Maximum run duration reached", "max_duration", s.cfg.MaxDuration)
			return nil
		}

		next, c, err := s.iterate(ctx, st)
		if err == nil {
			st = next
			s.commit(ctx, c)
			wait = s.nextInterval(st.matches)
			continue
		}

		log.Error("Monitor loop error", "error", err)
		s.publish(ctx, c, storage.MergeResult{}, err)
		st = s.backoff(ctx, st)
		wait = 0
	}
}

// iterate runs one smart or full refresh.
func (s *Scheduler) iterate(ctx context.Context, st sourceState) (sourceState, cycle, error) {
	if s.fullRefreshDue(ctx, st) {
		return s.fullRefresh(ctx, st)
	}
	return s.smartRefresh(ctx, st)
}

func (s *Scheduler) fullRefreshDue(ctx context.Context, st sourceState) bool {
	if s.now().Sub(st.lastFull) > s.cfg.FullRefreshTimeout {
		return true
	}
	aliveCtx, cancel := s.opContext(ctx)
	defer cancel()
	return !s.browser.IsAlive(aliveCtx)
}

// backoff waits out the error delays around one recovery full refresh. The
// previous state is kept when recovery fails.
func (s *Scheduler) backoff(ctx context.Context, st sourceState) sourceState {
	s.state.store(StateErrorBackoff)
	log := slog.With("source", s.source.Name)

	if !s.sleep(ctx, s.cfg.RecoveryDelay) {
		return st
	}
	next, c, err := s.fullRefresh(ctx, st)
	if err != nil {
		log.Error("Recovery failed, continuing", "error", err)
		s.publish(ctx, c, storage.MergeResult{}, err)
	} else {
		st = next
		s.commit(ctx, c)
	}

	s.state.store(StateErrorBackoff)
	s.sleep(ctx, s.cfg.ErrorBackoff)
	return st
}

// opContext bounds one adapter call. It is detached from ctx cancellation so
// in-flight calls finish when the scheduler is stopped.
func (s *Scheduler) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
}

func (s *Scheduler) fullRefresh(ctx context.Context, st sourceState) (sourceState, cycle, error) {
	s.state.store(StateFullRefresh)
	c := cycle{full: true, started: s.now()}
	slog.Info("Performing full page refresh", "source", s.source.Name)

	opCtx, cancel := s.opContext(ctx)
	defer cancel()

	fetchStart := time.Now()
	if !s.browser.IsAlive(opCtx) {
		if err := s.browser.Restart(opCtx); err != nil {
			return st, c, fmt.Errorf("full refresh: %w", browser.Wrap("restart", "", err))
		}
	}
	html, err := s.browser.Fetch(opCtx, s.source.URL, s.source.WaitSelector)
	c.fetch = time.Since(fetchStart)
	if err != nil {
		return st, c, fmt.Errorf("full refresh: %w", browser.Wrap("fetch", s.source.URL, err))
	}

	if err := s.extract(html, &c); err != nil {
		return st, c, fmt.Errorf("full refresh: %w", err)
	}

	slog.Info("Full refresh found matches", "source", s.source.Name, "count", len(c.matches))
	return sourceState{matches: c.matches, result: c.parseRes, html: html, lastFull: s.now()}, c, nil
}

func (s *Scheduler) smartRefresh(ctx context.Context, st sourceState) (sourceState, cycle, error) {
	s.state.store(StateSmartRefresh)
	c := cycle{started: s.now()}

	opCtx, cancel := s.opContext(ctx)
	fetchStart := time.Now()
	html, err := s.browser.RefreshInPlace(opCtx)
	c.fetch = time.Since(fetchStart)
	cancel()
	if err != nil {
		slog.Warn("Smart refresh failed, falling back to full refresh", "source", s.source.Name, "error", err)
		return s.fullRefresh(ctx, st)
	}

	if html == st.html {
		c.matches = st.matches
		c.parseRes = st.result
		return st, c, nil
	}
	if err := s.extract(html, &c); err != nil {
		return st, c, fmt.Errorf("smart refresh: %w", err)
	}

	slog.Debug("Smart refresh found matches", "source", s.source.Name, "count", len(c.matches))
	st.matches = c.matches
	st.result = c.parseRes
	st.html = html
	return st, c, nil
}

func (s *Scheduler) extract(html string, c *cycle) error {
	start := time.Now()
	res, err := s.extractor.Extract(html)
	c.extract = time.Since(start)
	if err != nil {
		return err
	}
	for i := range res.Matches {
		if res.Matches[i].League == "" {
			res.Matches[i].League = s.source.Name
		}
	}
	c.parseRes = res
	valid, invalid := validation.Clean(res.Matches)
	for _, err := range invalid {
		slog.Warn("Dropping invalid match", "source", s.source.Name, "error", err)
	}
	c.matches = valid
	if res.Failed()+res.Skipped() > 0 {
		slog.Warn("Some match containers were not parsed", "source", s.source.Name, "skipped", res.Skipped(), "failed", res.Failed())
	}
	return nil
}

// commit merges a successful cycle into the store and publishes it.
func (s *Scheduler) commit(ctx context.Context, c cycle) {
	storeStart := time.Now()
	res := s.store.Merge(context.WithoutCancel(ctx), c.matches)
	storeDur := time.Since(storeStart)

	if s.tracker != nil {
		s.tracker.RecordCycle(performance.Cycle{
			Source:  s.source.Name,
			Full:    c.full,
			Fetch:   c.fetch,
			Extract: c.extract,
			Store:   storeDur,
			Total:   c.fetch + c.extract + storeDur,
			Matches: len(c.matches),
			Stored:  res.Stored,
			Success: true,
		})
	}
	s.publish(ctx, c, res, nil)
}

func (s *Scheduler) publish(ctx context.Context, c cycle, res storage.MergeResult, err error) {
	if err != nil && s.tracker != nil {
		s.tracker.RecordCycle(performance.Cycle{
			Source: s.source.Name,
			Full:   c.full,
			Fetch:  c.fetch,
			Total:  c.fetch + c.extract,
			Error:  err.Error(),
		})
	}
	if s.out == nil {
		return
	}
	obs := Observation{
		Source:     s.source.Name,
		Matches:    c.matches,
		Extraction: c.parseRes,
		Merge:      res,
		Full:       c.full,
		Err:        err,
		At:         s.now(),
	}
	select {
	case s.out <- obs:
	case <-ctx.Done():
	}
}

// sleep waits for d or until ctx ends. It reports whether the loop should
// continue.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return ctx.Err() == nil
	case <-ctx.Done():
		return false
	}
}
