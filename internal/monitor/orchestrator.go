package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Vodeneev/ttmonitor/internal/pkg/config"
	"github.com/Vodeneev/ttmonitor/internal/pkg/health"
	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
	"github.com/Vodeneev/ttmonitor/internal/pkg/storage"
)

// Maintainer is the part of the store the orchestrator maintains.
type Maintainer interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int, error)
	Stats(ctx context.Context) (storage.Stats, error)
}

type task struct {
	sched *Scheduler
	done  chan struct{}
	err   error
}

func (t *task) alive() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Orchestrator runs one scheduler per source, consumes their observations
// and keeps the store tidy.
type Orchestrator struct {
	cfg      config.MaintenanceConfig
	store    Maintainer
	reporter health.Reporter

	obs   chan Observation
	tasks []*task
}

// NewOrchestrator creates an orchestrator. reporter may be nil.
func NewOrchestrator(cfg config.MaintenanceConfig, store Maintainer, reporter health.Reporter) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		reporter: reporter,
		obs:      make(chan Observation, 64),
	}
}

// Observations is the channel schedulers added to o must publish on.
func (o *Orchestrator) Observations() chan<- Observation {
	return o.obs
}

// Add registers a scheduler. It must be called before Run.
func (o *Orchestrator) Add(s *Scheduler) {
	o.tasks = append(o.tasks, &task{sched: s, done: make(chan struct{})})
}

// Run starts every scheduler and blocks until ctx is cancelled or all
// schedulers have exited, then shuts them down.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.tasks) == 0 {
		return fmt.Errorf("no schedulers to run")
	}

	allDone := make(chan struct{})
	remaining := len(o.tasks)
	exited := make(chan struct{}, len(o.tasks))
	for _, t := range o.tasks {
		slog.Info("Starting continuous monitoring", "source", t.sched.Name())
		go func(t *task) {
			t.err = t.sched.Run(ctx)
			close(t.done)
			exited <- struct{}{}
		}(t)
	}
	go func() {
		for i := 0; i < remaining; i++ {
			<-exited
		}
		close(allDone)
	}()
	slog.Info("Started monitoring tasks", "count", len(o.tasks))

	liveness, stopLiveness := ticker(o.cfg.LivenessInterval)
	defer stopLiveness()
	cleanup, stopCleanup := ticker(o.cfg.CleanupInterval)
	defer stopCleanup()

	for {
		select {
		case obs := <-o.obs:
			o.handle(obs)
		case <-liveness:
			o.checkLiveness()
		case <-cleanup:
			o.sweep(ctx)
		case <-allDone:
			slog.Info("All monitoring tasks have exited")
			o.drain()
			o.shutdown()
			return nil
		case <-ctx.Done():
			slog.Info("Stopping all monitoring tasks")
			o.shutdown()
			return nil
		}
	}
}

// ticker returns a nil channel for non-positive d, which disables the job.
func ticker(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (o *Orchestrator) handle(obs Observation) {
	if o.reporter != nil {
		o.reporter.RecordObservation(obs.Source, obs.Success(), obs.Err)
	}
	if !obs.Success() {
		return
	}
	for _, m := range obs.Matches {
		if m.IsLive() {
			slog.Info(liveLine(m))
		}
	}
	if failed := obs.Merge.Failed(); len(failed) > 0 {
		slog.Warn("Some matches were not stored", "source", obs.Source, "failed", len(failed))
	}
}

// liveLine formats "LIVE [league]: p1 vs p2 - score [ml1|ml2]".
func liveLine(m models.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "LIVE [%s]: %s", m.League, m.Name())
	if m.Score != nil {
		fmt.Fprintf(&b, " - %s", m.Score)
	}
	if m.Odds != nil {
		fmt.Fprintf(&b, " [%s|%s]", deref(m.Odds.Player1Moneyline), deref(m.Odds.Player2Moneyline))
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// checkLiveness logs exited tasks. They are not restarted.
func (o *Orchestrator) checkLiveness() []string {
	var dead []string
	for _, t := range o.tasks {
		if !t.alive() {
			dead = append(dead, t.sched.Name())
		}
	}
	if len(dead) > 0 {
		slog.Warn("Monitoring tasks died", "sources", dead)
	}
	return dead
}

func (o *Orchestrator) sweep(ctx context.Context) {
	n, err := o.store.DeleteOlderThan(ctx, o.cfg.Retention)
	if err != nil {
		slog.Error("Cleanup failed", "error", err)
		return
	}
	slog.Info("Cleanup finished", "deleted", n, "retention", o.cfg.Retention)
}

// drain handles observations still buffered after every task exited.
func (o *Orchestrator) drain() {
	for {
		select {
		case obs := <-o.obs:
			o.handle(obs)
		default:
			return
		}
	}
}

func (o *Orchestrator) shutdown() {
	for _, t := range o.tasks {
		t.sched.Stop()
	}
	for _, t := range o.tasks {
		if !t.alive() {
			continue
		}
		slog.Info("Waiting for monitoring task to stop", "source", t.sched.Name())
		select {
		case <-t.done:
		case <-time.After(o.cfg.ShutdownTimeout):
			slog.Warn("Monitoring task did not stop in time", "source", t.sched.Name(), "timeout", o.cfg.ShutdownTimeout)
		}
	}
	for _, t := range o.tasks {
		if !t.alive() && t.err != nil {
			slog.Error("Monitoring task failed", "source", t.sched.Name(), "error", t.err)
		}
	}

	statsCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := o.store.Stats(statsCtx)
	if err != nil {
		slog.Error("Failed to read final stats", "error", err)
		return
	}
	slog.Info("Final store stats", "total", st.Total, "live", st.Live, "upcoming", st.Upcoming)
}
