package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/ttmonitor/internal/parser/browser"
	"github.com/Vodeneev/ttmonitor/internal/parser/parsers/hardrock"
	"github.com/Vodeneev/ttmonitor/internal/pkg/config"
	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
	"github.com/Vodeneev/ttmonitor/internal/pkg/storage"
)

func fastConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		LiveInterval:       5 * time.Millisecond,
		UpcomingInterval:   5 * time.Millisecond,
		FullRefreshTimeout: time.Hour,
		RecoveryDelay:      time.Millisecond,
		ErrorBackoff:       time.Millisecond,
		FetchTimeout:       time.Second,
	}
}

var testSource = config.SourceConfig{Name: "TT Cup", URL: "https://example.test/tt-cup"}

type harness struct {
	sched *Scheduler
	b     *fakeBrowser
	ex    *lineExtractor
	store *storage.MatchStore
	obs   chan Observation
	done  chan error
}

func startScheduler(t *testing.T, cfg config.SchedulerConfig, b *fakeBrowser) *harness {
	t.Helper()
	h := &harness{
		b:     b,
		ex:    &lineExtractor{},
		store: storage.NewMatchStore(storage.NewMemoryTransport()),
		obs:   make(chan Observation, 256),
		done:  make(chan error, 1),
	}
	h.sched = NewScheduler(testSource, cfg, b, h.ex, h.store, h.obs)
	h.sched.tracker = nil
	go func() { h.done <- h.sched.Run(context.Background()) }()
	t.Cleanup(func() {
		h.sched.Stop()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("scheduler did not stop")
		}
	})
	return h
}

// collect reads n observations or fails after a timeout.
func (h *harness) collect(t *testing.T, n int) []Observation {
	t.Helper()
	var out []Observation
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case o := <-h.obs:
			out = append(out, o)
		case <-timeout:
			t.Fatalf("got %d observations, want %d", len(out), n)
		}
	}
	return out
}

func TestNextInterval(t *testing.T) {
	cfg := fastConfig()
	cfg.LiveInterval = 15 * time.Second
	cfg.UpcomingInterval = 180 * time.Second
	s := NewScheduler(testSource, cfg, &fakeBrowser{}, &lineExtractor{}, nil, nil)

	live := []models.Match{{ID: "a", Status: models.StatusUpcoming}, {ID: "b", Status: models.StatusLive}}
	upcoming := []models.Match{{ID: "a", Status: models.StatusUpcoming}}

	assert.Equal(t, 15*time.Second, s.nextInterval(live))
	assert.Equal(t, 180*time.Second, s.nextInterval(upcoming))
	assert.Equal(t, 180*time.Second, s.nextInterval(nil))
}

func TestInitialFullRefreshFailureAborts(t *testing.T) {
	b := &fakeBrowser{fetchResults: []result{fail("connection refused")}}
	s := NewScheduler(testSource, fastConfig(), b, &lineExtractor{}, storage.NewMatchStore(storage.NewMemoryTransport()), nil)
	s.tracker = nil

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrAcquisition)
	assert.Equal(t, StateStopped, s.State())
}

func TestInitialLoadIsStoredAndLabelled(t *testing.T) {
	b := &fakeBrowser{fetchResults: []result{ok("m1:live,m2:upcoming")}, refreshResults: []result{ok("m1:live,m2:upcoming")}}
	h := startScheduler(t, fastConfig(), b)

	first := h.collect(t, 1)[0]
	assert.True(t, first.Success())
	assert.True(t, first.Full)
	assert.Equal(t, 2, first.Merge.Stored)
	assert.Equal(t, 2, first.Extraction.Parsed())
	for _, m := range first.Matches {
		assert.Equal(t, "TT Cup", m.League)
	}

	rec, err := h.store.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, rec.League)
	assert.Equal(t, "TT Cup", *rec.League)
}

func TestSmartRefreshSkipsExtractionWhenUnchanged(t *testing.T) {
	b := &fakeBrowser{fetchResults: []result{ok("m1:live")}, refreshResults: []result{ok("m1:live")}}
	h := startScheduler(t, fastConfig(), b)

	obs := h.collect(t, 4)
	for _, o := range obs[1:] {
		assert.True(t, o.Success())
		assert.False(t, o.Full)
		require.Len(t, o.Matches, 1)
		assert.Equal(t, "m1", o.Matches[0].ID)
	}
	assert.Equal(t, 1, h.ex.callCount())

	rec, err := h.store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Len(t, rec.StatusHistory, 1)
}

func TestSmartRefreshExtractsChangedMarkup(t *testing.T) {
	b := &fakeBrowser{
		fetchResults:   []result{ok("m1:upcoming")},
		refreshResults: []result{ok("m1:live")},
	}
	h := startScheduler(t, fastConfig(), b)

	obs := h.collect(t, 2)
	assert.Equal(t, models.StatusLive, obs[1].Matches[0].Status)

	rec, err := h.store.Get(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, rec.StatusHistory, 2)
	assert.Equal(t, models.StatusLive, rec.StatusHistory[1].Status)
}

func TestSmartRefreshFailureFallsBackToFullRefresh(t *testing.T) {
	b := &fakeBrowser{
		fetchResults:   []result{ok("m1:live")},
		refreshResults: []result{fail("tab crashed")},
	}
	h := startScheduler(t, fastConfig(), b)

	obs := h.collect(t, 3)
	assert.True(t, obs[1].Success())
	assert.True(t, obs[1].Full)

	fetches, refreshes, _ := b.counts()
	assert.GreaterOrEqual(t, fetches, 3)
	assert.GreaterOrEqual(t, refreshes, 2)
}

func TestFullRefreshWhenTimeoutElapsed(t *testing.T) {
	cfg := fastConfig()
	cfg.FullRefreshTimeout = time.Nanosecond
	b := &fakeBrowser{fetchResults: []result{ok("m1:upcoming")}, refreshResults: []result{ok("m1:upcoming")}}
	h := startScheduler(t, cfg, b)

	obs := h.collect(t, 3)
	for _, o := range obs {
		assert.True(t, o.Full)
	}
	_, refreshes, _ := b.counts()
	assert.Zero(t, refreshes)
}

func TestDeadAdapterTriggersRestart(t *testing.T) {
	b := &fakeBrowser{fetchResults: []result{ok("m1:upcoming")}, refreshResults: []result{ok("m1:upcoming")}}
	h := startScheduler(t, fastConfig(), b)
	h.collect(t, 1)

	_, _, restarts := b.counts()
	assert.Equal(t, 1, restarts)
}

func TestErrorBackoffRecovers(t *testing.T) {
	b := &fakeBrowser{
		// initial load, failing fallback fetch, recovery fetch
		fetchResults:   []result{ok("m1:live"), fail("timeout"), ok("m1:live,m2:live")},
		refreshResults: []result{fail("tab crashed"), ok("m1:live,m2:live")},
	}
	h := startScheduler(t, fastConfig(), b)

	obs := h.collect(t, 3)
	assert.True(t, obs[0].Success())
	assert.False(t, obs[1].Success())
	assert.ErrorIs(t, obs[1].Err, browser.ErrAcquisition)
	assert.True(t, obs[2].Success())
	assert.True(t, obs[2].Full)
	assert.Len(t, obs[2].Matches, 2)

	// the loop keeps running after recovery
	h.collect(t, 1)
}

func TestFailedRecoveryKeepsPolling(t *testing.T) {
	b := &fakeBrowser{
		fetchResults:   []result{ok("m1:live"), fail("timeout")},
		refreshResults: []result{fail("tab crashed")},
	}
	h := startScheduler(t, fastConfig(), b)

	obs := h.collect(t, 6)
	assert.True(t, obs[0].Success())
	for i, o := range obs[1:] {
		assert.False(t, o.Success(), "observation %d", i+1)
		assert.ErrorIs(t, o.Err, browser.ErrAcquisition)
		assert.Equal(t, "TT Cup", o.Source)
	}
	assert.NotEqual(t, StateStopped, h.sched.State())
	select {
	case err := <-h.done:
		h.done <- err
		t.Fatalf("scheduler exited after failed recovery: %v", err)
	default:
	}

	// the last good state survives the failures
	rec, err := h.store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, rec.Status)
}

func TestParseErrorOnSmartRefreshTriggersBackoff(t *testing.T) {
	b := &fakeBrowser{
		fetchResults:   []result{ok("m1:live")},
		refreshResults: []result{ok("broken"), ok("m1:live")},
	}
	h := startScheduler(t, fastConfig(), b)

	obs := h.collect(t, 4)
	assert.True(t, obs[0].Success())

	require.Error(t, obs[1].Err)
	assert.ErrorIs(t, obs[1].Err, hardrock.ErrParse)
	var perr *hardrock.ParseError
	assert.ErrorAs(t, obs[1].Err, &perr)
	assert.False(t, obs[1].Full)

	assert.True(t, obs[2].Success())
	assert.True(t, obs[2].Full)
	assert.True(t, obs[3].Success())
	assert.NotEqual(t, StateStopped, h.sched.State())
}

func TestMaxDurationCutsWaitShort(t *testing.T) {
	cfg := fastConfig()
	cfg.UpcomingInterval = time.Hour
	cfg.MaxDuration = 30 * time.Millisecond
	b := &fakeBrowser{fetchResults: []result{ok("m1:upcoming")}}
	h := startScheduler(t, cfg, b)

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(time.Second):
		t.Fatal("scheduler waited past max duration")
	}
	fetches, refreshes, _ := b.counts()
	assert.Equal(t, 1, fetches)
	assert.Zero(t, refreshes)
}

func TestMaxDurationEndsLoop(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxDuration = 20 * time.Millisecond
	b := &fakeBrowser{fetchResults: []result{ok("m1:live")}, refreshResults: []result{ok("m1:live")}}
	h := startScheduler(t, cfg, b)

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler ignored max duration")
	}
	assert.Equal(t, StateStopped, h.sched.State())
}

func TestStopInterruptsWait(t *testing.T) {
	cfg := fastConfig()
	cfg.UpcomingInterval = time.Hour
	b := &fakeBrowser{fetchResults: []result{ok("m1:upcoming")}}
	h := startScheduler(t, cfg, b)
	h.collect(t, 1)

	require.Eventually(t, func() bool { return h.sched.State() == StatePolling }, time.Second, time.Millisecond)
	h.sched.Stop()
	h.sched.Stop()

	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(time.Second):
		t.Fatal("stop did not interrupt the wait")
	}
	assert.Equal(t, StateStopped, h.sched.State())
}

func TestInvalidMatchesAreNotStored(t *testing.T) {
	b := &fakeBrowser{fetchResults: []result{ok("m1:live,bad id:live,m3:paused")}, refreshResults: []result{ok("m1:live,bad id:live,m3:paused")}}
	h := startScheduler(t, fastConfig(), b)

	first := h.collect(t, 1)[0]
	assert.Equal(t, 3, first.Extraction.Parsed())
	require.Len(t, first.Matches, 1)
	assert.Equal(t, "m1", first.Matches[0].ID)
	assert.Equal(t, 1, first.Merge.Stored)

	st, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
}
