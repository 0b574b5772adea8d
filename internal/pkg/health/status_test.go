package health

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func TestStatusReport(t *testing.T) {
	clock := &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := newStatus(clock.now)

	r := s.Report()
	assert.Equal(t, "starting", r.Status)
	assert.Nil(t, r.LastScrape)
	assert.Nil(t, r.SinceLastScrapeSeconds)
	assert.Empty(t, r.RecentErrors)

	clock.t = clock.t.Add(10 * time.Second)
	s.RecordObservation("TT Cup", true, nil)
	clock.t = clock.t.Add(5 * time.Second)

	r = s.Report()
	assert.Equal(t, "healthy", r.Status)
	assert.Equal(t, int64(1), r.ScrapeCount)
	assert.InDelta(t, 15, r.UptimeSeconds, 0.001)
	require.NotNil(t, r.SinceLastScrapeSeconds)
	assert.InDelta(t, 5, *r.SinceLastScrapeSeconds, 0.001)

	s.RecordObservation("TT Cup", false, errors.New("timeout"))
	r = s.Report()
	assert.Equal(t, "unhealthy", r.Status)
	require.Len(t, r.RecentErrors, 1)
	assert.Equal(t, "TT Cup", r.RecentErrors[0].Source)
	assert.Equal(t, "timeout", r.RecentErrors[0].Error)
}

func TestStatusKeepsRecentErrors(t *testing.T) {
	s := NewStatus()
	for i := 0; i < 15; i++ {
		s.RecordObservation("src", false, fmt.Errorf("error %d", i))
	}

	assert.Len(t, s.errors, maxErrors)
	assert.Equal(t, "error 5", s.errors[0].Error)

	r := s.Report()
	require.Len(t, r.RecentErrors, reportErrors)
	assert.Equal(t, "error 12", r.RecentErrors[0].Error)
	assert.Equal(t, "error 14", r.RecentErrors[2].Error)
	assert.Equal(t, int64(15), r.ScrapeCount)
}
