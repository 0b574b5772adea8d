package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Vodeneev/ttmonitor/internal/parser/browser"
	"github.com/Vodeneev/ttmonitor/internal/parser/parsers"
	"github.com/Vodeneev/ttmonitor/internal/parser/parsers/hardrock"
	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

// fakeBrowser serves scripted pages. fetchResults and refreshResults are
// consumed in order; the last entry repeats.
type fakeBrowser struct {
	mu sync.Mutex

	fetchResults   []result
	refreshResults []result
	alive          bool

	fetches, refreshes, restarts int
}

type result struct {
	html string
	err  error
}

func ok(html string) result { return result{html: html} }

func fail(msg string) result {
	return result{err: browser.Wrap("fetch", "", errors.New(msg))}
}

func scripted(rs []result, n int) result {
	if len(rs) == 0 {
		return result{err: errors.New("no scripted result")}
	}
	if n >= len(rs) {
		return rs[len(rs)-1]
	}
	return rs[n]
}

func (f *fakeBrowser) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := scripted(f.fetchResults, f.fetches)
	f.fetches++
	return r.html, r.err
}

func (f *fakeBrowser) RefreshInPlace(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := scripted(f.refreshResults, f.refreshes)
	f.refreshes++
	return r.html, r.err
}

func (f *fakeBrowser) IsAlive(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeBrowser) Restart(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restarts++
	f.alive = true
	return nil
}

func (f *fakeBrowser) Close() error { return nil }

func (f *fakeBrowser) counts() (fetches, refreshes, restarts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.refreshes, f.restarts
}

// lineExtractor reads pages of the form "id:status,id:status". The page
// "broken" is rejected as a whole.
type lineExtractor struct {
	mu    sync.Mutex
	calls int
}

func (e *lineExtractor) GetName() string { return "lines" }

func (e *lineExtractor) Extract(html string) (parsers.Result, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	var res parsers.Result
	if html == "broken" {
		return res, &hardrock.ParseError{Err: errors.New("unexpected EOF")}
	}
	if html == "" {
		return res, nil
	}
	for i, item := range strings.Split(html, ",") {
		id, status, _ := strings.Cut(item, ":")
		res.Matches = append(res.Matches, models.Match{
			ID:      id,
			Player1: models.Player{Name: "P1 " + id},
			Player2: models.Player{Name: "P2 " + id},
			Status:  models.MatchStatus(status),
		})
		res.Containers = append(res.Containers, parsers.ContainerOutcome{Index: i, MatchID: id, Outcome: parsers.OutcomeParsed})
	}
	return res, nil
}

func (e *lineExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
