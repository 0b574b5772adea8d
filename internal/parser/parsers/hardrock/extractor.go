// Package hardrock extracts table tennis matches from rendered HardRock
// league pages.
package hardrock

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/ttmonitor/internal/parser/parsers"
	"github.com/Vodeneev/ttmonitor/internal/pkg/config"
	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

const Name = "hardrock"

func init() {
	parsers.Register(Name, func(*config.Config) parsers.Extractor {
		return New()
	})
}

var _ parsers.Extractor = (*Extractor)(nil)

// Extractor is stateless; one value may be shared between sources.
type Extractor struct {
	now func() time.Time
}

func New() *Extractor {
	return &Extractor{now: time.Now}
}

// NewWithClock is New with a fixed time source for odds timestamps.
func NewWithClock(now func() time.Time) *Extractor {
	return &Extractor{now: now}
}

func (e *Extractor) GetName() string {
	return Name
}

// Extract parses html into matches. Containers that cannot be turned into a
// match are reported in the result and never fail the call.
func (e *Extractor) Extract(html string) (parsers.Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return parsers.Result{}, &ParseError{Err: err}
	}

	var res parsers.Result
	containers, selector := findContainers(doc)
	if containers == nil {
		slog.Warn("No match containers found")
		return res, nil
	}
	res.Selector = selector
	slog.Debug("Found match containers", "selector", selector, "count", containers.Length())

	now := e.now()
	containers.Each(func(i int, c *goquery.Selection) {
		m, outcome := e.parseContainer(c, now)
		outcome.Index = i
		res.Containers = append(res.Containers, outcome)
		switch outcome.Outcome {
		case parsers.OutcomeParsed:
			res.Matches = append(res.Matches, m)
		case parsers.OutcomeFailed:
			slog.Warn("Error parsing match container", "index", i, "reason", outcome.Reason)
		default:
			slog.Debug("Skipped match container", "index", i, "reason", outcome.Reason)
		}
	})
	return res, nil
}

func findContainers(doc *goquery.Document) (*goquery.Selection, string) {
	for _, sel := range containerSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			return found, sel
		}
	}
	return nil, ""
}

func (e *Extractor) parseContainer(c *goquery.Selection, now time.Time) (m models.Match, out parsers.ContainerOutcome) {
	defer func() {
		if r := recover(); r != nil {
			m = models.Match{}
			out = parsers.ContainerOutcome{MatchID: out.MatchID, Outcome: parsers.OutcomeFailed, Reason: fmt.Sprint(r)}
		}
	}()

	id, _ := firstOf(c, idChain...)
	out.MatchID = id

	ps, _ := firstOf(c, playerChain...)
	if len(ps) != 2 {
		out.Outcome = parsers.OutcomeSkipped
		out.Reason = fmt.Sprintf("found %d players", len(ps))
		return m, out
	}

	m = models.Match{
		ID:        id,
		Player1:   ps[0],
		Player2:   ps[1],
		Status:    matchStatus(c),
		Odds:      extractOdds(c, now),
		StartTime: extractStartTime(c),
		League:    extractLeague(c),
	}
	if m.IsLive() {
		m.Score = extractScore(c)
	}

	out.Outcome = parsers.OutcomeParsed
	return m, out
}
