package parsers

import "github.com/Vodeneev/ttmonitor/internal/pkg/models"

// Extractor turns one rendered page into matches.
type Extractor interface {
	Extract(html string) (Result, error)
	GetName() string
}

// Outcome classifies how one container on the page was handled.
type Outcome string

const (
	OutcomeParsed  Outcome = "parsed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// ContainerOutcome records what happened to the container at Index.
type ContainerOutcome struct {
	Index   int
	MatchID string
	Outcome Outcome
	Reason  string
}

// Result is everything extracted from one page.
type Result struct {
	Matches    []models.Match
	Containers []ContainerOutcome
	Selector   string // container selector that matched, empty if none
}

func (r Result) count(o Outcome) int {
	n := 0
	for _, c := range r.Containers {
		if c.Outcome == o {
			n++
		}
	}
	return n
}

func (r Result) Parsed() int  { return r.count(OutcomeParsed) }
func (r Result) Skipped() int { return r.count(OutcomeSkipped) }
func (r Result) Failed() int  { return r.count(OutcomeFailed) }
