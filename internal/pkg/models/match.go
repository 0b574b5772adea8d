package models

import (
	"fmt"
	"strings"
)

// MatchStatus is derived by the extractor, never read from the page directly.
type MatchStatus string

const (
	StatusLive     MatchStatus = "live"
	StatusUpcoming MatchStatus = "upcoming"
	StatusEnded    MatchStatus = "ended"
)

// Valid reports whether s is one of the known statuses.
func (s MatchStatus) Valid() bool {
	switch s {
	case StatusLive, StatusUpcoming, StatusEnded:
		return true
	}
	return false
}

// Player is one side of a match.
type Player struct {
	Name    string  `json:"name"`
	Ranking *int    `json:"ranking"`
	Country *string `json:"country"`
}

func (p Player) String() string {
	return p.Name
}

// Score is the in-progress state of a live match.
type Score struct {
	CurrentSet int      `json:"current_set"`
	SetScores  []string `json:"set_scores"` // "p1-p2" per set, e.g. ["11-7", "9-11"]
	TotalGames *string  `json:"total_games"`
}

func (s Score) String() string {
	return fmt.Sprintf("Set %d: %s", s.CurrentSet, strings.Join(s.SetScores, " | "))
}

// OddsLines holds the eight independently priced fields of an odds snapshot.
type OddsLines struct {
	Player1Moneyline *string `json:"player1_moneyline"`
	Player2Moneyline *string `json:"player2_moneyline"`
	HandicapLine     *string `json:"handicap_line"`
	Player1Handicap  *string `json:"player1_handicap"`
	Player2Handicap  *string `json:"player2_handicap"`
	OverUnderLine    *string `json:"over_under_line"`
	OverOdds         *string `json:"over_odds"`
	UnderOdds        *string `json:"under_odds"`
}

// Equal compares the lines by value.
func (l OddsLines) Equal(o OddsLines) bool {
	return eqStr(l.Player1Moneyline, o.Player1Moneyline) &&
		eqStr(l.Player2Moneyline, o.Player2Moneyline) &&
		eqStr(l.HandicapLine, o.HandicapLine) &&
		eqStr(l.Player1Handicap, o.Player1Handicap) &&
		eqStr(l.Player2Handicap, o.Player2Handicap) &&
		eqStr(l.OverUnderLine, o.OverUnderLine) &&
		eqStr(l.OverOdds, o.OverOdds) &&
		eqStr(l.UnderOdds, o.UnderOdds)
}

func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Odds is a bundle of priced lines observed at Timestamp. Any subset may be absent.
type Odds struct {
	OddsLines
	Timestamp Timestamp `json:"timestamp"`
}

// HasMoneyline reports whether at least one moneyline price is present.
func (o *Odds) HasMoneyline() bool {
	return o != nil && (o.Player1Moneyline != nil || o.Player2Moneyline != nil)
}

// Match is one monitored table tennis match as observed on a single page load.
type Match struct {
	ID         string      `json:"match_id"`
	Player1    Player      `json:"player1"`
	Player2    Player      `json:"player2"`
	Status     MatchStatus `json:"status"`
	Score      *Score      `json:"score"`
	Odds       *Odds       `json:"odds"`
	StartTime  *Timestamp  `json:"start_time"`
	League     string      `json:"league,omitempty"`
	Tournament string      `json:"tournament,omitempty"`
}

// IsLive reports whether the match is in play.
func (m Match) IsLive() bool {
	return m.Status == StatusLive
}

// IsUpcoming reports whether the match has not started yet.
func (m Match) IsUpcoming() bool {
	return m.Status == StatusUpcoming
}

// Name returns "Player1 vs Player2".
func (m Match) Name() string {
	return m.Player1.Name + " vs " + m.Player2.Name
}

func (m Match) String() string {
	s := strings.ToUpper(string(m.Status)) + ": " + m.Name()
	if m.Score != nil {
		s += " (" + m.Score.String() + ")"
	}
	return s
}

// AnyLive reports whether at least one match in the list is live.
func AnyLive(matches []Match) bool {
	for _, m := range matches {
		if m.IsLive() {
			return true
		}
	}
	return false
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
