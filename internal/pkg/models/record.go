package models

// ScoreEntry is one point of a record's score history.
type ScoreEntry struct {
	Timestamp Timestamp `json:"timestamp"`
	Score
}

// OddsEntry is one point of a record's odds history.
type OddsEntry struct {
	Timestamp Timestamp `json:"timestamp"`
	OddsLines
}

// StatusEntry is one point of a record's status history.
type StatusEntry struct {
	Timestamp Timestamp   `json:"timestamp"`
	Status    MatchStatus `json:"status"`
}

// MatchRecord is the persisted, versioned form of a Match. Its JSON layout is
// shared with data written by earlier deployments and must not change.
type MatchRecord struct {
	ID           string      `json:"id"`
	MatchID      string      `json:"match_id"`
	Player1      Player      `json:"player1"`
	Player2      Player      `json:"player2"`
	Status       MatchStatus `json:"status"`
	Score        *Score      `json:"score"`
	Odds         *Odds       `json:"odds"`
	StartTime    *Timestamp  `json:"start_time"`
	League       *string     `json:"league"`
	Tournament   *string     `json:"tournament"`
	CreatedAt    Timestamp   `json:"created_at"`
	LastUpdated  Timestamp   `json:"last_updated"`
	ScrapeSource string      `json:"scrape_source"`

	ScoreHistory  []ScoreEntry  `json:"score_history"`
	OddsHistory   []OddsEntry   `json:"odds_history"`
	StatusHistory []StatusEntry `json:"status_history"`
}

// Match returns the current snapshot held by the record.
func (r *MatchRecord) Match() Match {
	m := Match{
		ID:        r.MatchID,
		Player1:   r.Player1,
		Player2:   r.Player2,
		Status:    r.Status,
		Score:     r.Score,
		Odds:      r.Odds,
		StartTime: r.StartTime,
	}
	if r.League != nil {
		m.League = *r.League
	}
	if r.Tournament != nil {
		m.Tournament = *r.Tournament
	}
	return m
}

// SetSnapshot overwrites the snapshot fields with m. Histories and
// timestamps are left untouched.
func (r *MatchRecord) SetSnapshot(m Match) {
	r.ID = m.ID
	r.MatchID = m.ID
	r.Player1 = m.Player1
	r.Player2 = m.Player2
	r.Status = m.Status
	r.Score = m.Score
	r.Odds = m.Odds
	r.StartTime = m.StartTime
	r.League = nil
	if m.League != "" {
		r.League = StrPtr(m.League)
	}
	r.Tournament = nil
	if m.Tournament != "" {
		r.Tournament = StrPtr(m.Tournament)
	}
}

// HistoryLen returns the length of the history kept for facet f.
func (r *MatchRecord) HistoryLen(f Facet) int {
	switch f {
	case FacetScore:
		return len(r.ScoreHistory)
	case FacetOdds:
		return len(r.OddsHistory)
	case FacetStatus:
		return len(r.StatusHistory)
	}
	return 0
}

// Facet names one independently versioned attribute of a match.
type Facet string

const (
	FacetScore  Facet = "score"
	FacetOdds   Facet = "odds"
	FacetStatus Facet = "status"
)
