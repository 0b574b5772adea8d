package storage

import (
	"slices"
	"time"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

func scoreChanged(last models.Score, cur models.Score) bool {
	return last.CurrentSet != cur.CurrentSet || !slices.Equal(last.SetScores, cur.SetScores)
}

func oddsChanged(last models.OddsLines, cur models.OddsLines) bool {
	return !last.Equal(cur)
}

// appendHistory folds the facets of m into rec's histories at time now.
// Each facet gets a new entry only when it differs from its latest entry,
// then every history is trimmed to the most recent max entries.
func appendHistory(rec *models.MatchRecord, m models.Match, now time.Time, max int) {
	if m.Score != nil {
		n := len(rec.ScoreHistory)
		if n == 0 || scoreChanged(rec.ScoreHistory[n-1].Score, *m.Score) {
			rec.ScoreHistory = append(rec.ScoreHistory, models.ScoreEntry{Timestamp: models.At(now), Score: cloneScore(*m.Score)})
		}
	}
	if m.Odds != nil {
		n := len(rec.OddsHistory)
		if n == 0 || oddsChanged(rec.OddsHistory[n-1].OddsLines, m.Odds.OddsLines) {
			rec.OddsHistory = append(rec.OddsHistory, models.OddsEntry{Timestamp: models.At(now), OddsLines: m.Odds.OddsLines})
		}
	}
	n := len(rec.StatusHistory)
	if n == 0 || rec.StatusHistory[n-1].Status != m.Status {
		rec.StatusHistory = append(rec.StatusHistory, models.StatusEntry{Timestamp: models.At(now), Status: m.Status})
	}

	rec.ScoreHistory = keepLast(rec.ScoreHistory, max)
	rec.OddsHistory = keepLast(rec.OddsHistory, max)
	rec.StatusHistory = keepLast(rec.StatusHistory, max)
}

func keepLast[T any](s []T, max int) []T {
	if max <= 0 || len(s) <= max {
		return s
	}
	return slices.Clone(s[len(s)-max:])
}

func cloneScore(s models.Score) models.Score {
	s.SetScores = slices.Clone(s.SetScores)
	return s
}
