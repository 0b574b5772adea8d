package validation

import (
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

var controlChars = regexp.MustCompile(`[\x00-\x1F\x7F]`)

// SanitizeMatch normalizes the free-text fields of an extracted match in
// place. Score and Odds are replaced with sanitized copies, so values shared
// with other matches are never written to. Identifiers are left untouched.
func SanitizeMatch(m *models.Match) {
	if m == nil {
		return
	}
	m.Player1.Name = sanitizeName(m.Player1.Name)
	m.Player2.Name = sanitizeName(m.Player2.Name)
	m.League = sanitizeString(m.League)
	m.Tournament = sanitizeString(m.Tournament)

	if m.Score != nil {
		sc := *m.Score
		sc.SetScores = slices.Clone(sc.SetScores)
		for i, s := range sc.SetScores {
			sc.SetScores[i] = strings.ReplaceAll(s, " ", "")
		}
		m.Score = &sc
	}
	if m.Odds != nil {
		o := *m.Odds
		sanitizePrice(&o.Player1Moneyline)
		sanitizePrice(&o.Player2Moneyline)
		sanitizePrice(&o.HandicapLine)
		sanitizePrice(&o.Player1Handicap)
		sanitizePrice(&o.Player2Handicap)
		sanitizePrice(&o.OverUnderLine)
		sanitizePrice(&o.OverOdds)
		sanitizePrice(&o.UnderOdds)
		m.Odds = &o
	}
}

func sanitizeString(s string) string {
	s = controlChars.ReplaceAllString(strings.TrimSpace(s), "")
	return truncate(s, 200)
}

func sanitizeName(name string) string {
	name = strings.Join(strings.Fields(controlChars.ReplaceAllString(name, " ")), " ")
	return truncate(name, 100)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// sanitizePrice trims a price and drops it when nothing is left.
func sanitizePrice(p **string) {
	if *p == nil {
		return
	}
	v := strings.TrimSpace(**p)
	if v == "" {
		*p = nil
		return
	}
	*p = &v
}
