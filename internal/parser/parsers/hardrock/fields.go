package hardrock

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

// Container selectors, most specific first.
var containerSelectors = []string{
	".hr-market-view",
	`[data-testid*="match"]`,
	`[class*="market-view"]`,
	`[class*="event"]`,
	".game-card",
	".match-card",
}

var idAttributes = []string{"data-match-id", "data-event-id", "data-game-id", "id"}

var knownLeagues = []string{
	"WTT",
	"ITTF",
	"Champions League",
	"World Tour",
	"Pro Tour",
	"Europa League",
	"Asian Games",
}

var (
	vsPattern       = regexp.MustCompile(`(?i)(.+?)\s+vs\s+(.+?)(?:\s|$)`)
	oddsNoise       = regexp.MustCompile(`[+-]\d+\.?\d*|@\d+\.?\d*|\d+/\d+`)
	moneylineInText = regexp.MustCompile(`[+-]\d+`)
	firstInt        = regexp.MustCompile(`\d+`)
)

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var idChain = []strategy[string]{
	idFromAttributes,
	idFromTooltip,
	idFromTextHash,
}

func idFromAttributes(c *goquery.Selection) (string, bool) {
	for _, attr := range idAttributes {
		if v, ok := c.Attr(attr); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// idFromTooltip reads the numeric prefix of a wager button's tooltip ID,
// e.g. "619477862109151478-619477862109151478".
func idFromTooltip(c *goquery.Selection) (string, bool) {
	tip, ok := c.Find("[data-tooltip-id]").First().Attr("data-tooltip-id")
	if !ok {
		return "", false
	}
	prefix, _, found := strings.Cut(tip, "-")
	if !found || !isDigits(prefix) {
		return "", false
	}
	return prefix, true
}

func idFromTextHash(c *goquery.Selection) (string, bool) {
	normalized := strings.Join(strings.Fields(c.Text()), " ")
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))[:10], true
}

var playerChain = []strategy[[]models.Player]{
	playersFromParticipants,
	playersFromVsText,
}

func playersFromParticipants(c *goquery.Selection) ([]models.Player, bool) {
	var out []models.Player
	c.Find(".participants").First().Find(".participant").Each(func(_ int, p *goquery.Selection) {
		name := p.Find(".hide-for-medsmall").First()
		if name.Length() == 0 {
			name = p.Find(".show-for-medsmall").First()
		}
		if name.Length() == 0 {
			return
		}
		out = append(out, models.Player{Name: text(name)})
	})
	return out, len(out) >= 2
}

func playersFromVsText(c *goquery.Selection) ([]models.Player, bool) {
	m := vsPattern.FindStringSubmatch(c.Text())
	if m == nil {
		return nil, false
	}
	clean := func(s string) string {
		return strings.TrimSpace(oddsNoise.ReplaceAllString(strings.TrimSpace(s), ""))
	}
	return []models.Player{{Name: clean(m[1])}, {Name: clean(m[2])}}, true
}

// The order of these checks decides live versus upcoming and must not change.
var liveChain = []strategy[models.MatchStatus]{
	liveFromIcon,
	liveFromGameStatus,
	liveFromScores,
}

func liveFromIcon(c *goquery.Selection) (models.MatchStatus, bool) {
	return models.StatusLive, c.Find(".live-icon").Length() > 0
}

func liveFromGameStatus(c *goquery.Selection) (models.MatchStatus, bool) {
	gs := c.Find(".game-time-status").First()
	if gs.Length() == 0 {
		return "", false
	}
	t := strings.ToLower(text(gs))
	return models.StatusLive, strings.Contains(t, "set") || strings.Contains(t, "game")
}

func liveFromScores(c *goquery.Selection) (models.MatchStatus, bool) {
	live := false
	c.Find(".scoreContainer .score").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v := text(s)
		if isDigits(v) && v != "0" {
			live = true
		}
		return !live
	})
	return models.StatusLive, live
}

func matchStatus(c *goquery.Selection) models.MatchStatus {
	if s, ok := firstOf(c, liveChain...); ok {
		return s
	}
	return models.StatusUpcoming
}

// extractScore pairs the per-player set columns into "p1-p2" segments.
func extractScore(c *goquery.Selection) *models.Score {
	containers := c.Find(".scoreContainer")
	if containers.Length() < 2 {
		return nil
	}

	sides := make([][]string, 2)
	for i := range sides {
		containers.Eq(i).Find(".score:not(.mainScore)").Each(func(_ int, s *goquery.Selection) {
			sides[i] = append(sides[i], text(s))
		})
	}

	at := func(side []string, i int) string {
		if i < len(side) {
			return side[i]
		}
		return "0"
	}
	var sets []string
	for i := 0; i < max(len(sides[0]), len(sides[1])); i++ {
		a, b := at(sides[0], i), at(sides[1], i)
		if a == "0" && b == "0" {
			continue
		}
		sets = append(sets, a+"-"+b)
	}
	if len(sets) == 0 {
		return nil
	}

	current := len(sets)
	if gs := c.Find(".game-time-status").First(); gs.Length() > 0 {
		t := text(gs)
		if strings.Contains(strings.ToLower(t), "set") {
			if n, err := strconv.Atoi(firstInt.FindString(t)); err == nil {
				current = n
			}
		}
	}
	return &models.Score{CurrentSet: current, SetScores: sets}
}

var moneylineChain = []strategy[[2]*string]{
	moneylinesFromSelections,
	moneylinesFromText,
}

// moneylinesFromSelections reads the first two betting buttons. Locked or
// empty buttons count as a position with no price.
func moneylinesFromSelections(c *goquery.Selection) ([2]*string, bool) {
	var prices []*string
	c.Find(".selection-container").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find(".empty-selection, .icon-lock-alt").Length() > 0 {
			prices = append(prices, nil)
			return
		}
		o := sel.Find(".selection-odds").First()
		if o.Length() == 0 {
			prices = append(prices, nil)
			return
		}
		prices = append(prices, models.StrPtr(text(o)))
	})
	return pickTwo(prices)
}

func moneylinesFromText(c *goquery.Selection) ([2]*string, bool) {
	var prices []*string
	for _, m := range moneylineInText.FindAllString(c.Text(), 2) {
		prices = append(prices, models.StrPtr(m))
	}
	return pickTwo(prices)
}

func pickTwo(prices []*string) ([2]*string, bool) {
	var out [2]*string
	for i := 0; i < len(prices) && i < 2; i++ {
		if prices[i] != nil && *prices[i] != "" {
			out[i] = prices[i]
		}
	}
	return out, out[0] != nil || out[1] != nil
}

func extractOdds(c *goquery.Selection, now time.Time) *models.Odds {
	ml, ok := firstOf(c, moneylineChain...)
	if !ok {
		return nil
	}
	return &models.Odds{
		OddsLines: models.OddsLines{Player1Moneyline: ml[0], Player2Moneyline: ml[1]},
		Timestamp: models.At(now),
	}
}

func extractLeague(c *goquery.Selection) string {
	t := strings.ToLower(c.Text())
	for _, l := range knownLeagues {
		if strings.Contains(t, strings.ToLower(l)) {
			return l
		}
	}
	return ""
}

func extractStartTime(c *goquery.Selection) *models.Timestamp {
	v, ok := c.Find("time[datetime]").First().Attr("datetime")
	if !ok {
		return nil
	}
	t, err := models.ParseTimestamp(strings.TrimSpace(v))
	if err != nil || t.IsZero() {
		return nil
	}
	ts := models.At(t)
	return &ts
}
