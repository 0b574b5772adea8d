package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

var (
	idPattern       = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)
	setScorePattern = regexp.MustCompile(`^\d+-\d+$`)
)

// ValidateMatch reports every problem that would make m unfit for storage.
func ValidateMatch(m models.Match) error {
	var errs []error

	switch {
	case m.ID == "":
		errs = append(errs, errors.New("match ID cannot be empty"))
	case len(m.ID) > 100 || !idPattern.MatchString(m.ID):
		errs = append(errs, fmt.Errorf("invalid match ID format: %q", m.ID))
	}

	if m.Player1.Name == "" || m.Player2.Name == "" {
		errs = append(errs, errors.New("both player names are required"))
	} else if strings.EqualFold(m.Player1.Name, m.Player2.Name) {
		errs = append(errs, fmt.Errorf("player names must differ: %q", m.Player1.Name))
	}

	if !m.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown status %q", m.Status))
	}

	if m.Score != nil {
		if m.Score.CurrentSet < 0 {
			errs = append(errs, fmt.Errorf("negative current set %d", m.Score.CurrentSet))
		}
		for i, s := range m.Score.SetScores {
			if !setScorePattern.MatchString(s) {
				errs = append(errs, fmt.Errorf("set %d: invalid score %q", i+1, s))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("match %q: %w", m.ID, errors.Join(errs...))
	}
	return nil
}

// Clean sanitizes every match and returns the valid ones along with the
// validation errors of those dropped.
func Clean(matches []models.Match) ([]models.Match, []error) {
	out := make([]models.Match, 0, len(matches))
	var errs []error
	for i := range matches {
		m := matches[i]
		SanitizeMatch(&m)
		if err := ValidateMatch(m); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	return out, errs
}
