package hardrock

import "github.com/PuerkitoBio/goquery"

// strategy reads one value from a container, reporting whether it found it.
type strategy[T any] func(*goquery.Selection) (T, bool)

// firstOf returns the value of the first strategy that succeeds.
func firstOf[T any](s *goquery.Selection, strategies ...strategy[T]) (T, bool) {
	for _, try := range strategies {
		if v, ok := try(s); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
