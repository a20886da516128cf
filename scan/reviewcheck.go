package scan

import (
	"fmt"
)

// ReviewSource supplies the numeric user ratings recorded for a URL.
type ReviewSource interface {
	Scores(rawURL string) ([]float64, error)
}

// checkReview averages stored user ratings into a score. A URL nobody has
// reviewed yet carries no signal either way.
func checkReview(src ReviewSource, rawURL string) (CheckResult, error) {
	if src == nil {
		return NoData("Review storage is not configured"), nil
	}

	scores, err := src.Scores(rawURL)
	if err != nil {
		return CheckResult{}, fmt.Errorf("load user reviews: %w", err)
	}
	if len(scores) == 0 {
		return NoData("No user reviews yet for this URL"), nil
	}

	total := 0.0
	for _, s := range scores {
		total += s
	}
	avg := total / float64(len(scores))

	noun := "reviews"
	if len(scores) == 1 {
		noun = "review"
	}
	return Scored(avg/10, fmt.Sprintf("%d user %s, average rating %.1f/10", len(scores), noun, avg)), nil
}
