package scan

import (
	log "github.com/sirupsen/logrus"
)

// Verdict labels, banded over the 0-5 final score.
const (
	VerdictUnsafe      = "POTENTIALLY UNSAFE"
	VerdictCaution     = "USE WITH CAUTION"
	VerdictTrusted     = "CAN BE TRUSTED"
	VerdictUnreachable = "WEBSITE UNREACHABLE"
)

// ScanReport is the complete result of one URL scan.
type ScanReport struct {
	URL             string                  `json:"url"`
	ScanID          string                  `json:"scan_id"`
	FinalScore      *float64                `json:"final_score"`
	Verdict         string                  `json:"verdict"`
	ComponentScores map[string]float64      `json:"component_scores"`
	Details         map[string][]string     `json:"details"`
	Excluded        map[string]ExcludedFlag `json:"excluded"`
	Screenshots     []ScreenshotArtifact    `json:"screenshots,omitempty"`
	ElapsedMS       int64                   `json:"elapsed_ms"`
}

// Aggregate folds module outcomes into a report. Modules that errored or
// had no data contribute neither weight nor score; the rest form a weighted
// mean stretched onto a 0-5 scale. When every module is excluded the final
// score degenerates to 0.0 and the exclusion flags tell the two cases apart.
func Aggregate(rawURL, scanID string, outcomes []ModuleOutcome, weights WeightTable) ScanReport {
	report := ScanReport{
		URL:             rawURL,
		ScanID:          scanID,
		ComponentScores: make(map[string]float64, len(outcomes)),
		Details:         make(map[string][]string, len(outcomes)),
		Excluded:        make(map[string]ExcludedFlag, len(outcomes)),
	}

	weightedSum := 0.0
	totalWeight := 0.0
	for _, out := range outcomes {
		details := out.Result.Details
		if len(details) == 0 {
			details = []string{"No details available."}
		}
		report.Details[out.Name] = details

		switch out.Status {
		case StatusError:
			report.Excluded[out.Name] = ExcludedError
			report.ComponentScores[out.Name] = 0.0
			continue
		case StatusNoData:
			report.Excluded[out.Name] = ExcludedNoData
			report.ComponentScores[out.Name] = 0.0
			continue
		}

		score := clampScore(*out.Result.Score)
		weight := weights[out.Name]
		report.Excluded[out.Name] = Included
		report.ComponentScores[out.Name] = round1(score * 10)
		weightedSum += weight * score
		totalWeight += weight
	}

	final := 0.0
	if totalWeight > 0 {
		final = round2(weightedSum / totalWeight * 5.0)
	} else {
		log.WithField("url", rawURL).Warn("every module was excluded, final score carries no signal")
	}
	report.FinalScore = &final
	report.Verdict = verdictFor(final)
	return report
}

func verdictFor(score float64) string {
	switch {
	case score < 3.0:
		return VerdictUnsafe
	case score <= 4.0:
		return VerdictCaution
	default:
		return VerdictTrusted
	}
}

// UnreachableReport is emitted when the target never answered the
// connectivity probe: no modules run and there is no score at all.
func UnreachableReport(rawURL, scanID, reason string) ScanReport {
	return ScanReport{
		URL:             rawURL,
		ScanID:          scanID,
		FinalScore:      nil,
		Verdict:         VerdictUnreachable,
		ComponentScores: map[string]float64{},
		Details:         map[string][]string{"Connection Error": {reason}},
		Excluded:        map[string]ExcludedFlag{},
	}
}
