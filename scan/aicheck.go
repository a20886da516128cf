package scan

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"trustscan/ai"
)

// A confirmed brand impersonation dominates whatever the category ratings
// say about the copy itself.
const aiImpersonationCap = 0.2

const aiScoreMalformed = 0.5

// checkAI grades the page text through the content classifier. The module
// abstains (no data) when nothing is configured, there is no content to
// judge, the page is a bot-protection challenge, or the provider
// rate-limits; only transport-level faults are worth retrying.
func checkAI(ctx context.Context, cls *ai.Classifier, rawURL, text string) (CheckResult, error) {
	if cls == nil {
		return NoData("AI analysis is not configured"), nil
	}
	if strings.TrimSpace(text) == "" {
		return NoData("No page content available to analyze"), nil
	}
	if ai.LooksBlocked(text) {
		return NoData("Page served a bot-protection challenge instead of content"), nil
	}

	verdict, err := cls.Classify(ctx, rawURL, text)
	if errors.Is(err, ai.ErrRateLimited) {
		return NoData("AI analysis skipped: provider rate limit reached"), nil
	}
	if errors.Is(err, ai.ErrMalformed) {
		// The model answered, just not usably. Retrying a nondeterministic
		// model rarely helps, so settle for a neutral score.
		return Scored(aiScoreMalformed, "AI analysis returned an unreadable verdict"), nil
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("classify content: %w", err)
	}

	score := verdict.Safety()
	details := verdictDetails(verdict)
	if verdict.Impersonating() {
		if score > aiImpersonationCap {
			score = aiImpersonationCap
		}
		details = append(details, fmt.Sprintf("Page appears to impersonate %s", verdict.ImpersonatedBrand))
	}
	return Scored(score, details...), nil
}

func verdictDetails(v ai.Verdict) []string {
	var details []string
	if s := strings.TrimSpace(v.Summary); s != "" {
		details = append(details, s)
	}

	ratings := map[string]int{
		"sexual":    v.Sexual,
		"violence":  v.Violence,
		"hate":      v.Hate,
		"self-harm": v.SelfHarm,
	}
	var flagged []string
	for name, r := range ratings {
		if r > 0 {
			flagged = append(flagged, fmt.Sprintf("%s (%d/4)", name, r))
		}
	}
	if len(flagged) > 0 {
		sort.Strings(flagged)
		details = append(details, "Flagged content: "+strings.Join(flagged, ", "))
	} else {
		details = append(details, "No risky content categories flagged")
	}

	if len(v.Keywords) > 0 {
		kw := v.Keywords
		if len(kw) > 5 {
			kw = kw[:5]
		}
		details = append(details, "Topics: "+strings.Join(kw, ", "))
	}
	return details
}
