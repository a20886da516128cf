package scan

import (
	"context"
	"fmt"
	"time"
)

// A domain past its first year has outlived the typical phishing campaign.
const matureDomainAge = 365 * 24 * time.Hour

// checkDomainAge scores proportionally through the first year of a domain's
// life and maxes out after that. WHOIS answering without a registration date
// is an abstention, not an error.
func checkDomainAge(_ context.Context, facts *SiteFacts, now time.Time) (CheckResult, error) {
	if facts == nil {
		return CheckResult{}, fmt.Errorf("no site facts available")
	}
	if facts.WhoisErr != nil {
		return CheckResult{}, fmt.Errorf("whois lookup failed: %w", facts.WhoisErr)
	}
	if facts.RegistrationDate.IsZero() {
		return NoData("WHOIS record has no registration date for " + facts.Domain), nil
	}

	age := now.Sub(facts.RegistrationDate)
	if age < 0 {
		age = 0
	}
	days := int(age.Hours() / 24)

	details := []string{fmt.Sprintf("Registered on %s (%d days ago)", facts.RegistrationDate.Format("2006-01-02"), days)}
	if !facts.ExpirationDate.IsZero() {
		details = append(details, fmt.Sprintf("Registration expires %s", facts.ExpirationDate.Format("2006-01-02")))
	}

	if age >= matureDomainAge {
		return Scored(1.0, details...), nil
	}
	return Scored(float64(age)/float64(matureDomainAge), details...), nil
}
