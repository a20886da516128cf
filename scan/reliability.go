package scan

import (
	"context"
	"fmt"
	"strings"
)

const (
	weightIPResolved  = 0.35
	weightGeoFull     = 0.25
	weightGeoPartial  = 0.15
	weightGeoMinimal  = 0.05
	weightISPKnown    = 0.25
	weightRedirClean  = 0.15
	weightRedirShaky  = 0.075
	suspiciousHopSpan = 3
)

// checkReliability scores how much the hosting setup can be pinned down.
// Sites hiding behind unresolvable DNS, anonymous hosting or murky redirect
// chains earn less trust. Additive, capped at 1.0.
func checkReliability(_ context.Context, facts *SiteFacts) (CheckResult, error) {
	if facts == nil {
		return CheckResult{}, fmt.Errorf("no site facts available")
	}
	if len(facts.IPs) == 0 && facts.GeoErr != nil && facts.RedirectErr != nil && facts.WhoisErr != nil {
		return CheckResult{}, fmt.Errorf("all site fact lookups failed for %s", facts.Domain)
	}

	score := 0.0
	var details []string

	if len(facts.IPs) > 0 {
		score += weightIPResolved
		details = append(details, fmt.Sprintf("IP Address: %s", facts.IPs[0]))
	} else {
		details = append(details, "IP Address: could not be resolved")
	}

	switch {
	case facts.Geo.Country != "" && facts.Geo.City != "" && facts.Geo.Region != "":
		score += weightGeoFull
		details = append(details, fmt.Sprintf("Hosting Location: %s, %s, %s", facts.Geo.City, facts.Geo.Region, facts.Geo.Country))
	case facts.Geo.Country != "":
		score += weightGeoPartial
		details = append(details, fmt.Sprintf("Hosting Location: %s", facts.Geo.Country))
	case facts.Geo.ISP != "":
		score += weightGeoMinimal
		details = append(details, "Hosting Location: unknown (provider identified)")
	default:
		details = append(details, "Hosting Location: unknown")
	}

	if facts.Geo.ISP != "" {
		score += weightISPKnown
		details = append(details, fmt.Sprintf("ISP: %s", facts.Geo.ISP))
	}

	redirScore, redirDetail := scoreRedirectChain(facts)
	score += redirScore
	details = append(details, redirDetail)

	return Scored(score, details...), nil
}

func scoreRedirectChain(facts *SiteFacts) (float64, string) {
	chain := facts.RedirectChain
	detail := fmt.Sprintf("Redirection: %s", chain)
	switch {
	case chain == "" || strings.HasPrefix(chain, "Unable to check"):
		return 0, detail
	case chain == "No redirection":
		return weightRedirClean, detail
	}

	hops := strings.Split(chain, " -> ")
	if len(hops) > suspiciousHopSpan || crossesHosts(hops) {
		return weightRedirShaky, detail
	}
	return weightRedirClean, detail
}

func crossesHosts(hops []string) bool {
	if len(hops) < 2 {
		return false
	}
	first := HostnameOf(hops[0])
	for _, hop := range hops[1:] {
		if HostnameOf(hop) != first {
			return true
		}
	}
	return false
}
