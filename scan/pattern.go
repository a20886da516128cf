package scan

import (
	"context"
	"fmt"
	"strings"
)

const (
	penaltyIPHost        = 0.3
	penaltyManyHyphens   = 0.2
	penaltyDeceptiveTLD  = 0.3
	penaltyLongHost      = 0.2
	penaltyLongSubdomain = 0.2
	penaltyEncodedChars  = 0.4
	penaltyDigitTricks   = 0.2
	penaltyHTTPToken     = 0.4
	penaltyAtSymbol      = 0.5
	penaltyShortener     = 0.1

	maxHostLength      = 30
	maxSubdomainLength = 15
	maxHyphens         = 2
)

// TLDs disproportionately used for throwaway phishing domains.
var deceptiveTLDs = map[string]bool{
	"tk": true, "ml": true, "ga": true, "cf": true, "gq": true,
	"xyz": true, "top": true, "buzz": true, "club": true, "work": true,
	"link": true, "zip": true, "mov": true, "loan": true, "download": true,
	"racing": true, "stream": true, "bid": true,
}

var urlShorteners = map[string]bool{
	"bit.ly": true, "tinyurl.com": true, "goo.gl": true, "t.co": true,
	"ow.ly": true, "is.gd": true, "buff.ly": true, "rebrand.ly": true,
	"cutt.ly": true, "shorturl.at": true,
}

// checkPattern scores the URL's lexical shape. Pure function, no network:
// every signal here is a trick attackers use to make a hostile URL look
// legitimate to a human skimming the address bar.
func checkPattern(_ context.Context, rawURL string) (CheckResult, error) {
	host := HostnameOf(rawURL)
	if host == "" {
		return CheckResult{}, fmt.Errorf("no hostname in %q", rawURL)
	}

	score := 1.0
	var details []string
	hit := func(penalty float64, detail string) {
		score -= penalty
		details = append(details, detail)
	}

	if isIPHost(host) {
		hit(penaltyIPHost, "Raw IP address used instead of a domain name")
	}
	if strings.Count(host, "-") > maxHyphens {
		hit(penaltyManyHyphens, fmt.Sprintf("Hostname contains %d hyphens", strings.Count(host, "-")))
	}
	if labels := strings.Split(host, "."); len(labels) > 1 && deceptiveTLDs[labels[len(labels)-1]] {
		hit(penaltyDeceptiveTLD, fmt.Sprintf("TLD .%s is frequently abused", labels[len(labels)-1]))
	}
	if len(host) > maxHostLength {
		hit(penaltyLongHost, fmt.Sprintf("Unusually long hostname (%d characters)", len(host)))
	}
	if sub := subdomainPart(host); len(sub) > maxSubdomainLength {
		hit(penaltyLongSubdomain, fmt.Sprintf("Unusually long subdomain %q", sub))
	}
	if strings.Contains(rawURL, "%") {
		hit(penaltyEncodedChars, "URL contains percent-encoded characters")
	}
	if !isIPHost(host) && strings.ContainsAny(host, "01") {
		hit(penaltyDigitTricks, "Hostname uses digit look-alikes (0/1)")
	}
	if strings.Contains(host, "http") {
		hit(penaltyHTTPToken, "Hostname embeds an \"http\" token")
	}
	if strings.Contains(rawURL, "@") {
		hit(penaltyAtSymbol, "URL contains an @ sign (userinfo trick)")
	}
	if urlShorteners[host] {
		hit(penaltyShortener, "Known URL shortener, destination hidden")
	}

	if len(details) == 0 {
		details = append(details, "No suspicious URL patterns detected")
	}
	return Scored(score, details...), nil
}

// subdomainPart returns everything left of the registrable domain:
// login.eu.example.com -> login.eu.
func subdomainPart(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return ""
	}
	return strings.Join(labels[:len(labels)-2], ".")
}
