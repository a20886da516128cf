package scan

import (
	"math"
	"net"
	"net/url"
	"strings"
)

// NormalizeURL makes bare hostnames and scheme-less input usable by HTTP
// clients. Anything already carrying http:// or https:// passes through.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

// HostnameOf extracts the bare hostname (no port, no www.) from a URL.
func HostnameOf(raw string) string {
	u, err := url.Parse(NormalizeURL(raw))
	if err == nil && u.Hostname() != "" {
		return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	}
	host := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "https://"), "http://")
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimPrefix(host, "www."))
}

// parentDomain strips the leftmost label: sub.shop.example.com -> shop.example.com.
// Returns "" once fewer than three labels remain.
func parentDomain(domain string) string {
	parts := strings.Split(domain, ".")
	if len(parts) <= 2 {
		return ""
	}
	return strings.Join(parts[1:], ".")
}

func isIPHost(host string) bool {
	return net.ParseIP(strings.Trim(host, "[]")) != nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
