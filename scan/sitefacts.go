package scan

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/miekg/dns"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	dnsServer       = "8.8.8.8:53"
	factsLegTimeout = 15 * time.Second
	maxRedirectHops = 10
)

// Var so tests can point the lookup at a stub server.
var geoAPIBase = "http://ip-api.com/json"

// GeoInfo is the subset of the ip-api.com response the reliability module
// consumes.
type GeoInfo struct {
	Status  string `json:"status"`
	Country string `json:"country"`
	Region  string `json:"regionName"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
	Query   string `json:"query"`
}

// SiteFacts aggregates the auxiliary lookups shared by the domain-age and
// server-reliability modules: WHOIS dates, A records, geolocation of the
// first IP and the HTTP redirect chain. Legs run concurrently and fail
// independently; a failed leg leaves its zero value plus its error.
type SiteFacts struct {
	Domain           string
	RegistrationDate time.Time
	ExpirationDate   time.Time
	IPs              []string
	Geo              GeoInfo
	RedirectChain    string
	FinalURL         string

	WhoisErr    error
	DNSErr      error
	GeoErr      error
	RedirectErr error
}

// FetchSiteFacts runs all fact legs for the target. It never returns an
// error: partial facts are still useful and each consumer decides what a
// missing leg means for its own score.
func FetchSiteFacts(ctx context.Context, rawURL string) *SiteFacts {
	facts := &SiteFacts{Domain: HostnameOf(rawURL)}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		facts.RegistrationDate, facts.ExpirationDate, facts.WhoisErr = whoisDates(facts.Domain)
		return nil
	})
	g.Go(func() error {
		facts.IPs, facts.DNSErr = resolveARecords(gctx, facts.Domain)
		if len(facts.IPs) > 0 {
			facts.Geo, facts.GeoErr = geoLookup(gctx, facts.IPs[0])
		} else {
			facts.GeoErr = fmt.Errorf("no IP to geolocate")
		}
		return nil
	})
	g.Go(func() error {
		facts.RedirectChain, facts.FinalURL, facts.RedirectErr = followRedirects(NormalizeURL(rawURL))
		return nil
	})

	g.Wait()

	log.WithFields(log.Fields{
		"domain": facts.Domain,
		"ips":    len(facts.IPs),
		"whois":  facts.WhoisErr == nil,
		"geo":    facts.GeoErr == nil,
	}).Debug("site facts collected")
	return facts
}

// whoisDates looks up registration and expiration dates, walking up to the
// parent domain when the registry has no record for a subdomain.
func whoisDates(domain string) (created, expires time.Time, err error) {
	for d := domain; d != ""; d = parentDomain(d) {
		raw, whoisErr := whois.Whois(d)
		if whoisErr != nil {
			err = fmt.Errorf("whois %s: %w", d, whoisErr)
			continue
		}
		parsed, parseErr := whoisparser.Parse(raw)
		if parseErr != nil {
			err = fmt.Errorf("parse whois %s: %w", d, parseErr)
			continue
		}
		created = parseWhoisDate(parsed.Domain.CreatedDate)
		expires = parseWhoisDate(parsed.Domain.ExpirationDate)
		if created.IsZero() && parentDomain(d) != "" {
			// Subdomain records often lack dates; ask the parent zone.
			continue
		}
		return created, expires, nil
	}
	return time.Time{}, time.Time{}, err
}

// Registries answer with a zoo of date formats.
var whoisLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"02/01/2006",
	"January 2 2006",
}

func parseWhoisDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range whoisLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// resolveARecords queries Google DNS directly and falls back to the system
// resolver, so scans behave the same on hosts with broken local DNS.
func resolveARecords(ctx context.Context, domain string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	client := &dns.Client{Timeout: 5 * time.Second}

	reply, _, err := client.ExchangeContext(ctx, msg, dnsServer)
	if err == nil && reply != nil {
		var ips []string
		for _, rr := range reply.Answer {
			if a, ok := rr.(*dns.A); ok {
				ips = append(ips, a.A.String())
			}
		}
		if len(ips) > 0 {
			return ips, nil
		}
	}

	addrs, lookupErr := net.DefaultResolver.LookupIP(ctx, "ip4", domain)
	if lookupErr != nil {
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", domain, err)
		}
		return nil, fmt.Errorf("resolve %s: %w", domain, lookupErr)
	}
	ips := make([]string, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.String())
	}
	return ips, nil
}

func geoLookup(ctx context.Context, ip string) (GeoInfo, error) {
	url := fmt.Sprintf("%s/%s?fields=status,country,regionName,city,isp,query", geoAPIBase, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return GeoInfo{}, err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return GeoInfo{}, fmt.Errorf("geo lookup %s: %w", ip, err)
	}
	defer resp.Body.Close()

	var info GeoInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return GeoInfo{}, fmt.Errorf("decode geo response: %w", err)
	}
	if info.Status != "success" {
		return GeoInfo{}, fmt.Errorf("geo lookup %s returned status %q", ip, info.Status)
	}
	return info, nil
}

// followRedirects records the hop chain for the target. Servers that block
// automated clients get three chances: verified GET, unverified GET, then
// HEAD. The chain string is what the reliability module and the report show.
func followRedirects(rawURL string) (chain string, finalURL string, err error) {
	attempts := []struct {
		method string
		verify bool
	}{
		{http.MethodGet, true},
		{http.MethodGet, false},
		{http.MethodHead, false},
	}

	for _, a := range attempts {
		hops, hopErr := redirectHops(rawURL, a.method, a.verify)
		if hopErr != nil {
			err = hopErr
			continue
		}
		finalURL = hops[len(hops)-1]
		if len(hops) == 1 {
			return "No redirection", finalURL, nil
		}
		return strings.Join(hops, " -> "), finalURL, nil
	}
	return "Unable to check (server may block automated requests)", rawURL, err
}

func redirectHops(rawURL, method string, verify bool) ([]string, error) {
	hops := []string{rawURL}
	client := &http.Client{
		Timeout: factsLegTimeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !verify},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirectHops {
				return http.ErrUseLastResponse
			}
			hops = append(hops, req.URL.String())
			return nil
		},
	}

	req, err := http.NewRequest(method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUA)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return hops, nil
}
