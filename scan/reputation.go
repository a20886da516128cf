package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	flagDeduction = 0.2
	// A confirmed malware / social-engineering listing overrides everything
	// else; the score is capped here no matter how clean the rest looks.
	criticalCap = 0.1

	reputationTimeout = 12 * time.Second
)

// Threat types whose presence alone condemns the site.
var criticalThreatTypes = map[string]bool{
	"MALWARE":            true,
	"SOCIAL_ENGINEERING": true,
}

type feedResult struct {
	flags    int
	critical []string
	notes    []string
	err      error
}

// vtClient queries the VirusTotal v3 domain report.
type vtClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newVTClient(apiKey string) *vtClient {
	return &vtClient{
		apiKey:     apiKey,
		baseURL:    "https://www.virustotal.com/api/v3",
		httpClient: &http.Client{Timeout: reputationTimeout},
	}
}

func (c *vtClient) domainReport(ctx context.Context, domain string) feedResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domains/"+domain, nil)
	if err != nil {
		return feedResult{err: err}
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return feedResult{err: fmt.Errorf("virustotal: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return feedResult{notes: []string{"VirusTotal: domain not in the database"}}
	}
	if resp.StatusCode != http.StatusOK {
		return feedResult{err: fmt.Errorf("virustotal: HTTP %d", resp.StatusCode)}
	}

	var body struct {
		Data struct {
			Attributes struct {
				LastAnalysisStats struct {
					Malicious  int `json:"malicious"`
					Suspicious int `json:"suspicious"`
				} `json:"last_analysis_stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return feedResult{err: fmt.Errorf("virustotal: decode: %w", err)}
	}

	stats := body.Data.Attributes.LastAnalysisStats
	flags := stats.Malicious + stats.Suspicious
	note := "VirusTotal: no engines flag this domain"
	if flags > 0 {
		note = fmt.Sprintf("VirusTotal: %d malicious, %d suspicious engine verdicts", stats.Malicious, stats.Suspicious)
	}
	return feedResult{flags: flags, notes: []string{note}}
}

// gsbClient queries the Google Safe Browsing v4 threat-match API.
type gsbClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func newGSBClient(apiKey string) *gsbClient {
	return &gsbClient{
		apiKey:     apiKey,
		baseURL:    "https://safebrowsing.googleapis.com/v4",
		httpClient: &http.Client{Timeout: reputationTimeout},
	}
}

func (c *gsbClient) threatMatches(ctx context.Context, rawURL string) feedResult {
	payload := map[string]any{
		"client": map[string]string{"clientId": "trustscan", "clientVersion": "1.0"},
		"threatInfo": map[string]any{
			"threatTypes": []string{
				"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE", "POTENTIALLY_HARMFUL_APPLICATION",
			},
			"platformTypes":    []string{"ANY_PLATFORM"},
			"threatEntryTypes": []string{"URL"},
			"threatEntries":    []map[string]string{{"url": rawURL}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return feedResult{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/threatMatches:find?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return feedResult{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return feedResult{err: fmt.Errorf("safebrowsing: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return feedResult{err: fmt.Errorf("safebrowsing: HTTP %d", resp.StatusCode)}
	}

	var matches struct {
		Matches []struct {
			ThreatType string `json:"threatType"`
		} `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return feedResult{err: fmt.Errorf("safebrowsing: decode: %w", err)}
	}

	if len(matches.Matches) == 0 {
		return feedResult{notes: []string{"Google Safe Browsing: not listed"}}
	}
	res := feedResult{flags: len(matches.Matches)}
	for _, m := range matches.Matches {
		res.notes = append(res.notes, fmt.Sprintf("Google Safe Browsing: listed as %s", m.ThreatType))
		if criticalThreatTypes[m.ThreatType] {
			res.critical = append(res.critical, m.ThreatType)
		}
	}
	return res
}

// checkReputation consults both feeds in parallel; one feed failing never
// blocks the other. Both feeds failing degrades to a neutral score, missing
// keys abstain entirely.
func checkReputation(ctx context.Context, vt *vtClient, gsb *gsbClient, domain, rawURL string) (CheckResult, error) {
	if vt == nil && gsb == nil {
		return NoData("Reputation feeds not configured"), nil
	}

	var vtRes, gsbRes feedResult
	g, gctx := errgroup.WithContext(ctx)
	if vt != nil {
		g.Go(func() error {
			vtRes = vt.domainReport(gctx, domain)
			return nil
		})
	}
	if gsb != nil {
		g.Go(func() error {
			gsbRes = gsb.threatMatches(gctx, rawURL)
			return nil
		})
	}
	g.Wait()

	queried := 0
	failed := 0
	if vt != nil {
		queried++
		if vtRes.err != nil {
			failed++
		}
	}
	if gsb != nil {
		queried++
		if gsbRes.err != nil {
			failed++
		}
	}
	if failed == queried {
		details := []string{"Reputation feeds unavailable"}
		for _, r := range []feedResult{vtRes, gsbRes} {
			if r.err != nil {
				details = append(details, r.err.Error())
			}
		}
		return Scored(0.5, details...), nil
	}

	flags := vtRes.flags + gsbRes.flags
	details := append(append([]string{}, vtRes.notes...), gsbRes.notes...)
	for _, r := range []feedResult{vtRes, gsbRes} {
		if r.err != nil {
			details = append(details, fmt.Sprintf("One reputation feed failed: %v", r.err))
		}
	}

	score := clampScore(1.0 - flagDeduction*float64(flags))
	critical := append(append([]string{}, vtRes.critical...), gsbRes.critical...)
	if len(critical) > 0 && score > criticalCap {
		score = criticalCap
		details = append(details, fmt.Sprintf("Critical listing (%s) caps the reputation score", strings.Join(critical, ", ")))
	}
	return Scored(score, details...), nil
}

// reputationClientsFromEnv builds feed clients for the configured keys.
// A missing key simply leaves that feed out.
func reputationClientsFromEnv() (*vtClient, *gsbClient) {
	var vt *vtClient
	var gsb *gsbClient
	if key := os.Getenv("VT_API_KEY"); key != "" {
		vt = newVTClient(key)
	}
	if key := os.Getenv("GSB_API_KEY"); key != "" {
		gsb = newGSBClient(key)
	}
	return vt, gsb
}
