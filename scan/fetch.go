package scan

import (
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	// Bodies smaller than this are parked pages, proxy errors or junk.
	minPageBytes = 100
	// Ceiling for the raw-HTML extraction fallback.
	maxExtractChars = 40000
	// Structural extraction yielding less than this falls through to the
	// next strategy.
	minTextChars = 50

	maxPageBytes = 5 << 20
)

// FetchPage performs the single shared GET for a scan and returns the raw
// HTML plus extracted visible text. TLS verification is disabled on purpose:
// the certificate module judges certificates, the fetcher's job is to get
// content off self-signed and misconfigured hosts too. Any failure, non-HTML
// content type or undersized body yields empty strings.
func FetchPage(rawURL string, timeout time.Duration) (string, string) {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}

	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", ""
	}
	req.Header.Set("User-Agent", browserUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		log.WithField("url", rawURL).WithError(err).Debug("page fetch failed")
		return "", ""
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", ""
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil || len(body) < minPageBytes {
		return "", ""
	}

	raw := string(body)
	return raw, ExtractText(raw)
}

// ExtractText pulls the human-visible text out of raw HTML. Strategies, in
// order: whole-document text after stripping non-content nodes, block-level
// tag concatenation, then the raw HTML truncated to a cap. Real pages vary
// wildly in markup quality and the AI module needs some non-empty text far
// more than it needs clean text.
func ExtractText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return textNodeWalk(raw)
	}

	doc.Find("script, style, meta, link, noscript").Remove()

	text := squashWhitespace(doc.Text())
	if len(text) >= minTextChars {
		return text
	}

	var blocks []string
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, td, th, figcaption, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := squashWhitespace(s.Text()); t != "" {
			blocks = append(blocks, t)
		}
	})
	text = strings.Join(blocks, " ")
	if len(text) >= minTextChars {
		return text
	}

	if len(raw) > maxExtractChars {
		return raw[:maxExtractChars]
	}
	return raw
}

// textNodeWalk is the last-ditch extraction when goquery cannot build a
// document: tokenize and collect text nodes, skipping script/style bodies.
func textNodeWalk(raw string) string {
	tok := html.NewTokenizer(strings.NewReader(raw))
	var parts []string
	skipDepth := 0
	for {
		switch tok.Next() {
		case html.ErrorToken:
			text := squashWhitespace(strings.Join(parts, " "))
			if len(text) >= minTextChars {
				return text
			}
			if len(raw) > maxExtractChars {
				return raw[:maxExtractChars]
			}
			return raw
		case html.StartTagToken:
			name, _ := tok.TagName()
			if n := string(name); n == "script" || n == "style" || n == "noscript" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tok.TagName()
			if n := string(name); (n == "script" || n == "style" || n == "noscript") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				if t := strings.TrimSpace(string(tok.Text())); t != "" {
					parts = append(parts, t)
				}
			}
		}
	}
}

func squashWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
