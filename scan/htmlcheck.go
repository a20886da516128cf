package scan

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	penaltyNullLinks    = 0.20
	penaltyExternal     = 0.12
	penaltyCrossLogin   = 0.30
	penaltyFormAction   = 0.20
	penaltyHiddenFrame  = 0.15
	penaltyNoRightClick = 0.15
	penaltyIPLinks      = 0.20
	penaltyHiddenInputs = 0.08
	penaltyFakeBadge    = 0.12

	htmlScoreNoContent = 0.5
	htmlScoreParseFail = 0.6

	nullLinkRatio     = 0.4
	externalLinkRatio = 0.8
	hiddenInputLimit  = 15
)

// Embeds that legitimately ship hidden iframes (tag managers, players,
// captcha providers).
var embedAllowlist = []string{
	"google.com",
	"googletagmanager.com",
	"youtube.com",
	"facebook.com",
	"doubleclick.net",
	"recaptcha.net",
	"vimeo.com",
}

var badgeKeywords = []string{
	"norton", "mcafee", "trustpilot", "verisign", "comodo secure",
	"ssl secure", "trusted site",
}

// A badge image is considered verified when it links back to its vendor.
var badgeVendors = []string{
	"norton.com", "mcafee.com", "trustpilot.com", "verisign.com", "digicert.com",
}

// checkHTML inspects the shared page HTML for deception patterns. Each
// signal is penalized once no matter how many instances the page carries.
func checkHTML(_ context.Context, rawURL, rawHTML string) (CheckResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return Scored(htmlScoreNoContent, "No HTML content retrieved from the page"), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Scored(htmlScoreParseFail, "Page HTML could not be parsed"), nil
	}
	pageHost := HostnameOf(rawURL)

	score := 1.0
	var details []string
	hit := func(penalty float64, detail string) {
		score -= penalty
		details = append(details, detail)
	}

	totalLinks, nullLinks, externalLinks, ipLinks := classifyLinks(doc, pageHost)
	if totalLinks > 0 {
		if float64(nullLinks)/float64(totalLinks) > nullLinkRatio {
			hit(penaltyNullLinks, fmt.Sprintf("%d of %d links go nowhere", nullLinks, totalLinks))
		}
		if float64(externalLinks)/float64(totalLinks) > externalLinkRatio {
			hit(penaltyExternal, fmt.Sprintf("%d of %d links leave the site", externalLinks, totalLinks))
		}
		if ipLinks > 0 {
			hit(penaltyIPLinks, fmt.Sprintf("%d links point at raw IP addresses", ipLinks))
		}
	}

	crossLogin, badAction := inspectForms(doc, pageHost)
	if crossLogin {
		hit(penaltyCrossLogin, "Login form submits credentials to another domain")
	}
	if badAction {
		hit(penaltyFormAction, "Form action is empty or uses a javascript:/data: URI")
	}

	if hasHiddenIframe(doc) {
		hit(penaltyHiddenFrame, "Hidden iframe embedding a non-allowlisted domain")
	}
	if rightClickDisabled(doc) {
		hit(penaltyNoRightClick, "Page disables the context menu")
	}
	if n := doc.Find("input[type='hidden']").Length(); n > hiddenInputLimit {
		hit(penaltyHiddenInputs, fmt.Sprintf("Page carries %d hidden inputs", n))
	}
	if hasUnverifiedBadge(doc) {
		hit(penaltyFakeBadge, "Trust badge image does not link back to its vendor")
	}

	if len(details) == 0 {
		details = append(details, "No suspicious HTML patterns detected")
	}
	return Scored(score, details...), nil
}

func classifyLinks(doc *goquery.Document, pageHost string) (total, null, external, ip int) {
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		total++
		href = strings.TrimSpace(href)
		if !ok || href == "" || href == "#" || strings.HasPrefix(href, "javascript:void") || href == "javascript:;" {
			null++
			return
		}
		host := hrefHost(href)
		if host == "" || host == pageHost {
			return
		}
		external++
		if isIPHost(host) {
			ip++
		}
	})
	return total, null, external, ip
}

func inspectForms(doc *goquery.Document, pageHost string) (crossLogin, badAction bool) {
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		hasPassword := form.Find("input[type='password']").Length() > 0
		action := strings.TrimSpace(form.AttrOr("action", ""))

		if strings.HasPrefix(action, "javascript:") || strings.HasPrefix(action, "data:") || (hasPassword && action == "") {
			badAction = true
		}
		if hasPassword {
			if host := hrefHost(action); host != "" && host != pageHost {
				crossLogin = true
			}
		}
	})
	return crossLogin, badAction
}

func hasHiddenIframe(doc *goquery.Document) bool {
	found := false
	doc.Find("iframe").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style := strings.ToLower(s.AttrOr("style", ""))
		hidden := strings.Contains(style, "display:none") ||
			strings.Contains(style, "display: none") ||
			strings.Contains(style, "visibility:hidden") ||
			strings.Contains(style, "visibility: hidden") ||
			s.AttrOr("width", "") == "0" || s.AttrOr("height", "") == "0"
		if !hidden {
			return true
		}
		src := hrefHost(s.AttrOr("src", ""))
		for _, allowed := range embedAllowlist {
			if src == allowed || strings.HasSuffix(src, "."+allowed) {
				return true
			}
		}
		found = true
		return false
	})
	return found
}

func rightClickDisabled(doc *goquery.Document) bool {
	blocked := false
	doc.Find("[oncontextmenu]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.AttrOr("oncontextmenu", "")), "return false") {
			blocked = true
			return false
		}
		return true
	})
	if blocked {
		return true
	}
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		js := s.Text()
		if strings.Contains(js, "contextmenu") && strings.Contains(js, "preventDefault") {
			blocked = true
			return false
		}
		return true
	})
	return blocked
}

func hasUnverifiedBadge(doc *goquery.Document) bool {
	suspicious := false
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		probe := strings.ToLower(img.AttrOr("alt", "") + " " + img.AttrOr("src", ""))
		badge := false
		for _, kw := range badgeKeywords {
			if strings.Contains(probe, kw) {
				badge = true
				break
			}
		}
		if !badge {
			return true
		}
		linkHost := hrefHost(img.Closest("a").AttrOr("href", ""))
		for _, vendor := range badgeVendors {
			if linkHost == vendor || strings.HasSuffix(linkHost, "."+vendor) {
				return true
			}
		}
		suspicious = true
		return false
	})
	return suspicious
}

// hrefHost returns the lowercase host of an absolute href, "" for relative
// or unparsable ones.
func hrefHost(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "data:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}
