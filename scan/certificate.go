package scan

import (
	"context"
	"crypto/tls"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

const (
	certBaseStrong      = 1.0 // EV / OV
	certBaseDV          = 0.8
	certBonusTrusted    = 0.1
	certPenaltyFreeCA   = 0.2 // only when DV
	certPenaltyExpiring = 0.2
	certScoreExpired    = 0.1
	certScoreUnverified = 0.2
	certExpiryWindow    = 7 * 24 * time.Hour
)

// CA/Browser Forum certificate policy identifiers.
var (
	oidPolicyEV = asn1.ObjectIdentifier{2, 23, 140, 1, 1}
	oidPolicyOV = asn1.ObjectIdentifier{2, 23, 140, 1, 2, 2}
)

var trustedIssuers = []string{
	"DigiCert",
	"GlobalSign",
	"Sectigo",
	"Entrust",
	"Amazon",
	"Google Trust Services",
	"Microsoft",
	"GeoTrust",
	"Thawte",
	"Comodo",
}

var freeCAs = []string{
	"Let's Encrypt",
	"ZeroSSL",
	"cPanel",
}

// certFacts is what the TLS probe extracts for scoring.
type certFacts struct {
	Verified   bool
	Issuer     string
	Subject    string
	Validation string // "EV", "OV" or "DV"
	NotBefore  time.Time
	NotAfter   time.Time
}

func checkCertificate(ctx context.Context, rawURL string) (CheckResult, error) {
	u, err := url.Parse(NormalizeURL(rawURL))
	if err != nil {
		return CheckResult{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "https" {
		return Scored(0.0, "Site is served over plain HTTP, no certificate to inspect"), nil
	}

	facts, err := probeCertificate(ctx, u.Hostname())
	if err != nil {
		return CheckResult{}, err
	}
	score, details := scoreCertificate(facts, time.Now())
	return Scored(score, details...), nil
}

// probeCertificate reads the leaf certificate (verification off, so
// self-signed leafs are still inspectable) and then checks whether a
// default-config handshake would have trusted it.
func probeCertificate(ctx context.Context, host string) (certFacts, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	addr := net.JoinHostPort(host, "443")

	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true,
	})
	if err != nil {
		return certFacts{}, fmt.Errorf("tls probe %s: %w", host, err)
	}
	state := conn.ConnectionState()
	conn.Close()

	if len(state.PeerCertificates) == 0 {
		return certFacts{}, fmt.Errorf("tls probe %s: no peer certificates", host)
	}
	leaf := state.PeerCertificates[0]

	facts := certFacts{
		Issuer:    nameString(leaf.Issuer),
		Subject:   nameString(leaf.Subject),
		NotBefore: leaf.NotBefore,
		NotAfter:  leaf.NotAfter,
	}

	facts.Validation = "DV"
	for _, p := range leaf.PolicyIdentifiers {
		if p.Equal(oidPolicyEV) {
			facts.Validation = "EV"
			break
		}
		if p.Equal(oidPolicyOV) {
			facts.Validation = "OV"
		}
	}
	if facts.Validation == "DV" && len(leaf.Subject.Organization) > 0 {
		facts.Validation = "OV"
	}

	if vconn, verr := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: host}); verr == nil {
		facts.Verified = true
		vconn.Close()
	}
	return facts, nil
}

// scoreCertificate turns probe facts into a sub-score. Severe states
// (expired, unverifiable) override the additive adjustments.
func scoreCertificate(f certFacts, now time.Time) (float64, []string) {
	details := []string{
		fmt.Sprintf("Issuer: %s", f.Issuer),
		fmt.Sprintf("Subject: %s", f.Subject),
		fmt.Sprintf("Valid %s to %s", f.NotBefore.Format("2006-01-02"), f.NotAfter.Format("2006-01-02")),
	}

	if now.After(f.NotAfter) {
		details = append(details, "Certificate has expired")
		return certScoreExpired, details
	}
	if !f.Verified {
		details = append(details, "Certificate failed verification (self-signed or untrusted chain)")
		return certScoreUnverified, details
	}

	score := certBaseDV
	if f.Validation == "EV" || f.Validation == "OV" {
		score = certBaseStrong
	}
	details = append(details, fmt.Sprintf("Certificate validation level: %s", f.Validation))

	if matchesAny(f.Issuer, trustedIssuers) {
		score += certBonusTrusted
		details = append(details, "Issued by a widely trusted CA")
	}
	if f.Validation == "DV" && matchesAny(f.Issuer, freeCAs) {
		score -= certPenaltyFreeCA
		details = append(details, "Domain-validated certificate from a free CA")
	}
	if f.NotAfter.Sub(now) < certExpiryWindow {
		score -= certPenaltyExpiring
		details = append(details, "Certificate expires within 7 days")
	}
	return clampScore(score), details
}

func matchesAny(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func nameString(name pkix.Name) string {
	if len(name.Organization) > 0 {
		return fmt.Sprintf("%s (%s)", name.CommonName, name.Organization[0])
	}
	if name.CommonName != "" {
		return name.CommonName
	}
	return name.String()
}
