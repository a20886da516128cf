package scan

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"
)

var certNow = time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)

func certScoreNear(t *testing.T, got, want float64, details []string) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected score %v, got %v (%v)", want, got, details)
	}
}

func detailsContain(details []string, needle string) bool {
	for _, d := range details {
		if strings.Contains(d, needle) {
			return true
		}
	}
	return false
}

func TestScoreCertificateExpired(t *testing.T) {
	t.Parallel()

	score, details := scoreCertificate(certFacts{
		Verified:   true,
		Issuer:     "DigiCert Inc",
		Validation: "OV",
		NotBefore:  certNow.AddDate(-1, 0, 0),
		NotAfter:   certNow.AddDate(0, 0, -3),
	}, certNow)

	certScoreNear(t, score, certScoreExpired, details)
	if !detailsContain(details, "expired") {
		t.Errorf("expected expiry detail, got %v", details)
	}
}

func TestScoreCertificateUnverified(t *testing.T) {
	t.Parallel()

	score, details := scoreCertificate(certFacts{
		Verified:   false,
		Issuer:     "localhost",
		Validation: "DV",
		NotBefore:  certNow.AddDate(0, -1, 0),
		NotAfter:   certNow.AddDate(1, 0, 0),
	}, certNow)

	certScoreNear(t, score, certScoreUnverified, details)
	if !detailsContain(details, "failed verification") {
		t.Errorf("expected verification detail, got %v", details)
	}
}

func TestScoreCertificateEVFromTrustedCA(t *testing.T) {
	t.Parallel()

	score, details := scoreCertificate(certFacts{
		Verified:   true,
		Issuer:     "DigiCert EV TLS CA",
		Validation: "EV",
		NotBefore:  certNow.AddDate(0, -6, 0),
		NotAfter:   certNow.AddDate(0, 6, 0),
	}, certNow)

	// 1.0 base + 0.1 trusted-CA bonus, clamped back to 1.0.
	certScoreNear(t, score, 1.0, details)
	if !detailsContain(details, "widely trusted") {
		t.Errorf("expected trusted CA detail, got %v", details)
	}
}

func TestScoreCertificateFreeDV(t *testing.T) {
	t.Parallel()

	score, details := scoreCertificate(certFacts{
		Verified:   true,
		Issuer:     "Let's Encrypt (R11)",
		Validation: "DV",
		NotBefore:  certNow.AddDate(0, -1, 0),
		NotAfter:   certNow.AddDate(0, 2, 0),
	}, certNow)

	certScoreNear(t, score, certBaseDV-certPenaltyFreeCA, details)
	if !detailsContain(details, "free CA") {
		t.Errorf("expected free CA detail, got %v", details)
	}
}

func TestScoreCertificatePlainDV(t *testing.T) {
	t.Parallel()

	score, details := scoreCertificate(certFacts{
		Verified:   true,
		Issuer:     "Example Regional CA",
		Validation: "DV",
		NotBefore:  certNow.AddDate(0, -1, 0),
		NotAfter:   certNow.AddDate(1, 0, 0),
	}, certNow)

	certScoreNear(t, score, certBaseDV, details)
}

func TestScoreCertificateExpiringSoon(t *testing.T) {
	t.Parallel()

	score, details := scoreCertificate(certFacts{
		Verified:   true,
		Issuer:     "Example Regional CA",
		Validation: "DV",
		NotBefore:  certNow.AddDate(-1, 0, 0),
		NotAfter:   certNow.Add(3 * 24 * time.Hour),
	}, certNow)

	certScoreNear(t, score, certBaseDV-certPenaltyExpiring, details)
	if !detailsContain(details, "expires within 7 days") {
		t.Errorf("expected expiring detail, got %v", details)
	}
}

func TestCheckCertificatePlainHTTP(t *testing.T) {
	t.Parallel()

	result, err := checkCertificate(context.Background(), "http://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	scoreNear(t, result, 0.0)
	if !detailsContain(result.Details, "plain HTTP") {
		t.Errorf("expected plain HTTP detail, got %v", result.Details)
	}
}
