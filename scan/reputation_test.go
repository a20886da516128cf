package scan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func vtStub(t *testing.T, handler http.HandlerFunc) *vtClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	vt := newVTClient("test-key")
	vt.baseURL = srv.URL
	return vt
}

func gsbStub(t *testing.T, handler http.HandlerFunc) *gsbClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gsb := newGSBClient("test-key")
	gsb.baseURL = srv.URL
	return gsb
}

func vtStats(malicious, suspicious int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"data":{"attributes":{"last_analysis_stats":{"malicious":%d,"suspicious":%d}}}}`,
			malicious, suspicious)
	}
}

func gsbMatches(threatTypes ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if len(threatTypes) == 0 {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, `{"matches":[`)
		for i, tt := range threatTypes {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"threatType":%q}`, tt)
		}
		fmt.Fprint(w, `]}`)
	}
}

func TestCheckReputationNotConfigured(t *testing.T) {
	t.Parallel()

	res, err := checkReputation(context.Background(), nil, nil, "example.com", "https://example.com")
	if err != nil {
		t.Fatalf("checkReputation: %v", err)
	}
	if res.Score != nil {
		t.Errorf("expected no data, got score %v", *res.Score)
	}
	if !detailsContain(res.Details, "not configured") {
		t.Errorf("expected a not-configured detail, got %v", res.Details)
	}
}

func TestCheckReputationClean(t *testing.T) {
	t.Parallel()

	var vtPath, vtKey, gsbPath string
	vt := vtStub(t, func(w http.ResponseWriter, r *http.Request) {
		vtPath = r.URL.Path
		vtKey = r.Header.Get("x-apikey")
		vtStats(0, 0)(w, r)
	})
	gsb := gsbStub(t, func(w http.ResponseWriter, r *http.Request) {
		gsbPath = r.URL.Path
		gsbMatches()(w, r)
	})

	res, err := checkReputation(context.Background(), vt, gsb, "example.com", "https://example.com")
	if err != nil {
		t.Fatalf("checkReputation: %v", err)
	}
	scoreNear(t, res, 1.0)
	if !detailsContain(res.Details, "no engines flag this domain") {
		t.Errorf("expected a VirusTotal detail, got %v", res.Details)
	}
	if !detailsContain(res.Details, "not listed") {
		t.Errorf("expected a Safe Browsing detail, got %v", res.Details)
	}
	if vtPath != "/domains/example.com" {
		t.Errorf("expected VT path /domains/example.com, got %q", vtPath)
	}
	if vtKey != "test-key" {
		t.Errorf("expected x-apikey header test-key, got %q", vtKey)
	}
	if gsbPath != "/threatMatches:find" {
		t.Errorf("expected GSB path /threatMatches:find, got %q", gsbPath)
	}
}

func TestCheckReputationFlagDeductions(t *testing.T) {
	t.Parallel()

	vt := vtStub(t, vtStats(2, 1))
	gsb := gsbStub(t, gsbMatches())

	res, err := checkReputation(context.Background(), vt, gsb, "example.com", "https://example.com")
	if err != nil {
		t.Fatalf("checkReputation: %v", err)
	}
	scoreNear(t, res, 0.4)
	if !detailsContain(res.Details, "2 malicious, 1 suspicious") {
		t.Errorf("expected engine verdict counts in details, got %v", res.Details)
	}
}

func TestCheckReputationNonCriticalListing(t *testing.T) {
	t.Parallel()

	vt := vtStub(t, vtStats(0, 0))
	gsb := gsbStub(t, gsbMatches("UNWANTED_SOFTWARE"))

	res, err := checkReputation(context.Background(), vt, gsb, "example.com", "https://example.com")
	if err != nil {
		t.Fatalf("checkReputation: %v", err)
	}
	scoreNear(t, res, 0.8)
	if !detailsContain(res.Details, "listed as UNWANTED_SOFTWARE") {
		t.Errorf("expected the listing in details, got %v", res.Details)
	}
	if detailsContain(res.Details, "Critical listing") {
		t.Errorf("non-critical listing must not trigger the cap, got %v", res.Details)
	}
}

func TestCheckReputationCriticalCap(t *testing.T) {
	t.Parallel()

	vt := vtStub(t, vtStats(0, 0))
	gsb := gsbStub(t, gsbMatches("MALWARE"))

	res, err := checkReputation(context.Background(), vt, gsb, "example.com", "https://example.com")
	if err != nil {
		t.Fatalf("checkReputation: %v", err)
	}
	scoreNear(t, res, criticalCap)
	if !detailsContain(res.Details, "listed as MALWARE") {
		t.Errorf("expected the listing in details, got %v", res.Details)
	}
	if !detailsContain(res.Details, "Critical listing (MALWARE)") {
		t.Errorf("expected the cap to be explained, got %v", res.Details)
	}
}

func TestCheckReputationUnlistedDomain(t *testing.T) {
	t.Parallel()

	vt := vtStub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	gsb := gsbStub(t, gsbMatches())

	res, err := checkReputation(context.Background(), vt, gsb, "unknown.example", "https://unknown.example")
	if err != nil {
		t.Fatalf("checkReputation: %v", err)
	}
	scoreNear(t, res, 1.0)
	if !detailsContain(res.Details, "domain not in the database") {
		t.Errorf("expected a not-in-database detail, got %v", res.Details)
	}
}

func TestCheckReputationOneFeedDown(t *testing.T) {
	t.Parallel()

	vt := vtStub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	gsb := gsbStub(t, gsbMatches())

	res, err := checkReputation(context.Background(), vt, gsb, "example.com", "https://example.com")
	if err != nil {
		t.Fatalf("checkReputation: %v", err)
	}
	scoreNear(t, res, 1.0)
	if !detailsContain(res.Details, "One reputation feed failed") {
		t.Errorf("expected the failed feed to be noted, got %v", res.Details)
	}
}

func TestCheckReputationAllFeedsDown(t *testing.T) {
	t.Parallel()

	broken := func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	vt := vtStub(t, broken)
	gsb := gsbStub(t, broken)

	res, err := checkReputation(context.Background(), vt, gsb, "example.com", "https://example.com")
	if err != nil {
		t.Fatalf("checkReputation: %v", err)
	}
	scoreNear(t, res, 0.5)
	if !detailsContain(res.Details, "Reputation feeds unavailable") {
		t.Errorf("expected an unavailable detail, got %v", res.Details)
	}
}

func TestCheckReputationSingleFeedConfigured(t *testing.T) {
	t.Parallel()

	vt := vtStub(t, vtStats(1, 0))

	res, err := checkReputation(context.Background(), vt, nil, "example.com", "https://example.com")
	if err != nil {
		t.Fatalf("checkReputation: %v", err)
	}
	scoreNear(t, res, 0.8)
}
