package scan

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<html><head><title>Corner Shop</title>
<script>var tracking = "SECRET_TOKEN";</script>
<style>.x { color: red }</style></head>
<body><p>Welcome to the corner shop, purveyor of quality goods since 1987.
We stock groceries, hardware and stationery at honest prices.</p></body></html>`

func TestFetchPageReturnsRawAndText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	raw, text := FetchPage(srv.URL, 2*time.Second)
	if !strings.Contains(raw, "<title>Corner Shop</title>") {
		t.Error("raw HTML not returned intact")
	}
	if !strings.Contains(text, "quality goods") {
		t.Errorf("visible text missing from extraction: %q", text)
	}
	if strings.Contains(text, "SECRET_TOKEN") {
		t.Error("script body leaked into extracted text")
	}
}

func TestFetchPageRejectsNonHTML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"big": "` + strings.Repeat("x", 200) + `"}`))
	}))
	defer srv.Close()

	raw, text := FetchPage(srv.URL, 2*time.Second)
	if raw != "" || text != "" {
		t.Errorf("non-HTML content should be ignored, got %d raw bytes", len(raw))
	}
}

func TestFetchPageRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("gone ", 50), http.StatusNotFound)
	}))
	defer srv.Close()

	if raw, _ := FetchPage(srv.URL, 2*time.Second); raw != "" {
		t.Error("4xx body should not be treated as page content")
	}
}

func TestFetchPageRejectsTinyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	if raw, _ := FetchPage(srv.URL, 2*time.Second); raw != "" {
		t.Error("undersized body should be treated as no content")
	}
}

func TestExtractTextEmptyInput(t *testing.T) {
	t.Parallel()

	if got := ExtractText("  \n "); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestExtractTextStripsNonContent(t *testing.T) {
	t.Parallel()

	text := ExtractText(samplePage)
	if strings.Contains(text, "SECRET_TOKEN") || strings.Contains(text, "color: red") {
		t.Errorf("non-content nodes leaked: %q", text)
	}
	if !strings.Contains(text, "honest prices") {
		t.Errorf("body text missing: %q", text)
	}
}

func TestTextNodeWalkSkipsScripts(t *testing.T) {
	t.Parallel()

	raw := `<script>var hidden = 1;</script><p>hello world this is the visible part of a fairly ordinary page</p>`
	text := textNodeWalk(raw)
	if strings.Contains(text, "hidden") {
		t.Errorf("script body leaked: %q", text)
	}
	if !strings.Contains(text, "visible part") {
		t.Errorf("text node missing: %q", text)
	}
}

func TestSquashWhitespace(t *testing.T) {
	t.Parallel()

	if got := squashWhitespace("a\n\n   b\t c "); got != "a b c" {
		t.Errorf("expected %q, got %q", "a b c", got)
	}
}
