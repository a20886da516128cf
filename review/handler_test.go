package review

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	m.Run()
}

func reviewsRequest(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	rec := httptest.NewRecorder()
	h.HandleReviews(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func TestHandleReviewsSubmitAndList(t *testing.T) {
	t.Parallel()
	h := NewHandler(openTestStore(t))

	rec := reviewsRequest(t, h, http.MethodPost, "/reviews",
		`{"url":"https://example.com","user_id":"alice","score":8,"comment":"solid"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var saved Review
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode saved review: %v", err)
	}
	if saved.ID == 0 || saved.UserID != "alice" {
		t.Errorf("unexpected saved review %+v", saved)
	}

	rec = reviewsRequest(t, h, http.MethodGet, "/reviews?url=https://example.com", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listed struct {
		URL     string   `json:"url"`
		Reviews []Review `json:"reviews"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Reviews) != 1 || listed.Reviews[0].Comment != "solid" {
		t.Errorf("unexpected listing %+v", listed)
	}
}

func TestHandleReviewsListEmpty(t *testing.T) {
	t.Parallel()
	h := NewHandler(openTestStore(t))

	rec := reviewsRequest(t, h, http.MethodGet, "/reviews?url=https://quiet.example", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	// Empty set must serialize as [], not null.
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"reviews":[]`)) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestHandleReviewsValidation(t *testing.T) {
	t.Parallel()
	h := NewHandler(openTestStore(t))

	cases := []struct {
		name     string
		method   string
		target   string
		body     string
		expected int
	}{
		{"submit bad json", http.MethodPost, "/reviews", "{{{", http.StatusBadRequest},
		{"submit missing url", http.MethodPost, "/reviews", `{"user_id":"a","score":5}`, http.StatusBadRequest},
		{"submit score out of range", http.MethodPost, "/reviews", `{"url":"https://x.example","user_id":"a","score":11}`, http.StatusBadRequest},
		{"list missing url", http.MethodGet, "/reviews", "", http.StatusBadRequest},
		{"delete bad json", http.MethodDelete, "/reviews", "{{{", http.StatusBadRequest},
		{"wrong method", http.MethodPut, "/reviews", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := reviewsRequest(t, h, tc.method, tc.target, tc.body)
			if rec.Code != tc.expected {
				t.Errorf("expected %d, got %d: %s", tc.expected, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleReviewsDuplicateConflicts(t *testing.T) {
	t.Parallel()
	h := NewHandler(openTestStore(t))

	body := `{"url":"https://example.com","user_id":"alice","score":8}`
	if rec := reviewsRequest(t, h, http.MethodPost, "/reviews", body); rec.Code != http.StatusCreated {
		t.Fatalf("first submit: expected 201, got %d", rec.Code)
	}
	rec := reviewsRequest(t, h, http.MethodPost, "/reviews", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", rec.Code)
	}
}

func TestHandleReviewsDelete(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	h := NewHandler(store)

	saved, err := store.Save("https://example.com", "alice", 8, "")
	if err != nil {
		t.Fatalf("seed review: %v", err)
	}

	rec := reviewsRequest(t, h, http.MethodDelete, "/reviews",
		`{"review_id":`+jsonInt(saved.ID)+`,"user_id":"mallory"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for foreign delete, got %d", rec.Code)
	}

	rec = reviewsRequest(t, h, http.MethodDelete, "/reviews",
		`{"review_id":424242,"user_id":"alice"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown review, got %d", rec.Code)
	}

	rec = reviewsRequest(t, h, http.MethodDelete, "/reviews",
		`{"review_id":`+jsonInt(saved.ID)+`,"user_id":"alice"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for owner delete, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleReviewsPreflight(t *testing.T) {
	t.Parallel()
	h := NewHandler(openTestStore(t))

	rec := reviewsRequest(t, h, http.MethodOptions, "/reviews", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("expected CORS method header")
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
