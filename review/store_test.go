package review

import (
	"errors"
	"math"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndList(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	saved, err := store.Save("https://example.com/shop", "alice", 8, "Fast shipping.")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == 0 {
		t.Error("expected an assigned ID")
	}
	if saved.CreatedAt.IsZero() {
		t.Error("expected a creation timestamp")
	}

	if _, err := store.Save("https://example.com/shop", "bob", 6, ""); err != nil {
		t.Fatalf("save second user: %v", err)
	}

	reviews, err := store.ForURL("https://example.com/shop")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(reviews))
	}
	for _, r := range reviews {
		if r.UserID != "alice" && r.UserID != "bob" {
			t.Errorf("unexpected reviewer %q", r.UserID)
		}
	}
}

func TestSaveRejectsOutOfRangeScore(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	for _, score := range []float64{-1, 10.5, 11} {
		_, err := store.Save("https://example.com", "alice", score, "")
		if !errors.Is(err, ErrScoreRange) {
			t.Errorf("score %v: expected ErrScoreRange, got %v", score, err)
		}
	}
}

func TestSaveRejectsEmptyUser(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	if _, err := store.Save("https://example.com", "   ", 5, ""); err == nil {
		t.Error("expected error for blank user id")
	}
}

func TestSaveOncePerUserAndURL(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	if _, err := store.Save("https://example.com", "alice", 7, ""); err != nil {
		t.Fatalf("first save: %v", err)
	}
	_, err := store.Save("https://example.com", "alice", 3, "changed my mind")
	if !errors.Is(err, ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}

	// A different URL by the same user is fine.
	if _, err := store.Save("https://other.example", "alice", 3, ""); err != nil {
		t.Errorf("save for different URL: %v", err)
	}
}

func TestURLKeyCanonicalizes(t *testing.T) {
	t.Parallel()

	base := URLKey("https://example.com/shop")
	equivalents := []string{
		"HTTPS://EXAMPLE.COM/shop",
		"https://example.com/shop/",
		"https://example.com/shop#reviews",
		"example.com/shop",
	}
	for _, raw := range equivalents {
		if got := URLKey(raw); got != base {
			t.Errorf("URLKey(%q): expected %q, got %q", raw, base, got)
		}
	}

	distinct := []string{
		"https://example.com/shop/item",
		"http://example.com/shop",
		"https://example.com/Shop",
	}
	for _, raw := range distinct {
		if got := URLKey(raw); got == base {
			t.Errorf("URLKey(%q) must differ from the base key", raw)
		}
	}
}

func TestURLKeySharesReviews(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	if _, err := store.Save("https://Example.com/page/", "alice", 9, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	reviews, err := store.ForURL("example.com/page")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reviews) != 1 {
		t.Errorf("expected the spellings to share one review set, got %d reviews", len(reviews))
	}
}

func TestScores(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	for user, score := range map[string]float64{"a": 8, "b": 9, "c": 7} {
		if _, err := store.Save("https://example.com", user, score, ""); err != nil {
			t.Fatalf("save %s: %v", user, err)
		}
	}

	scores, err := store.Scores("https://example.com")
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}
	total := 0.0
	for _, s := range scores {
		total += s
	}
	if math.Abs(total-24) > 1e-9 {
		t.Errorf("expected scores summing to 24, got %v", scores)
	}

	empty, err := store.Scores("https://nobody.example")
	if err != nil {
		t.Fatalf("scores for unreviewed URL: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no scores, got %v", empty)
	}
}

func TestDeleteOwnership(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)

	saved, err := store.Save("https://example.com", "alice", 8, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.Delete(saved.ID, "bob"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if err := store.Delete(9999, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(saved.ID, "alice"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}

	reviews, err := store.ForURL("https://example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reviews) != 0 {
		t.Errorf("expected empty store after delete, got %d reviews", len(reviews))
	}
}
