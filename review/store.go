package review

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite" // pure Go, no cgo needed
)

var (
	ErrScoreRange      = errors.New("review score must be between 0 and 10")
	ErrAlreadyReviewed = errors.New("user already reviewed this URL")
	ErrNotFound        = errors.New("review not found")
	ErrNotOwner        = errors.New("review belongs to another user")
)

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	url_key    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	score      REAL NOT NULL,
	comment    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	UNIQUE (url_key, user_id)
);
CREATE INDEX IF NOT EXISTS idx_reviews_url_key ON reviews (url_key);
`

// Review is one user's rating of one URL.
type Review struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Score     float64   `json:"score"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists user reviews in SQLite, keyed by a canonical form of the
// reviewed URL so trivially different spellings share one review set.
type Store struct {
	db *sql.DB
}

// Open creates or opens the review database at path. ":memory:" works for
// tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open review db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create review schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// URLKey canonicalizes a URL and encodes it as a filesystem- and
// query-string-safe key.
func URLKey(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(canonicalURL(rawURL)))
}

// canonicalURL lowercases the scheme and host and drops fragments and
// trailing slashes so equivalent spellings collapse to one key.
func canonicalURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// Save records one review. A user gets one review per URL; a second attempt
// returns ErrAlreadyReviewed.
func (s *Store) Save(rawURL, userID string, score float64, comment string) (Review, error) {
	if score < 0 || score > 10 {
		return Review{}, ErrScoreRange
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Review{}, errors.New("user id is required")
	}

	rev := Review{
		UserID:    userID,
		Score:     score,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.db.Exec(
		`INSERT INTO reviews (url_key, user_id, score, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
		URLKey(rawURL), rev.UserID, rev.Score, rev.Comment, rev.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return Review{}, ErrAlreadyReviewed
		}
		return Review{}, fmt.Errorf("insert review: %w", err)
	}
	rev.ID, err = res.LastInsertId()
	if err != nil {
		return Review{}, fmt.Errorf("read review id: %w", err)
	}
	return rev, nil
}

// ForURL returns every review of the URL, newest first.
func (s *Store) ForURL(rawURL string) ([]Review, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, score, comment, created_at FROM reviews WHERE url_key = ? ORDER BY created_at DESC, id DESC`,
		URLKey(rawURL),
	)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.UserID, &r.Score, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// Scores returns just the numeric ratings for the URL.
func (s *Store) Scores(rawURL string) ([]float64, error) {
	rows, err := s.db.Query(`SELECT score FROM reviews WHERE url_key = ?`, URLKey(rawURL))
	if err != nil {
		return nil, fmt.Errorf("query review scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan review score: %w", err)
		}
		scores = append(scores, v)
	}
	return scores, rows.Err()
}

// Delete removes a review. Only its author may delete it.
func (s *Store) Delete(reviewID int64, userID string) error {
	var owner string
	err := s.db.QueryRow(`SELECT user_id FROM reviews WHERE id = ?`, reviewID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("look up review: %w", err)
	}
	if owner != userID {
		return ErrNotOwner
	}
	if _, err := s.db.Exec(`DELETE FROM reviews WHERE id = ?`, reviewID); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}
