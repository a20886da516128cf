// Package bridge runs a small localhost listener that companion tools (for
// example a browser extension) can push URLs into. Accepted URLs are handed
// to the service over a buffered channel; the bridge itself never scans
// anything.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultAddr  = "127.0.0.1:38999"
	DefaultToken = "dev-token"

	queueSize = 64
)

// Submission is one URL accepted from a companion client.
type Submission struct {
	URL        string    `json:"url"`
	ReceivedAt time.Time `json:"received_at"`
}

// Server accepts URL submissions on a local port behind a shared-token
// check. Each URL is accepted once per process lifetime.
type Server struct {
	addr  string
	token string

	mu   sync.Mutex
	seen map[string]bool

	subs chan Submission
	srv  *http.Server
}

func New(addr, token string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if token == "" {
		token = DefaultToken
	}
	s := &Server{
		addr:  addr,
		token: token,
		seen:  make(map[string]bool),
		subs:  make(chan Submission, queueSize),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/download", s.handleDownload)
	mux.HandleFunc("/health", s.handleHealth)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Submissions delivers accepted URLs in arrival order.
func (s *Server) Submissions() <-chan Submission {
	return s.subs
}

func (s *Server) Addr() string {
	return s.addr
}

// Start blocks serving the bridge until Shutdown.
func (s *Server) Start() error {
	log.WithField("addr", s.addr).Info("bridge listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	// CORS headers (submissions come from extension contexts)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.Header.Get("X-Auth") != s.token {
		sendError(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if !validURL(req.URL) {
		sendError(w, "Invalid URL", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.seen[req.URL] {
		s.mu.Unlock()
		sendError(w, "URL already submitted", http.StatusConflict)
		return
	}
	s.seen[req.URL] = true
	s.mu.Unlock()

	select {
	case s.subs <- Submission{URL: req.URL, ReceivedAt: time.Now().UTC()}:
	default:
		// Queue full. Forget the URL so a later retry is not refused as a
		// duplicate.
		s.mu.Lock()
		delete(s.seen, req.URL)
		s.mu.Unlock()
		sendError(w, "Submission queue is full, try again later", http.StatusServiceUnavailable)
		return
	}

	log.WithField("url", req.URL).Info("bridge accepted URL")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "url": req.URL})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func validURL(raw string) bool {
	if raw == "" {
		return false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
