package review

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// Handler exposes the review store over HTTP.
type Handler struct {
	Store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{Store: store}
}

type submitRequest struct {
	URL     string  `json:"url"`
	UserID  string  `json:"user_id"`
	Score   float64 `json:"score"`
	Comment string  `json:"comment"`
}

type deleteRequest struct {
	ReviewID int64  `json:"review_id"`
	UserID   string `json:"user_id"`
}

// HandleReviews serves POST (submit), GET (list by ?url=) and DELETE on one
// route.
func (h *Handler) HandleReviews(w http.ResponseWriter, r *http.Request) {
	// CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		h.submit(w, r)
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		sendError(w, "url is required", http.StatusBadRequest)
		return
	}

	rev, err := h.Store.Save(req.URL, req.UserID, req.Score, req.Comment)
	switch {
	case errors.Is(err, ErrScoreRange):
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrAlreadyReviewed):
		sendError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		log.WithError(err).Error("saving review failed")
		sendError(w, "Failed to save review", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusCreated, rev)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		sendError(w, "url query parameter is required", http.StatusBadRequest)
		return
	}

	reviews, err := h.Store.ForURL(rawURL)
	if err != nil {
		log.WithError(err).Error("listing reviews failed")
		sendError(w, "Failed to load reviews", http.StatusInternalServerError)
		return
	}
	if reviews == nil {
		reviews = []Review{}
	}

	sendJSON(w, http.StatusOK, map[string]any{"url": rawURL, "reviews": reviews})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.Store.Delete(req.ReviewID, req.UserID)
	switch {
	case errors.Is(err, ErrNotFound):
		sendError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, ErrNotOwner):
		sendError(w, err.Error(), http.StatusForbidden)
		return
	case err != nil:
		log.WithError(err).Error("deleting review failed")
		sendError(w, "Failed to delete review", http.StatusInternalServerError)
		return
	}

	sendJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func sendJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
