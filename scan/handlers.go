package scan

import (
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

type CheckRequest struct {
	URL string `json:"url"`
}

// Handler exposes the scan engine over HTTP.
type Handler struct {
	Engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{Engine: engine}
}

// HandleCheck runs a full scan for the URL in the request body.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	// CORS headers
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CheckRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	report := h.Engine.Run(r.Context(), req.URL)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report); err != nil {
		log.WithError(err).Error("encoding scan report failed")
		return
	}

	log.WithFields(log.Fields{"url": report.URL, "verdict": report.Verdict}).Info("✅ check completed")
}

// HandleHealth answers liveness probes.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
