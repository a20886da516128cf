package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"trustscan/ai"
	"trustscan/bridge"
	"trustscan/review"
	"trustscan/scan"
)

func main() {
	_ = godotenv.Load()
	setupLogging()

	weights, err := scan.LoadWeights(os.Getenv("WEIGHTS_FILE"))
	if err != nil {
		log.WithError(err).Fatal("loading weights failed")
	}

	opts := scan.DefaultOptions()
	if v := os.Getenv("SCAN_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			opts.Timeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("SCAN_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.RetryCount = n
		}
	}
	opts.Screenshots = os.Getenv("SCREENSHOTS") == "true"

	engine := scan.NewEngine(weights, opts)

	// Review storage (pure-Go SQLite)
	dbPath := os.Getenv("REVIEW_DB")
	if dbPath == "" {
		dbPath = "reviews.db"
	}
	store, err := review.Open(dbPath)
	if err != nil {
		log.WithError(err).Fatal("opening review store failed")
	}
	defer store.Close()
	engine.Reviews = store

	// Content classifier (optional)
	if cls := ai.GetClassifier(); cls != nil {
		engine.Classifier = cls
	} else {
		log.Warn("⚠️ GROQ_API_KEYS not set, AI analysis will report no data")
	}

	if opts.Screenshots {
		shotter, err := scan.NewChromeShotter(os.Getenv("SCREENSHOT_DIR"))
		if err != nil {
			log.WithError(err).Warn("screenshot directory unavailable, captures disabled")
		} else {
			engine.Shotter = shotter
		}
	}

	scanHandler := scan.NewHandler(engine)
	reviewHandler := review.NewHandler(store)

	// Scan endpoints
	http.HandleFunc("/check", scanHandler.HandleCheck)
	http.HandleFunc("/health", scanHandler.HandleHealth)

	// Review endpoints
	http.HandleFunc("/reviews", reviewHandler.HandleReviews)

	// Local bridge for companion tools (browser extension etc.)
	br := bridge.New(os.Getenv("BRIDGE_ADDR"), os.Getenv("BRIDGE_TOKEN"))
	go func() {
		if err := br.Start(); err != nil {
			log.WithError(err).Error("bridge server stopped")
		}
	}()
	go consumeSubmissions(engine, br)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Infof("✅ trustscan service listening on :%s", port)
	log.Info("📍 Endpoints:")
	log.Info("   POST /check    - Scan a URL")
	log.Info("   GET  /health   - Liveness probe")
	log.Info("   POST /reviews  - Submit a review (GET lists, DELETE removes)")
	log.Infof("   POST http://%s/download - Bridge URL submission", br.Addr())

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

// consumeSubmissions scans every URL pushed through the local bridge.
func consumeSubmissions(engine *scan.Engine, br *bridge.Server) {
	for sub := range br.Submissions() {
		report := engine.Run(context.Background(), sub.URL)
		log.WithFields(log.Fields{
			"url":     report.URL,
			"verdict": report.Verdict,
		}).Info("bridge submission scanned")
	}
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
