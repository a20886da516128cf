package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ScreenshotArtifact records one capture attempt. Failures keep the label
// so the report shows which profile produced nothing.
type ScreenshotArtifact struct {
	Label   string `json:"label"`
	Path    string `json:"path,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Screenshotter captures the page as a set of per-device images. It is a
// side channel: capture results never influence scoring.
type Screenshotter interface {
	Capture(ctx context.Context, rawURL, scanID string) []ScreenshotArtifact
}

type deviceProfile struct {
	Label     string
	Width     int64
	Height    int64
	Mobile    bool
	UserAgent string
}

var deviceProfiles = []deviceProfile{
	{
		Label: "desktop-large", Width: 1920, Height: 1080,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	},
	{
		Label: "desktop", Width: 1366, Height: 768,
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	},
	{
		Label: "tablet", Width: 768, Height: 1024, Mobile: true,
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	},
	{
		Label: "mobile", Width: 390, Height: 844, Mobile: true,
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
	},
	{
		Label: "mobile-small", Width: 360, Height: 640, Mobile: true,
		UserAgent: "Mozilla/5.0 (Linux; Android 14; SM-A156B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
	},
}

const (
	screenshotPageTimeout = 25 * time.Second
	screenshotSettle      = 2 * time.Second // wait for JS to render
)

// ChromeShotter captures screenshots with headless Chrome, one browser tab
// per device profile.
type ChromeShotter struct {
	OutDir string
}

func NewChromeShotter(outDir string) (*ChromeShotter, error) {
	if outDir == "" {
		outDir = "screenshots"
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}
	return &ChromeShotter{OutDir: outDir}, nil
}

// Capture renders the URL under every device profile. One allocator (one
// Chrome process) is shared; each profile gets its own tab.
func (s *ChromeShotter) Capture(ctx context.Context, rawURL, scanID string) []ScreenshotArtifact {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("ignore-certificate-errors", true),
	)
	if chromePath := os.Getenv("CHROME_PATH"); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	artifacts := make([]ScreenshotArtifact, len(deviceProfiles))

	g, gctx := errgroup.WithContext(allocCtx)
	g.SetLimit(3)
	for i, profile := range deviceProfiles {
		i, profile := i, profile
		g.Go(func() error {
			artifacts[i] = s.captureOne(gctx, rawURL, scanID, profile)
			return nil
		})
	}
	g.Wait()

	return artifacts
}

func (s *ChromeShotter) captureOne(ctx context.Context, rawURL, scanID string, p deviceProfile) ScreenshotArtifact {
	tabCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	tabCtx, timeoutCancel := context.WithTimeout(tabCtx, screenshotPageTimeout)
	defer timeoutCancel()

	var buf []byte
	err := chromedp.Run(tabCtx,
		emulation.SetUserAgentOverride(p.UserAgent),
		emulation.SetDeviceMetricsOverride(p.Width, p.Height, 1.0, p.Mobile),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(screenshotSettle),
		chromedp.CaptureScreenshot(&buf),
	)
	if err != nil {
		log.WithFields(log.Fields{"profile": p.Label, "url": rawURL}).WithError(err).Warn("screenshot capture failed")
		return ScreenshotArtifact{Label: p.Label, Error: err.Error()}
	}

	path := filepath.Join(s.OutDir, fmt.Sprintf("%s_%s.png", scanID, p.Label))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		log.WithField("path", path).WithError(err).Warn("writing screenshot failed")
		return ScreenshotArtifact{Label: p.Label, Error: err.Error()}
	}
	return ScreenshotArtifact{Label: p.Label, Path: path, Success: true}
}
