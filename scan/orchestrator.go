package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"trustscan/ai"
)

const (
	quickProbeTimeout     = 3 * time.Second
	pageFetchTimeout      = 20 * time.Second
	screenshotJoinTimeout = 90 * time.Second
)

// Options bound the work one scan is allowed to do.
type Options struct {
	Timeout     time.Duration // per attempt, per module
	RetryCount  int           // retries after the first attempt
	Workers     int           // modules running at once
	Screenshots bool
}

func DefaultOptions() Options {
	return Options{
		Timeout:    30 * time.Second,
		RetryCount: 2,
		Workers:    len(ModuleNames),
	}
}

// Engine runs every check module against a URL and aggregates the results.
// Optional collaborators (reviews, classifier, screenshots) may be nil; the
// corresponding modules then report no data.
type Engine struct {
	Weights    WeightTable
	Opts       Options
	Reviews    ReviewSource
	Classifier *ai.Classifier
	Shotter    Screenshotter

	vt  *vtClient
	gsb *gsbClient

	sleep sleepFunc // test seam
}

func NewEngine(weights WeightTable, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.Workers <= 0 {
		opts.Workers = len(ModuleNames)
	}
	vt, gsb := reputationClientsFromEnv()
	return &Engine{
		Weights: weights,
		Opts:    opts,
		vt:      vt,
		gsb:     gsb,
		sleep:   realSleep,
	}
}

// targetData is everything fetched once and shared across modules.
type targetData struct {
	URL      string
	Host     string
	PageRaw  string
	PageText string
	Facts    *SiteFacts
}

type namedCheck struct {
	Name string
	Fn   CheckFunc
}

// Run scans one URL. It always returns a complete report: an unreachable
// target short-circuits before any module runs, and module faults are
// folded into exclusion flags rather than surfacing as errors.
func (e *Engine) Run(ctx context.Context, rawURL string) ScanReport {
	start := time.Now()
	scanID := uuid.NewString()
	normalized := NormalizeURL(rawURL)

	log.WithFields(log.Fields{"url": normalized, "scan_id": scanID}).Info("scan started")

	reachable, reason := QuickCheck(normalized, quickProbeTimeout)
	if !reachable {
		log.WithFields(log.Fields{"url": normalized, "reason": reason}).Warn("target unreachable, skipping analysis")
		report := UnreachableReport(normalized, scanID, reason)
		report.ElapsedMS = time.Since(start).Milliseconds()
		return report
	}

	// Screenshots run off to the side; they never gate or score the scan.
	var shotCh chan []ScreenshotArtifact
	if e.Opts.Screenshots && e.Shotter != nil {
		shotCh = make(chan []ScreenshotArtifact, 1)
		go func() {
			shotCh <- e.Shotter.Capture(ctx, normalized, scanID)
		}()
	}

	target := e.gatherTarget(ctx, normalized)
	outcomes := e.runModules(ctx, e.buildModules(target))

	report := Aggregate(normalized, scanID, outcomes, e.Weights)
	if shotCh != nil {
		select {
		case report.Screenshots = <-shotCh:
		case <-time.After(screenshotJoinTimeout):
			log.WithField("url", normalized).Warn("screenshot capture still running, returning without images")
		}
	}
	report.ElapsedMS = time.Since(start).Milliseconds()

	finalScore := 0.0
	if report.FinalScore != nil {
		finalScore = *report.FinalScore
	}
	log.WithFields(log.Fields{
		"url":         normalized,
		"scan_id":     scanID,
		"final_score": finalScore,
		"verdict":     report.Verdict,
		"elapsed_ms":  report.ElapsedMS,
	}).Info("scan complete")
	return report
}

// gatherTarget fetches the shared inputs (page content, WHOIS/DNS/geo
// facts) concurrently. Individual fetch failures leave empty fields; the
// modules decide what that means for them.
func (e *Engine) gatherTarget(ctx context.Context, normalized string) *targetData {
	target := &targetData{URL: normalized, Host: HostnameOf(normalized)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		target.PageRaw, target.PageText = FetchPage(normalized, pageFetchTimeout)
		return nil
	})
	g.Go(func() error {
		target.Facts = FetchSiteFacts(gctx, normalized)
		return nil
	})
	g.Wait()
	return target
}

func (e *Engine) buildModules(t *targetData) []namedCheck {
	return []namedCheck{
		{ModuleCertificate, func(ctx context.Context) (CheckResult, error) {
			return checkCertificate(ctx, t.URL)
		}},
		{ModuleProtocol, func(ctx context.Context) (CheckResult, error) {
			return checkProtocol(ctx, t.URL)
		}},
		{ModulePattern, func(ctx context.Context) (CheckResult, error) {
			return checkPattern(ctx, t.URL)
		}},
		{ModuleHTML, func(ctx context.Context) (CheckResult, error) {
			return checkHTML(ctx, t.URL, t.PageRaw)
		}},
		{ModuleReputation, func(ctx context.Context) (CheckResult, error) {
			return checkReputation(ctx, e.vt, e.gsb, t.Host, t.URL)
		}},
		{ModuleReliability, func(ctx context.Context) (CheckResult, error) {
			return checkReliability(ctx, t.Facts)
		}},
		{ModuleDomainAge, func(ctx context.Context) (CheckResult, error) {
			return checkDomainAge(ctx, t.Facts, time.Now())
		}},
		{ModuleAI, func(ctx context.Context) (CheckResult, error) {
			return checkAI(ctx, e.Classifier, t.URL, t.PageText)
		}},
		{ModuleReview, func(ctx context.Context) (CheckResult, error) {
			return checkReview(e.Reviews, t.URL)
		}},
	}
}

// runModules executes every check concurrently and pins each outcome to its
// slot, so a slow or failed module never shifts its neighbours.
func (e *Engine) runModules(ctx context.Context, modules []namedCheck) []ModuleOutcome {
	outcomes := make([]ModuleOutcome, len(modules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Opts.Workers)
	for i, m := range modules {
		i, m := i, m
		g.Go(func() error {
			outcomes[i] = e.runModule(gctx, m.Name, m.Fn)
			return nil
		})
	}
	g.Wait()
	return outcomes
}

type moduleReturn struct {
	result CheckResult
	err    error
}

// runModule drives one check through its retry policy inside a hard budget
// of timeout*(retries+1). A module that ignores its context is abandoned
// when the budget expires; panics become ordinary failures.
func (e *Engine) runModule(ctx context.Context, name string, fn CheckFunc) ModuleOutcome {
	attempts := e.Opts.RetryCount + 1
	budget := e.Opts.Timeout * time.Duration(attempts)
	mctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan moduleReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- moduleReturn{err: fmt.Errorf("module panicked: %v", r)}
			}
		}()
		var last CheckResult
		err := withRetry(mctx, name, e.Opts.RetryCount, e.sleep, func() error {
			actx, acancel := context.WithTimeout(mctx, e.Opts.Timeout)
			defer acancel()
			r, ferr := fn(actx)
			if ferr != nil {
				return ferr
			}
			last = r
			return nil
		})
		done <- moduleReturn{result: last, err: err}
	}()

	var ret moduleReturn
	select {
	case ret = <-done:
	case <-mctx.Done():
		ret = moduleReturn{err: mctx.Err()}
	}

	if ret.err != nil {
		log.WithFields(log.Fields{"module": name}).WithError(ret.err).Error("module failed, excluding from score")
		return ModuleOutcome{
			Name:   name,
			Result: Scored(0.0, fmt.Sprintf("Analysis failed after %d attempts: %v", attempts, ret.err)),
			Status: StatusError,
		}
	}
	if ret.result.Score == nil {
		return ModuleOutcome{Name: name, Result: ret.result, Status: StatusNoData}
	}
	return ModuleOutcome{Name: name, Result: ret.result, Status: StatusOk}
}
