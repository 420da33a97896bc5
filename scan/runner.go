// Package scan sequences one site scan: fetch the home page, discover more
// pages, extract signals, score, price, and optionally ask the AI, all under
// one wall-clock budget.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/fyxxlabs/sitescan/augment"
	"github.com/fyxxlabs/sitescan/config"
	"github.com/fyxxlabs/sitescan/discovery"
	"github.com/fyxxlabs/sitescan/engine"
	"github.com/fyxxlabs/sitescan/metrics"
	"github.com/fyxxlabs/sitescan/models"
	"github.com/fyxxlabs/sitescan/pricing"
	"github.com/fyxxlabs/sitescan/scoring"
	"github.com/fyxxlabs/sitescan/signals"
	"github.com/fyxxlabs/sitescan/simhash"
)

// minPagesForConfidence is the page count below which confidence is capped
// at medium.
const minPagesForConfidence = 3

// Discoverer finds candidate pages. *discovery.Discoverer satisfies it.
type Discoverer interface {
	Discover(ctx context.Context, homeURL, homeHTML string, budget int) discovery.Result
}

// Benchmarker estimates competitor prices. *pricing.Benchmarker satisfies it.
type Benchmarker interface {
	Benchmark(ctx context.Context, titles []string, ownAvg *float64) (*float64, int)
}

// Augmenter runs the AI phase. *augment.Augmenter satisfies it.
type Augmenter interface {
	Augment(ctx context.Context, in augment.Input) augment.Outcome
}

// Guard is consulted between phases. A non-nil error aborts the scan as
// pipeline-fatal, e.g. when the store the scan belongs to was deleted.
type Guard func(ctx context.Context) error

// Deps are the collaborators of a Runner. Benchmarker and Augmenter may be
// nil.
type Deps struct {
	Fetcher     discovery.PageFetcher
	Discoverer  Discoverer
	Extractor   *signals.Extractor
	Benchmarker Benchmarker
	Augmenter   Augmenter
}

// Runner executes scans. It holds no per-scan state and is safe for
// concurrent use.
type Runner struct {
	deps   Deps
	cfg    config.ScanConfig
	scorer scoring.Scorer
	now    func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(deps Deps, cfg config.ScanConfig) *Runner {
	if deps.Extractor == nil {
		deps.Extractor = signals.NewExtractor(nil, cfg.TextSampleChars)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.HeavyScriptThreshold <= 0 {
		cfg.HeavyScriptThreshold = scoring.DefaultHeavyScriptThreshold
	}
	return &Runner{
		deps:   deps,
		cfg:    cfg,
		scorer: scoring.Scorer{HeavyScriptThreshold: cfg.HeavyScriptThreshold},
		now:    time.Now,
	}
}

// Run executes one scan without a guard.
func (r *Runner) Run(ctx context.Context, req models.ScanRequest, sink models.ProgressSink) (*models.ScanResult, error) {
	return r.RunGuarded(ctx, req, sink, nil)
}

// pageSlot is owned by exactly one fetch goroutine.
type pageSlot struct {
	sig           *models.PageSignals
	failed        bool
	skippedBudget bool
	plainFallback bool
}

// RunGuarded executes one scan. Fetch, extraction and AI failures degrade
// the result but never fail the run; the only error is a pipeline-fatal
// *models.ScanError caused by guard or by ctx being cancelled.
func (r *Runner) RunGuarded(ctx context.Context, req models.ScanRequest, sink models.ProgressSink, guard Guard) (*models.ScanResult, error) {
	req.Defaults()
	start := r.now()
	fetchCutoff := start.Add(r.cfg.Budget - r.cfg.AIReserve)
	preferred := engine.ParseMode(req.FetchMode)

	metrics.ActiveScans.Inc()
	defer metrics.ActiveScans.Dec()

	rep := newReporter(sink)
	res := &models.ScanResult{
		PagesScanned: []string{},
		Raw: models.RawDiagnostics{
			FetchMode:       string(preferred),
			ProductAnalyses: []models.ProductAnalysis{},
			PriceInsights:   models.PriceInsights{ProductURLs: []string{}},
			AI:              r.skippedAI(),
		},
	}

	check := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if guard != nil {
			return guard(ctx)
		}
		return nil
	}
	fatal := func(err error) (*models.ScanResult, error) {
		slog.Error("scan aborted", "url", req.URL, "error", err)
		rep.report(100, models.StepFailed, "Scan failed")
		metrics.ScansTotal.WithLabelValues("failed").Inc()
		return nil, models.NewScanError(models.ErrCodePipelineFatal, "scan aborted", err)
	}

	// FETCH_HOME
	if err := check(); err != nil {
		return fatal(err)
	}
	rep.report(pctFetchHome, models.StepFetchHome, "Fetching home page")
	home, mode, err := r.deps.Fetcher.Fetch(ctx, req.URL, preferred)
	res.Raw.Timing.HomeMs = r.since(start)
	res.Raw.FetchMode = string(mode)
	if err != nil {
		if ctx.Err() != nil {
			return fatal(ctx.Err())
		}
		slog.Warn("home page unreachable, returning baseline", "url", req.URL, "error", err)
		res.Raw.HomeError = models.ErrorCode(err, models.ErrCodeFetch) + ": " + err.Error()
		res.BaselineResult = r.scorer.Score(nil)
		res.Confidence = models.ConfidenceLow
		res.Limitations = []string{"The home page could not be fetched; this is a default baseline, not an analysis of the store."}
		return r.finish(res, rep, start, "degraded"), nil
	}
	res.Raw.Downgraded = preferred == engine.ModeRendered && mode == engine.ModePlain

	homeSig := r.deps.Extractor.Extract(home.HTML, req.URL)
	homeSig.PageType = models.PageHome
	pages := []models.PageSignals{homeSig}

	// DISCOVER_PAGES
	if err := check(); err != nil {
		return fatal(err)
	}
	rep.report(pctDiscover, models.StepDiscoverPages, "Discovering pages")
	discoverStart := r.now()
	var candidates []string
	if r.deps.Discoverer != nil {
		linkBase := req.URL
		if home.FinalURL != "" {
			linkBase = home.FinalURL
		}
		candidates = r.deps.Discoverer.Discover(ctx, linkBase, home.HTML, r.cfg.PageBudget).URLs
	}
	candidates = lo.Without(candidates, req.URL)
	if r.cfg.PageBudget > 0 && len(candidates) > r.cfg.PageBudget {
		candidates = candidates[:r.cfg.PageBudget]
	}
	res.Raw.Pages.Discovered = len(candidates)
	res.Raw.Timing.DiscoverMs = r.since(discoverStart)

	// EXTRACT
	if err := check(); err != nil {
		return fatal(err)
	}
	rep.report(pctExtract, models.StepExtract, fmt.Sprintf("Analysing %d pages", len(candidates)+1))
	extractStart := r.now()
	slots := r.extract(ctx, candidates, preferred, fetchCutoff, rep)
	res.Raw.Timing.ExtractMs = r.since(extractStart)
	if err := check(); err != nil {
		return fatal(err)
	}

	for _, s := range slots {
		switch {
		case s.skippedBudget:
			res.Raw.Pages.SkippedBudget++
		case s.failed:
			res.Raw.Pages.Failed++
		case s.sig != nil:
			res.Raw.Pages.Fetched++
			pages = append(pages, *s.sig)
			if s.plainFallback {
				res.Raw.Pages.PlainFallback++
			}
		}
	}
	res.Raw.Pages.Fetched++ // home
	res.PagesScanned = lo.Uniq(lo.Map(pages, func(p models.PageSignals, _ int) string { return p.URL }))

	// SCORE
	rep.report(pctScore, models.StepScore, "Scoring")
	baseline := r.scorer.Score(pages)
	res.BaselineResult = baseline
	res.Raw.ProductAnalyses = r.productAnalyses(req, pages)
	res.Raw.PriceInsights = pricing.Aggregate(res.Raw.ProductAnalyses)
	if r.deps.Benchmarker != nil && r.now().Before(fetchCutoff) {
		titles := lo.Map(res.Raw.ProductAnalyses, func(pa models.ProductAnalysis, _ int) string { return pa.Title })
		avg, n := r.deps.Benchmarker.Benchmark(ctx, titles, res.Raw.PriceInsights.AvgPrice)
		res.Raw.PriceInsights.CompetitorAvgPrice = avg
		res.Raw.PriceInsights.CompetitorSamples = n
	}

	// AI_SUMMARY
	if err := check(); err != nil {
		return fatal(err)
	}
	var notes augment.Notes
	if !req.SkipAI && r.deps.Augmenter != nil {
		rep.report(pctAI, models.StepAISummary, "Writing AI summary")
		aiStart := r.now()
		outcome := r.deps.Augmenter.Augment(ctx, augment.Input{
			Request:  req,
			Pages:    pages,
			Products: res.Raw.ProductAnalyses,
			Prices:   res.Raw.PriceInsights,
			Baseline: baseline,
		})
		res.Raw.Timing.AIMs = r.since(aiStart)
		res.Raw.AI = outcome.Diagnostics
		res.BaselineResult = outcome.Result
		notes = outcome.Notes
	}
	if err := check(); err != nil {
		return fatal(err)
	}

	res.Confidence = confidence(res.Raw.AI.Status == models.AIStatusOK, notes.Confidence,
		res.Raw.Downgraded, len(pages))
	res.Limitations = limitations(res, notes)

	outcome := "succeeded"
	if res.Raw.AI.Status != models.AIStatusOK {
		outcome = "degraded"
	}
	return r.finish(res, rep, start, outcome), nil
}

// extract fetches candidates with bounded concurrency. Each goroutine checks
// the fetch cutoff right before starting; in-flight fetches are never
// interrupted by it.
func (r *Runner) extract(ctx context.Context, urls []string, preferred engine.Mode, cutoff time.Time, rep *reporter) []pageSlot {
	slots := make([]pageSlot, len(urls))
	if len(urls) == 0 {
		return slots
	}

	var completed atomic.Int32
	progress := func() {
		n := int(completed.Add(1))
		rep.report(pctExtract+(pctExtracted-pctExtract)*n/len(urls), models.StepExtract,
			fmt.Sprintf("Analysed %d of %d pages", n, len(urls)))
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			defer progress()
			if !r.now().Before(cutoff) || gCtx.Err() != nil {
				slots[i].skippedBudget = true
				return nil
			}
			fr, mode, err := r.deps.Fetcher.Fetch(gCtx, u, preferred)
			if err != nil {
				slog.Debug("page fetch failed", "url", u, "error", err)
				slots[i].failed = true
				return nil
			}
			sig := r.deps.Extractor.Extract(fr.HTML, u)
			slots[i].sig = &sig
			slots[i].plainFallback = preferred == engine.ModeRendered && mode == engine.ModePlain
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

// productAnalyses prefers connector products over crawled product pages.
// Near-duplicate product pages contribute a single analysis.
func (r *Runner) productAnalyses(req models.ScanRequest, pages []models.PageSignals) []models.ProductAnalysis {
	out := []models.ProductAnalysis{}
	if len(req.CommerceAPIProducts) > 0 {
		for _, p := range req.CommerceAPIProducts {
			out = append(out, pricing.FromCommerceProduct(p))
		}
		return out
	}

	products := lo.Filter(pages, func(p models.PageSignals, _ int) bool { return p.PageType == models.PageProduct })
	fps := lo.Map(products, func(p models.PageSignals, _ int) uint64 { return p.Fingerprint })
	for _, i := range simhash.Unique(fps, simhash.NearDuplicateDistance) {
		out = append(out, pricing.FromSignals(products[i], r.scorer.HeavyScriptThreshold))
	}
	return out
}

func (r *Runner) skippedAI() models.AIDiagnostics {
	return models.AIDiagnostics{Enabled: r.deps.Augmenter != nil, Status: models.AIStatusSkipped}
}

func (r *Runner) finish(res *models.ScanResult, rep *reporter, start time.Time, outcome string) *models.ScanResult {
	res.Raw.Timing.TotalMs = r.since(start)
	metrics.ScansTotal.WithLabelValues(outcome).Inc()
	metrics.ScanDuration.Observe(r.now().Sub(start).Seconds())
	metrics.PagesScanned.Observe(float64(len(res.PagesScanned)))
	rep.report(100, models.StepDone, "Scan complete")
	return res
}

func (r *Runner) since(t time.Time) int64 {
	return r.now().Sub(t).Milliseconds()
}

// confidence is low unless the AI result was accepted. An accepted result
// takes the AI's own rating, capped at medium for thin or downgraded runs.
func confidence(aiOK bool, aiConfidence string, downgraded bool, pages int) string {
	if !aiOK {
		return models.ConfidenceLow
	}
	c := aiConfidence
	if c == "" {
		c = models.ConfidenceHigh
	}
	if (downgraded || pages < minPagesForConfidence) && c == models.ConfidenceHigh {
		c = models.ConfidenceMedium
	}
	return c
}

func limitations(res *models.ScanResult, notes augment.Notes) []string {
	var out []string
	if res.Raw.Downgraded {
		out = append(out, "The browser render failed; the static HTML of the store was analysed instead.")
	}
	if n := len(res.PagesScanned); n < minPagesForConfidence {
		out = append(out, fmt.Sprintf("Only %d page(s) could be analysed.", n))
	}
	if res.Raw.Pages.SkippedBudget > 0 {
		out = append(out, fmt.Sprintf("%d page(s) were skipped to stay within the time budget.", res.Raw.Pages.SkippedBudget))
	}
	switch res.Raw.AI.Status {
	case models.AIStatusFailed:
		out = append(out, "The AI review was unavailable; results come from the baseline audit.")
	case models.AIStatusOK:
		out = append(out, notes.Limitations...)
	}
	return lo.Uniq(out)
}

// IsFatal reports whether err is a pipeline-fatal scan error.
func IsFatal(err error) bool {
	var se *models.ScanError
	return errors.As(err, &se) && se.Code == models.ErrCodePipelineFatal
}
