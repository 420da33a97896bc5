package scan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyxxlabs/sitescan/augment"
	"github.com/fyxxlabs/sitescan/config"
	"github.com/fyxxlabs/sitescan/discovery"
	"github.com/fyxxlabs/sitescan/engine"
	"github.com/fyxxlabs/sitescan/models"
)

const homeHTML = `<html lang="en"><head><title>Acme</title>
<meta name="viewport" content="width=device-width, initial-scale=1"></head>
<body><h1>Acme Linen</h1><button>Shop now</button><p>Free shipping and easy returns.</p>
<a href="/products/shirt">Shirt</a></body></html>`

func productHTML(name, body string) string {
	return `<html><head><title>` + name + `</title></head><body><h1>` + name +
		`</h1><p>` + body + `</p><p>$49.00</p><button>Add to cart</button></body></html>`
}

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	plain   map[string]bool // served plain even when rendered is preferred
	onFetch func(url string)
	calls   []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, preferred engine.Mode) (*engine.FetchResult, engine.Mode, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	hook := f.onFetch
	f.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	html, ok := f.pages[url]
	if !ok {
		return nil, engine.ModePlain, models.NewScanError(models.ErrCodeFetch, "HTTP 404", nil)
	}
	mode := preferred
	if f.plain[url] {
		mode = engine.ModePlain
	}
	return &engine.FetchResult{HTML: html, StatusCode: 200, FinalURL: url}, mode, nil
}

type fakeDiscoverer struct{ urls []string }

func (d fakeDiscoverer) Discover(context.Context, string, string, int) discovery.Result {
	return discovery.Result{URLs: d.urls}
}

type fakeAugmenter struct {
	outcome func(in augment.Input) augment.Outcome
	calls   int
}

func (a *fakeAugmenter) Augment(_ context.Context, in augment.Input) augment.Outcome {
	a.calls++
	return a.outcome(in)
}

func okAugmenter(score int, conf string) *fakeAugmenter {
	return &fakeAugmenter{outcome: func(in augment.Input) augment.Outcome {
		res := in.Baseline
		res.Score = score
		return augment.Outcome{
			Result:      res,
			Diagnostics: models.AIDiagnostics{Enabled: true, Status: models.AIStatusOK},
			Notes:       augment.Notes{Confidence: conf},
		}
	}}
}

type fakeBenchmarker struct{ calls int }

func (b *fakeBenchmarker) Benchmark(context.Context, []string, *float64) (*float64, int) {
	b.calls++
	v := 55.0
	return &v, 2
}

func testScanConfig() config.ScanConfig {
	return config.ScanConfig{
		Budget:               60 * time.Second,
		AIReserve:            15 * time.Second,
		Concurrency:          3,
		PageBudget:           10,
		HeavyScriptThreshold: 40,
		TextSampleChars:      500,
	}
}

func storeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{
		"https://shop.example/":              homeHTML,
		"https://shop.example/products/a":    productHTML("Linen shirt", "A breathable linen shirt woven in Portugal from flax."),
		"https://shop.example/products/b":    productHTML("Wool scarf", "A heavy merino scarf knitted in Scotland for winter walks in the hills."),
		"https://shop.example/pages/contact": `<html><body><h1>Contact</h1><p>Email hello@shop.example</p></body></html>`,
	}}
}

type progressLog struct {
	mu     sync.Mutex
	events []models.Progress
}

func (p *progressLog) sink(ev models.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *progressLog) check(t *testing.T, wantLast models.Step) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		t.Fatal("no progress events")
	}
	last := 0
	for i, ev := range p.events {
		if ev.Percent < last {
			t.Errorf("event %d: percent went from %d to %d", i, last, ev.Percent)
		}
		if ev.Percent == 100 && i != len(p.events)-1 {
			t.Errorf("event %d reports 100 before the end", i)
		}
		last = ev.Percent
	}
	end := p.events[len(p.events)-1]
	if end.Step != wantLast || end.Percent != 100 {
		t.Errorf("last event = %+v, want %s at 100", end, wantLast)
	}
}

func TestRun_FullScan(t *testing.T) {
	f := storeFetcher()
	aug := okAugmenter(77, models.ConfidenceHigh)
	bench := &fakeBenchmarker{}
	r := NewRunner(Deps{
		Fetcher: f,
		Discoverer: fakeDiscoverer{urls: []string{
			"https://shop.example/products/a",
			"https://shop.example/products/b",
			"https://shop.example/pages/contact",
			"https://shop.example/missing",
		}},
		Benchmarker: bench,
		Augmenter:   aug,
	}, testScanConfig())

	var log progressLog
	res, err := r.Run(context.Background(), models.ScanRequest{URL: "https://shop.example/"}, log.sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	log.check(t, models.StepDone)

	if res.Score != 77 || res.Raw.AI.Status != models.AIStatusOK {
		t.Errorf("score/ai = %d/%s", res.Score, res.Raw.AI.Status)
	}
	if res.Confidence != models.ConfidenceHigh {
		t.Errorf("Confidence = %q, want high", res.Confidence)
	}
	if len(res.PagesScanned) != 4 || res.PagesScanned[0] != "https://shop.example/" {
		t.Errorf("PagesScanned = %v", res.PagesScanned)
	}
	want := models.PageStats{Discovered: 4, Fetched: 4, Failed: 1}
	if res.Raw.Pages != want {
		t.Errorf("Pages = %+v, want %+v", res.Raw.Pages, want)
	}
	if len(res.Raw.ProductAnalyses) != 2 {
		t.Errorf("ProductAnalyses = %d, want 2", len(res.Raw.ProductAnalyses))
	}
	if ins := res.Raw.PriceInsights; ins.AvgPrice == nil || *ins.AvgPrice != 49 {
		t.Errorf("AvgPrice = %v, want 49", ins.AvgPrice)
	}
	if bench.calls != 1 || res.Raw.PriceInsights.CompetitorSamples != 2 {
		t.Errorf("benchmark calls = %d, samples = %d", bench.calls, res.Raw.PriceInsights.CompetitorSamples)
	}
}

func TestRun_HomeUnreachable(t *testing.T) {
	aug := okAugmenter(90, models.ConfidenceHigh)
	r := NewRunner(Deps{
		Fetcher:    &fakeFetcher{pages: map[string]string{}},
		Discoverer: fakeDiscoverer{urls: []string{"https://shop.example/products/a"}},
		Augmenter:  aug,
	}, testScanConfig())

	var log progressLog
	res, err := r.Run(context.Background(), models.ScanRequest{URL: "https://shop.example/"}, log.sink)
	if err != nil {
		t.Fatalf("home failure must not fail the run: %v", err)
	}
	log.check(t, models.StepDone)

	if res.Score != 50 || res.Confidence != models.ConfidenceLow {
		t.Errorf("score/confidence = %d/%s", res.Score, res.Confidence)
	}
	if !strings.HasPrefix(res.Raw.HomeError, models.ErrCodeFetch) {
		t.Errorf("HomeError = %q", res.Raw.HomeError)
	}
	if len(res.PagesScanned) != 0 || len(res.Limitations) == 0 {
		t.Errorf("PagesScanned = %v, Limitations = %v", res.PagesScanned, res.Limitations)
	}
	if res.Raw.FetchMode != string(engine.ModePlain) {
		t.Errorf("FetchMode = %q, want the mode of the last attempt", res.Raw.FetchMode)
	}
	if aug.calls != 0 || res.Raw.AI.Status != models.AIStatusSkipped {
		t.Errorf("AI must not run without a home page, status %q", res.Raw.AI.Status)
	}
}

func TestRun_BudgetSkipsPages(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := start

	f := storeFetcher()
	f.onFetch = func(url string) {
		if url == "https://shop.example/" {
			mu.Lock()
			now = now.Add(50 * time.Second) // past budget - reserve
			mu.Unlock()
		}
	}
	bench := &fakeBenchmarker{}
	r := NewRunner(Deps{
		Fetcher:     f,
		Discoverer:  fakeDiscoverer{urls: []string{"https://shop.example/products/a", "https://shop.example/products/b"}},
		Benchmarker: bench,
	}, testScanConfig())
	r.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	res, err := r.Run(context.Background(), models.ScanRequest{URL: "https://shop.example/", SkipAI: true}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Raw.Pages.SkippedBudget != 2 || res.Raw.Pages.Fetched != 1 {
		t.Errorf("Pages = %+v", res.Raw.Pages)
	}
	if len(f.calls) != 1 {
		t.Errorf("fetched %v after the cutoff", f.calls[1:])
	}
	if bench.calls != 0 {
		t.Error("competitor lookups must not start after the cutoff")
	}
	if res.Raw.Timing.TotalMs != 50_000 {
		t.Errorf("TotalMs = %d", res.Raw.Timing.TotalMs)
	}
}

func TestRun_GuardAborts(t *testing.T) {
	calls := 0
	guard := func(context.Context) error {
		calls++
		if calls > 2 {
			return errors.New("store deleted")
		}
		return nil
	}
	r := NewRunner(Deps{Fetcher: storeFetcher(), Discoverer: fakeDiscoverer{}}, testScanConfig())

	var log progressLog
	res, err := r.RunGuarded(context.Background(), models.ScanRequest{URL: "https://shop.example/"}, log.sink, guard)
	if res != nil {
		t.Error("fatal run must not return a result")
	}
	if !IsFatal(err) {
		t.Fatalf("err = %v, want pipeline fatal", err)
	}
	log.check(t, models.StepFailed)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(Deps{Fetcher: storeFetcher()}, testScanConfig())
	if _, err := r.Run(ctx, models.ScanRequest{URL: "https://shop.example/"}, nil); !IsFatal(err) {
		t.Errorf("err = %v, want pipeline fatal", err)
	}
}

func TestRun_CommerceProductsReplaceCrawl(t *testing.T) {
	price := 120.0
	r := NewRunner(Deps{
		Fetcher:    storeFetcher(),
		Discoverer: fakeDiscoverer{urls: []string{"https://shop.example/products/a"}},
	}, testScanConfig())
	req := models.ScanRequest{
		URL:    "https://shop.example/",
		SkipAI: true,
		CommerceAPIProducts: []models.CommerceProduct{
			{Title: "Sofa", Price: &price, ImageCount: 4, Description: "A deep three seat sofa."},
		},
	}
	res, err := r.Run(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Raw.ProductAnalyses) != 1 || res.Raw.ProductAnalyses[0].Title != "Sofa" {
		t.Errorf("ProductAnalyses = %+v", res.Raw.ProductAnalyses)
	}
	if ins := res.Raw.PriceInsights; ins.AvgPrice == nil || *ins.AvgPrice != 120 {
		t.Errorf("AvgPrice = %v", ins.AvgPrice)
	}
}

func TestRun_NearDuplicateProducts(t *testing.T) {
	body := "A breathable linen shirt woven in Portugal from European flax, garment dyed and pre washed for softness."
	f := &fakeFetcher{pages: map[string]string{
		"https://shop.example/":           homeHTML,
		"https://shop.example/products/a": productHTML("Linen shirt", body),
		"https://shop.example/products/b": productHTML("Linen shirt", body),
	}}
	r := NewRunner(Deps{
		Fetcher:    f,
		Discoverer: fakeDiscoverer{urls: []string{"https://shop.example/products/a", "https://shop.example/products/b"}},
	}, testScanConfig())
	res, err := r.Run(context.Background(), models.ScanRequest{URL: "https://shop.example/", SkipAI: true}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Raw.ProductAnalyses) != 1 {
		t.Errorf("ProductAnalyses = %d, want 1 for identical pages", len(res.Raw.ProductAnalyses))
	}
}

func TestRun_DowngradedCapsConfidence(t *testing.T) {
	f := storeFetcher()
	f.plain = map[string]bool{"https://shop.example/": true}
	r := NewRunner(Deps{
		Fetcher: f,
		Discoverer: fakeDiscoverer{urls: []string{
			"https://shop.example/products/a", "https://shop.example/products/b",
		}},
		Augmenter: okAugmenter(70, models.ConfidenceHigh),
	}, testScanConfig())
	res, err := r.Run(context.Background(), models.ScanRequest{URL: "https://shop.example/"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Raw.Downgraded || res.Raw.FetchMode != string(engine.ModePlain) {
		t.Errorf("downgraded = %v, mode = %s", res.Raw.Downgraded, res.Raw.FetchMode)
	}
	if res.Confidence != models.ConfidenceMedium {
		t.Errorf("Confidence = %q, want medium", res.Confidence)
	}
}

func TestRun_AIFailureKeepsBaseline(t *testing.T) {
	aug := &fakeAugmenter{outcome: func(in augment.Input) augment.Outcome {
		return augment.Outcome{
			Result:      in.Baseline,
			Diagnostics: models.AIDiagnostics{Enabled: true, Status: models.AIStatusFailed, ErrorCode: models.ErrCodeLLMTimeout},
		}
	}}
	r := NewRunner(Deps{Fetcher: storeFetcher(), Augmenter: aug}, testScanConfig())
	res, err := r.Run(context.Background(), models.ScanRequest{URL: "https://shop.example/"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Confidence != models.ConfidenceLow || res.Raw.AI.ErrorCode != models.ErrCodeLLMTimeout {
		t.Errorf("confidence = %s, ai = %+v", res.Confidence, res.Raw.AI)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name       string
		ok         bool
		ai         string
		downgraded bool
		pages      int
		want       string
	}{
		{"ai failed", false, "high", false, 10, models.ConfidenceLow},
		{"ai ok default", true, "", false, 10, models.ConfidenceHigh},
		{"ai says low", true, "low", false, 10, models.ConfidenceLow},
		{"thin run", true, "high", false, 2, models.ConfidenceMedium},
		{"downgraded", true, "high", true, 10, models.ConfidenceMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := confidence(tt.ok, tt.ai, tt.downgraded, tt.pages); got != tt.want {
				t.Errorf("confidence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReporter(t *testing.T) {
	var log progressLog
	rep := newReporter(log.sink)
	rep.report(30, models.StepExtract, "a")
	rep.report(20, models.StepExtract, "b")
	rep.report(120, models.StepScore, "c")
	rep.report(40, models.StepDone, "d")
	rep.report(50, models.StepAISummary, "late")

	got := []int{}
	for _, ev := range log.events {
		got = append(got, ev.Percent)
	}
	want := []int{30, 30, 99, 100}
	if len(got) != len(want) {
		t.Fatalf("percents = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("percents = %v, want %v", got, want)
		}
	}
}

func TestRun_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := storeFetcher()
	f.onFetch = func(string) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
	}

	var urls []string
	for i := range 8 {
		urls = append(urls, fmt.Sprintf("https://shop.example/pages/p%d", i))
	}
	cfg := testScanConfig()
	cfg.Concurrency = 2
	r := NewRunner(Deps{Fetcher: f, Discoverer: fakeDiscoverer{urls: urls}}, cfg)
	if _, err := r.Run(context.Background(), models.ScanRequest{URL: "https://shop.example/", SkipAI: true}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := peak.Load(); got > 2 {
		t.Errorf("peak in-flight fetches = %d, want <= 2", got)
	}
}

func TestRun_StoreEndToEnd(t *testing.T) {
	var srvURL string
	product := func(name, desc, price string) string {
		return `<html><head><title>` + name + `</title></head><body><h1>` + name + `</h1>
<p>` + desc + `</p><p class="price">` + price + `</p><button>Add to cart</button>
<img src="/a.jpg" alt="front"><img src="/b.jpg" alt="back"><img src="/c.jpg" alt="detail"></body></html>`
	}
	pages := map[string]string{
		"/": `<html lang="en"><head><title>Acme Goods</title>
<meta name="viewport" content="width=device-width, initial-scale=1"></head>
<body><h1>Acme Goods</h1><button>Add to cart</button>
<a href="/products/linen-shirt">Linen shirt</a></body></html>`,
		"/products/linen-shirt": product("Linen shirt", "Breathable flax shirt woven in Portugal, garment dyed for a soft hand.", "$45.00"),
		"/products/wool-scarf":  product("Wool scarf", "Heavy merino scarf knitted in Scotland, warm enough for winter coastal walks.", "$60.00"),
		"/products/clay-mug":    product("Clay mug", "Hand thrown stoneware mug glazed in speckled oat, holds twelve ounces of coffee.", "$24.00"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprintf(w, `<?xml version="1.0"?><urlset>
<url><loc>%[1]s/products/linen-shirt</loc></url>
<url><loc>%[1]s/products/wool-scarf</loc></url>
<url><loc>%[1]s/products/clay-mug</loc></url></urlset>`, srvURL)
			return
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	defer srv.Close()
	srvURL = srv.URL

	plain := engine.NewHTTPEngine(engine.HTTPOptions{AllowPrivateNetworks: true})
	fetcher := engine.NewFetcher(nil, plain, engine.FetcherOptions{PlainTimeout: 5 * time.Second})
	dcfg := config.DiscoveryConfig{KeyPathCap: 8, SitemapCap: 6, MaxSubSitemaps: 3, DeepCrawlPages: 3, DeepCrawlCap: 6, SitemapTimeout: 5 * time.Second}
	r := NewRunner(Deps{
		Fetcher:    fetcher,
		Discoverer: discovery.New(plain, fetcher, dcfg, 3),
	}, testScanConfig())

	res, err := r.Run(context.Background(), models.ScanRequest{URL: srv.URL + "/", FetchMode: models.FetchModePlain, SkipAI: true}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.PagesScanned) < 4 {
		t.Errorf("PagesScanned = %v, want >= 4", res.PagesScanned)
	}
	if len(res.Raw.ProductAnalyses) < 3 {
		t.Errorf("ProductAnalyses = %d, want >= 3", len(res.Raw.ProductAnalyses))
	}
	if res.Breakdown.Funnel < 60 {
		t.Errorf("Funnel = %d, want CTA and product links reflected", res.Breakdown.Funnel)
	}
	if res.Confidence != models.ConfidenceLow || res.Raw.AI.Status != models.AIStatusSkipped {
		t.Errorf("baseline-only run: confidence %s, ai %s", res.Confidence, res.Raw.AI.Status)
	}
}
