package pricing

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fyxxlabs/sitescan/config"
	"github.com/fyxxlabs/sitescan/metrics"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// Getter fetches a raw document. engine.HTTPEngine satisfies it.
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Benchmarker estimates a competitor average price from external search
// lookups. It is safe for concurrent use.
type Benchmarker struct {
	getter     Getter
	limiter    *rate.Limiter
	searchURL  string
	maxLookups int
	timeout    time.Duration
}

// NewBenchmarker returns nil when lookups are disabled; a nil Benchmarker's
// Benchmark always returns no estimate.
func NewBenchmarker(getter Getter, cfg config.PricingConfig) *Benchmarker {
	if !cfg.Enabled || getter == nil || cfg.SearchURL == "" {
		return nil
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	maxLookups := cfg.MaxLookups
	if maxLookups <= 0 || maxLookups > 3 {
		maxLookups = 3
	}
	return &Benchmarker{
		getter:     getter,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		searchURL:  cfg.SearchURL,
		maxLookups: maxLookups,
		timeout:    cfg.LookupTimeout,
	}
}

// Benchmark looks up to three product titles and averages the plausible
// prices found, discarding anything outside [0.1x, 5x] of ownAvg.
// It returns (nil, 0) when nothing usable was found; lookup failures are
// logged and swallowed.
func (b *Benchmarker) Benchmark(ctx context.Context, titles []string, ownAvg *float64) (*float64, int) {
	if b == nil || ownAvg == nil || *ownAvg <= 0 {
		return nil, 0
	}
	titles = lo.Uniq(lo.Filter(lo.Map(titles, func(t string, _ int) string {
		return strings.TrimSpace(t)
	}), func(t string, _ int) bool { return t != "" }))
	if len(titles) == 0 {
		return nil, 0
	}
	if len(titles) > b.maxLookups {
		titles = titles[:b.maxLookups]
	}

	var samples []float64
	for _, title := range titles {
		if err := b.limiter.Wait(ctx); err != nil {
			break
		}
		prices, err := b.lookup(ctx, title)
		if err != nil {
			slog.Debug("competitor lookup failed", "title", title, "error", err)
			metrics.CompetitorLookups.WithLabelValues("error").Inc()
			continue
		}
		if len(prices) == 0 {
			metrics.CompetitorLookups.WithLabelValues("empty").Inc()
			continue
		}
		metrics.CompetitorLookups.WithLabelValues("ok").Inc()
		samples = append(samples, prices...)
	}

	samples = FilterPlausible(samples, *ownAvg)
	if len(samples) == 0 {
		return nil, 0
	}
	return Average(samples), len(samples)
}

func (b *Benchmarker) lookup(ctx context.Context, title string) ([]float64, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	body, err := b.getter.Get(ctx, b.searchURL+url.QueryEscape(title))
	if err != nil {
		return nil, err
	}
	return ExtractPrices(documentText(body)), nil
}

// FilterPlausible keeps values within [0.1x, 5x] of ownAvg.
func FilterPlausible(values []float64, ownAvg float64) []float64 {
	lower, upper := ownAvg*0.1, ownAvg*5
	return lo.Filter(values, func(v float64, _ int) bool {
		return v >= lower && v <= upper
	})
}

// documentText returns the visible text of an HTML response, or the raw
// body when it does not parse.
func documentText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text()
}
