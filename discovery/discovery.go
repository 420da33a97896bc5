// Package discovery finds the pages of a store worth scanning beyond its
// home page: key links on the home page, sitemap entries, and product links
// surfaced by crawling a few collection pages.
package discovery

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/fyxxlabs/sitescan/cleaner"
	"github.com/fyxxlabs/sitescan/config"
	"github.com/fyxxlabs/sitescan/engine"
	"github.com/fyxxlabs/sitescan/models"
	"github.com/fyxxlabs/sitescan/signals"
)

// keyPathRe is the path vocabulary of commercially relevant pages.
var keyPathRe = regexp.MustCompile(`(?i)product|collection|categor|catalog|shop|cart|basket|contact|about|shipping|delivery|returns|refund|livraison|panier`)

// Getter fetches raw documents (sitemaps, robots.txt).
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// PageFetcher fetches an HTML page. *engine.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, preferred engine.Mode) (*engine.FetchResult, engine.Mode, error)
}

// Discoverer finds candidate pages for one scan.
type Discoverer struct {
	getter      Getter
	fetcher     PageFetcher
	cfg         config.DiscoveryConfig
	concurrency int
}

// New creates a Discoverer. concurrency bounds the deep-crawl fan-out.
func New(getter Getter, fetcher PageFetcher, cfg config.DiscoveryConfig, concurrency int) *Discoverer {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Discoverer{getter: getter, fetcher: fetcher, cfg: cfg, concurrency: concurrency}
}

// Result is what Discover found, per technique and merged.
type Result struct {
	// URLs is the merged, de-duplicated list truncated to the page budget.
	URLs []string

	Sitemap   []string
	DeepCrawl []string
	KeyPaths  []string
	Other     []string
}

// Discover runs every technique against the fetched home page and merges
// the results. It never fails; a technique that errors contributes nothing.
func (d *Discoverer) Discover(ctx context.Context, homeURL, homeHTML string, budget int) Result {
	var res Result
	res.KeyPaths, res.Other = d.HomeLinks(homeURL, homeHTML)
	res.Sitemap = d.Sitemap(ctx, homeURL)

	var collections []string
	for _, u := range lo.Flatten([][]string{res.KeyPaths, res.Sitemap, res.Other}) {
		if signals.ClassifyPageType(u) == models.PageCollection {
			collections = append(collections, u)
		}
	}
	res.DeepCrawl = d.DeepCrawl(ctx, lo.Uniq(collections))

	res.URLs = Merge(homeURL, budget, res.Sitemap, res.DeepCrawl, res.KeyPaths, res.Other)
	return res
}

// HomeLinks splits the same-origin links of the home page into key paths
// (capped at KeyPathCap) and everything else.
func (d *Discoverer) HomeLinks(homeURL, homeHTML string) (keyPaths, other []string) {
	home := normalize(homeURL)
	for _, link := range cleaner.SameOriginLinks(homeHTML, homeURL) {
		u, err := url.Parse(link.Href)
		if err != nil || normalize(link.Href) == home {
			continue
		}
		if keyPathRe.MatchString(u.Path) && (d.cfg.KeyPathCap <= 0 || len(keyPaths) < d.cfg.KeyPathCap) {
			keyPaths = append(keyPaths, link.Href)
			continue
		}
		other = append(other, link.Href)
	}
	return keyPaths, other
}

// DeepCrawl fetches up to DeepCrawlPages collection pages in plain mode and
// returns the product links they expose, capped at DeepCrawlCap. Links keep
// collection order, then document order.
func (d *Discoverer) DeepCrawl(ctx context.Context, collections []string) []string {
	if d.fetcher == nil || d.cfg.DeepCrawlPages <= 0 || len(collections) == 0 {
		return nil
	}
	if len(collections) > d.cfg.DeepCrawlPages {
		collections = collections[:d.cfg.DeepCrawlPages]
	}

	found := make([][]string, len(collections))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, collectionURL := range collections {
		g.Go(func() error {
			res, _, err := d.fetcher.Fetch(gCtx, collectionURL, engine.ModePlain)
			if err != nil {
				slog.Debug("deep crawl fetch failed", "url", collectionURL, "error", err)
				return nil
			}
			for _, link := range cleaner.SameOriginLinks(res.HTML, collectionURL) {
				if signals.ClassifyPageType(link.Href) == models.PageProduct {
					found[i] = append(found[i], link.Href)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	out := lo.Uniq(lo.Flatten(found))
	if d.cfg.DeepCrawlCap > 0 && len(out) > d.cfg.DeepCrawlCap {
		out = out[:d.cfg.DeepCrawlCap]
	}
	return out
}

// Merge unions the URL sets in priority order, drops fragments, duplicates,
// XML documents and the home page itself, and truncates to budget.
func Merge(homeURL string, budget int, sets ...[]string) []string {
	home := normalize(homeURL)
	out := []string{}
	seen := map[string]struct{}{home: {}}
	for _, set := range sets {
		for _, raw := range set {
			n := normalize(raw)
			if n == "" {
				continue
			}
			if _, dup := seen[n]; dup {
				continue
			}
			if u, err := url.Parse(n); err != nil || isXML(u) {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
			if budget > 0 && len(out) == budget {
				return out
			}
		}
	}
	return out
}

// normalize drops the fragment and a trailing slash on non-root paths.
func normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

// sameHost treats "www." as insignificant.
func sameHost(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a == b
}
