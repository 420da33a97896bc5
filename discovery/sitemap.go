package discovery

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"

	"github.com/fyxxlabs/sitescan/models"
	"github.com/fyxxlabs/sitescan/signals"
)

// maxSitemapDepth bounds index -> sub-sitemap recursion.
const maxSitemapDepth = 2

var cdataReplacer = strings.NewReplacer("<![CDATA[", "", "]]>", "")

// Sitemap returns candidate page URLs declared by the site's sitemap,
// product pages first, capped at the configured SitemapCap. When
// /sitemap.xml is missing, Sitemap: lines from /robots.txt are tried.
// Failures contribute zero URLs.
func (d *Discoverer) Sitemap(ctx context.Context, homeURL string) []string {
	base, err := url.Parse(homeURL)
	if err != nil {
		return nil
	}
	origin := base.Scheme + "://" + base.Host

	budget := d.cfg.MaxSubSitemaps
	pages, ok := d.walkSitemap(ctx, base, origin+"/sitemap.xml", 0, &budget)
	if !ok {
		for _, sm := range d.robotsSitemaps(ctx, origin) {
			pages, ok = d.walkSitemap(ctx, base, sm, 0, &budget)
			if ok {
				break
			}
		}
	}
	return capCandidates(pages, d.cfg.SitemapCap)
}

// walkSitemap fetches one sitemap document. Nested .xml entries are
// followed while subBudget lasts. ok is false when the document itself
// could not be fetched.
func (d *Discoverer) walkSitemap(ctx context.Context, base *url.URL, sitemapURL string, depth int, subBudget *int) (pages []string, ok bool) {
	body, err := d.get(ctx, sitemapURL)
	if err != nil {
		slog.Debug("sitemap fetch failed", "url", sitemapURL, "error", err)
		return nil, false
	}

	var nested []string
	for _, loc := range parseLocs(body) {
		u, err := url.Parse(loc)
		if err != nil || !sameHost(u.Hostname(), base.Hostname()) {
			continue
		}
		if isXML(u) {
			nested = append(nested, loc)
			continue
		}
		pages = append(pages, loc)
	}

	if depth >= maxSitemapDepth || len(nested) == 0 {
		return pages, true
	}

	// Product sitemaps first; they are what we are after.
	productFirst := append(
		lo.Filter(nested, func(s string, _ int) bool { return strings.Contains(strings.ToLower(s), "product") }),
		lo.Reject(nested, func(s string, _ int) bool { return strings.Contains(strings.ToLower(s), "product") })...,
	)
	for _, sub := range productFirst {
		if *subBudget <= 0 || ctx.Err() != nil {
			break
		}
		*subBudget--
		subPages, _ := d.walkSitemap(ctx, base, sub, depth+1, subBudget)
		pages = append(pages, subPages...)
	}
	return pages, true
}

// robotsSitemaps returns the Sitemap: URLs listed in /robots.txt.
func (d *Discoverer) robotsSitemaps(ctx context.Context, origin string) []string {
	body, err := d.get(ctx, origin+"/robots.txt")
	if err != nil {
		return nil
	}
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "sitemap") {
			continue
		}
		if v := strings.TrimSpace(value); v != "" {
			out = append(out, v)
		}
	}
	return lo.Uniq(out)
}

func (d *Discoverer) get(ctx context.Context, rawURL string) ([]byte, error) {
	if d.cfg.SitemapTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SitemapTimeout)
		defer cancel()
	}
	return d.getter.Get(ctx, rawURL)
}

// parseLocs extracts <loc> values from a sitemap or sitemap index.
func parseLocs(body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cdataReplacer.Replace(string(body))))
	if err != nil {
		return nil
	}
	var locs []string
	doc.Find("loc").Each(func(_ int, s *goquery.Selection) {
		if loc := strings.TrimSpace(s.Text()); loc != "" {
			locs = append(locs, loc)
		}
	})
	return locs
}

func isXML(u *url.URL) bool {
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, ".xml") || strings.HasSuffix(p, ".xml.gz")
}

// capCandidates keeps product URLs ahead of everything else, then truncates.
func capCandidates(pages []string, limit int) []string {
	pages = lo.Uniq(pages)
	isProduct := func(s string, _ int) bool { return signals.ClassifyPageType(s) == models.PageProduct }
	ordered := append(lo.Filter(pages, isProduct), lo.Reject(pages, isProduct)...)
	if limit > 0 && len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}
