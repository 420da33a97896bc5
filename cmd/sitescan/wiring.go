package main

import (
	"log/slog"
	"net/http"

	"github.com/fyxxlabs/sitescan/augment"
	"github.com/fyxxlabs/sitescan/cleaner"
	"github.com/fyxxlabs/sitescan/config"
	"github.com/fyxxlabs/sitescan/discovery"
	"github.com/fyxxlabs/sitescan/engine"
	"github.com/fyxxlabs/sitescan/llm"
	"github.com/fyxxlabs/sitescan/pricing"
	"github.com/fyxxlabs/sitescan/scan"
	"github.com/fyxxlabs/sitescan/scraper"
	"github.com/fyxxlabs/sitescan/signals"
)

// pipeline is every long-lived component a scan needs.
type pipeline struct {
	runner  *scan.Runner
	scraper *scraper.Scraper // nil when the browser is disabled or failed to launch
}

func (p *pipeline) Close() {
	if p.scraper != nil {
		p.scraper.Close()
	}
}

// buildPipeline wires the scan runner. A browser that fails to launch is
// not fatal: every fetch then runs plain.
func buildPipeline(cfg *config.Config) *pipeline {
	p := &pipeline{}

	plain := engine.NewHTTPEngine(engine.HTTPOptions{
		UserAgent:            cfg.Fetch.UserAgent,
		MaxBodyBytes:         cfg.Fetch.MaxBodyBytes,
		AllowPrivateNetworks: cfg.Fetch.AllowPrivateNetworks,
	})

	var rendered engine.Engine
	if cfg.Browser.Enabled {
		sc, err := scraper.NewScraper(cfg.Browser, cfg.Fetch)
		if err != nil {
			slog.Warn("browser unavailable, falling back to plain fetches", "error", err)
		} else {
			p.scraper = sc
			// The closure keeps engine/ free of a scraper/ import.
			rendered = engine.NewRodEngine(sc.Render)
		}
	}

	fetcher := engine.NewFetcher(rendered, plain, engine.FetcherOptions{
		RenderedTimeout: cfg.Fetch.RenderedTimeout,
		PlainTimeout:    cfg.Fetch.PlainTimeout,
		Memory:          engine.NewDomainMemory(cfg.Fetch.DomainMemoryTTL),
	})

	deps := scan.Deps{
		Fetcher:    fetcher,
		Discoverer: discovery.New(plain, fetcher, cfg.Discovery, cfg.Scan.Concurrency),
		Extractor:  signals.NewExtractor(cleaner.NewCleaner(), cfg.Scan.TextSampleChars),
	}
	if b := pricing.NewBenchmarker(plain, cfg.Pricing); b != nil {
		deps.Benchmarker = b
	}
	if a := augment.New(llm.NewClient(&http.Client{}), cfg.AI); a != nil {
		deps.Augmenter = a
	} else {
		slog.Info("AI summary disabled: no API key configured")
	}

	p.runner = scan.NewRunner(deps, cfg.Scan)
	return p
}
