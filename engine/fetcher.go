package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/fyxxlabs/sitescan/metrics"
)

// Fetcher is the single page-fetching capability used by the scan pipeline.
// It picks the rendered or plain engine from the preferred Mode and downgrades
// a failed rendered attempt to exactly one plain attempt.
type Fetcher struct {
	rendered        Engine // nil: plain only
	plain           Engine
	memory          *DomainMemory
	renderedTimeout time.Duration
	plainTimeout    time.Duration
}

// FetcherOptions configures NewFetcher.
type FetcherOptions struct {
	RenderedTimeout time.Duration
	PlainTimeout    time.Duration
	Memory          *DomainMemory
}

// NewFetcher creates a Fetcher. rendered may be nil when no browser is available.
func NewFetcher(rendered, plain Engine, opts FetcherOptions) *Fetcher {
	if opts.RenderedTimeout <= 0 {
		opts.RenderedTimeout = 25 * time.Second
	}
	if opts.PlainTimeout <= 0 {
		opts.PlainTimeout = 12 * time.Second
	}
	return &Fetcher{
		rendered:        rendered,
		plain:           plain,
		memory:          opts.Memory,
		renderedTimeout: opts.RenderedTimeout,
		plainTimeout:    opts.PlainTimeout,
	}
}

// CanRender reports whether rendered mode is available at all.
func (f *Fetcher) CanRender() bool { return f.rendered != nil }

// Fetch retrieves url and returns the mode that actually produced the HTML.
// When preferred is rendered and the render fails or times out, one plain
// attempt follows and modeUsed is plain. There are no other retries.
func (f *Fetcher) Fetch(ctx context.Context, url string, preferred Mode) (*FetchResult, Mode, error) {
	if preferred == ModeRendered && f.rendered != nil && !f.renderSkipped(url) {
		res, err := f.attempt(ctx, f.rendered, url, f.renderedTimeout)
		if err == nil {
			metrics.FetchesTotal.WithLabelValues(string(ModeRendered), "ok").Inc()
			return res, ModeRendered, nil
		}
		metrics.FetchesTotal.WithLabelValues(string(ModeRendered), "error").Inc()
		if ctx.Err() != nil {
			return nil, ModeRendered, err
		}
		slog.Info("rendered fetch failed, downgrading to plain", "url", url, "error", err)
		if f.memory != nil {
			f.memory.MarkRenderFailed(url)
		}
	}

	res, err := f.attempt(ctx, f.plain, url, f.plainTimeout)
	if err != nil {
		metrics.FetchesTotal.WithLabelValues(string(ModePlain), "error").Inc()
		return nil, ModePlain, err
	}
	metrics.FetchesTotal.WithLabelValues(string(ModePlain), "ok").Inc()
	return res, ModePlain, nil
}

func (f *Fetcher) renderSkipped(url string) bool {
	return f.memory != nil && f.memory.RenderDisabled(url)
}

func (f *Fetcher) attempt(ctx context.Context, e Engine, url string, timeout time.Duration) (*FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.Fetch(ctx, &FetchRequest{URL: url, Timeout: timeout})
}
