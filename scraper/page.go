package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fyxxlabs/sitescan/engine"
	"github.com/fyxxlabs/sitescan/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// Render loads req.URL in a pooled tab and returns the DOM snapshot taken a
// fixed settle delay after the load event. It matches engine.RenderFunc.
//
// Order matters: stealth and the hijack router must be installed before
// Navigate, because they only apply to navigations started afterwards.
func (s *Scraper) Render(ctx context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, err := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewScanError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}

	healthy := true
	defer func() {
		s.release(page, healthy)
	}()

	if s.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: proto.NetworkHeaders{"Accept-Language": gson.New("en-US,en;q=0.9")},
	}.Call(page)

	if router := setupHijack(page, s.browserCfg.BlockedResourceTypes); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	if err := p.Navigate(req.URL); err != nil {
		healthy = ctx.Err() == nil
		return nil, categorizeError(err, "navigation to target URL failed")
	}
	if err := p.WaitLoad(); err != nil {
		return nil, categorizeError(err, "page did not reach load state")
	}

	// Fixed settle delay so late client-side rendering can finish.
	if s.settleDelay > 0 {
		select {
		case <-time.After(s.settleDelay):
		case <-ctx.Done():
			return nil, categorizeError(ctx.Err(), "settle delay interrupted")
		}
	}

	statusCode := 0
	if res, evalErr := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); evalErr == nil {
		statusCode = res.Value.Int()
	}

	rawHTML, err := p.HTML()
	if err != nil {
		healthy = false
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &engine.FetchResult{
		HTML:        rawHTML,
		Title:       evalStringOrEmpty(p, `() => document.title`),
		StatusCode:  statusCode,
		FinalURL:    finalURL,
		ContentType: "text/html",
	}, nil
}

// release returns a tab to the pool. Tabs that errored in a way that may
// leave them wedged are closed and their pool slot handed back empty so the
// next Get creates a fresh one.
func (s *Scraper) release(page *rod.Page, healthy bool) {
	if healthy {
		if err := page.Navigate("about:blank"); err == nil {
			s.pagePool.Put(page)
			return
		}
	}
	s.retired.Add(1)
	_ = page.Close()
	s.pagePool.Put(nil)
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// categorizeError wraps raw rod errors into typed ScanErrors.
func categorizeError(err error, msg string) *models.ScanError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScanError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScanError(models.ErrCodeTimeout, "render canceled", err)
	default:
		return models.NewScanError(models.ErrCodeNavigation, msg, err)
	}
}
