package engine

import (
	"context"
	"time"
)

// Mode selects a fetch strategy.
type Mode string

const (
	// ModeRendered loads the page in a headless browser.
	ModeRendered Mode = "rendered"
	// ModePlain issues a single HTTP GET.
	ModePlain Mode = "plain"
)

// ParseMode maps a request string to a Mode, defaulting to rendered.
func ParseMode(s string) Mode {
	if Mode(s) == ModePlain {
		return ModePlain
	}
	return ModeRendered
}

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http" or "rod").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Timeout time.Duration
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML        string
	Title       string
	StatusCode  int
	FinalURL    string
	ContentType string
	EngineName  string
}
