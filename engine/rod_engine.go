package engine

import (
	"context"
	"fmt"
)

// RenderFunc is the callback that renders a page in the headless browser.
// It is injected from main to avoid an import cycle (engine/ -> scraper/).
type RenderFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is the rendered-mode engine.
type RodEngine struct {
	render RenderFunc
}

// NewRodEngine creates a RodEngine around the scraper's render callback.
func NewRodEngine(render RenderFunc) *RodEngine {
	return &RodEngine{render: render}
}

func (e *RodEngine) Name() string { return "rod" }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.render == nil {
		return nil, fmt.Errorf("rod: render func not configured")
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	result, err := e.render(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rod: %w", err)
	}
	result.EngineName = e.Name()
	return result, nil
}
