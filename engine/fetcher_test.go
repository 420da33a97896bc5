package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeEngine struct {
	name  string
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{HTML: "<html>" + f.name + "</html>", StatusCode: 200, FinalURL: req.URL, EngineName: f.name}, nil
}

func TestFetcher_RenderedSuccess(t *testing.T) {
	rendered := &fakeEngine{name: "rod"}
	plain := &fakeEngine{name: "http"}
	f := NewFetcher(rendered, plain, FetcherOptions{})

	res, mode, err := f.Fetch(context.Background(), "https://shop.example/", ModeRendered)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if mode != ModeRendered {
		t.Errorf("mode = %s, want rendered", mode)
	}
	if res.EngineName != "rod" {
		t.Errorf("engine = %s, want rod", res.EngineName)
	}
	if plain.calls.Load() != 0 {
		t.Errorf("plain engine called %d times, want 0", plain.calls.Load())
	}
}

func TestFetcher_RenderedFailureFallsBackOnce(t *testing.T) {
	rendered := &fakeEngine{name: "rod", err: errors.New("navigation failed")}
	plain := &fakeEngine{name: "http"}
	f := NewFetcher(rendered, plain, FetcherOptions{})

	res, mode, err := f.Fetch(context.Background(), "https://shop.example/", ModeRendered)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if mode != ModePlain {
		t.Errorf("mode = %s, want plain", mode)
	}
	if res.EngineName != "http" {
		t.Errorf("engine = %s, want http", res.EngineName)
	}
	if rendered.calls.Load() != 1 || plain.calls.Load() != 1 {
		t.Errorf("calls rendered=%d plain=%d, want 1 and 1", rendered.calls.Load(), plain.calls.Load())
	}
}

func TestFetcher_RenderedTimeoutFallsBack(t *testing.T) {
	rendered := &fakeEngine{name: "rod", delay: time.Second}
	plain := &fakeEngine{name: "http"}
	f := NewFetcher(rendered, plain, FetcherOptions{RenderedTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, mode, err := f.Fetch(context.Background(), "https://shop.example/", ModeRendered)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if mode != ModePlain {
		t.Errorf("mode = %s, want plain", mode)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("render timeout not enforced, took %v", elapsed)
	}
}

func TestFetcher_BothFail(t *testing.T) {
	rendered := &fakeEngine{name: "rod", err: errors.New("crash")}
	plain := &fakeEngine{name: "http", err: errors.New("dns")}
	f := NewFetcher(rendered, plain, FetcherOptions{})

	_, mode, err := f.Fetch(context.Background(), "https://shop.example/", ModeRendered)
	if err == nil {
		t.Fatal("expected error")
	}
	if mode != ModePlain {
		t.Errorf("mode = %s, want plain", mode)
	}
	if plain.calls.Load() != 1 {
		t.Errorf("plain calls = %d, want exactly 1 (no retries)", plain.calls.Load())
	}
}

func TestFetcher_PlainPreferredSkipsRenderer(t *testing.T) {
	rendered := &fakeEngine{name: "rod"}
	plain := &fakeEngine{name: "http"}
	f := NewFetcher(rendered, plain, FetcherOptions{})

	_, mode, err := f.Fetch(context.Background(), "https://shop.example/", ModePlain)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if mode != ModePlain || rendered.calls.Load() != 0 {
		t.Errorf("mode=%s rendered calls=%d, want plain and 0", mode, rendered.calls.Load())
	}
}

func TestFetcher_NoRenderer(t *testing.T) {
	plain := &fakeEngine{name: "http"}
	f := NewFetcher(nil, plain, FetcherOptions{})

	if f.CanRender() {
		t.Error("CanRender() = true with nil renderer")
	}
	_, mode, err := f.Fetch(context.Background(), "https://shop.example/", ModeRendered)
	if err != nil || mode != ModePlain {
		t.Errorf("Fetch = (%s, %v), want (plain, nil)", mode, err)
	}
}

func TestFetcher_DomainMemorySkipsRenderAfterFailure(t *testing.T) {
	rendered := &fakeEngine{name: "rod", err: errors.New("blocked")}
	plain := &fakeEngine{name: "http"}
	f := NewFetcher(rendered, plain, FetcherOptions{Memory: NewDomainMemory(time.Minute)})

	for _, u := range []string{"https://shop.example/", "https://shop.example/products/a"} {
		if _, mode, err := f.Fetch(context.Background(), u, ModeRendered); err != nil || mode != ModePlain {
			t.Fatalf("Fetch(%s) = (%s, %v)", u, mode, err)
		}
	}
	if got := rendered.calls.Load(); got != 1 {
		t.Errorf("rendered calls = %d, want 1 (second page skips render)", got)
	}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":         ModeRendered,
		"rendered": ModeRendered,
		"plain":    ModePlain,
		"bogus":    ModeRendered,
	}
	for in, want := range tests {
		if got := ParseMode(in); got != want {
			t.Errorf("ParseMode(%q) = %s, want %s", in, got, want)
		}
	}
}
