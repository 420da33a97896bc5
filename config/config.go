package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Scan      ScanConfig      `yaml:"scan"`
	AI        AIConfig        `yaml:"ai"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance used for rendered fetches.
type BrowserConfig struct {
	// Enabled toggles the headless browser. When false every fetch is plain.
	Enabled bool `yaml:"enabled"` // default: true

	Headless bool `yaml:"headless"` // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int `yaml:"max_pages"` // default: 5

	DefaultProxy string `yaml:"proxy"`

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"`

	BrowserBin string `yaml:"bin"`

	// Stealth injects the go-rod/stealth evasions into every page.
	Stealth bool `yaml:"stealth"` // default: true

	// BlockedResourceTypes lists resource types the renderer never downloads.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string `yaml:"blocked_resource_types"`
}

// FetchConfig controls the page fetcher.
type FetchConfig struct {
	// RenderedTimeout bounds one rendered attempt, settle delay included.
	RenderedTimeout time.Duration `yaml:"rendered_timeout"` // default: 25s

	// SettleDelay is the fixed wait after DOM-ready before the HTML snapshot.
	SettleDelay time.Duration `yaml:"settle_delay"` // default: 1.5s

	PlainTimeout time.Duration `yaml:"plain_timeout"` // default: 12s

	// MaxBodyBytes caps how much of a plain response body is read.
	MaxBodyBytes int64 `yaml:"max_body_bytes"` // default: 5 MiB

	// AllowPrivateNetworks disables the SSRF guard (tests, internal stores).
	AllowPrivateNetworks bool `yaml:"allow_private_networks"`

	// DomainMemoryTTL is how long a host that failed rendering is fetched plain.
	DomainMemoryTTL time.Duration `yaml:"domain_memory_ttl"` // default: 30m

	UserAgent string `yaml:"user_agent"`
}

// DiscoveryConfig controls link discovery caps.
type DiscoveryConfig struct {
	KeyPathCap     int           `yaml:"key_path_cap"`     // default: 8
	SitemapCap     int           `yaml:"sitemap_cap"`      // default: 6
	MaxSubSitemaps int           `yaml:"max_sub_sitemaps"` // default: 3
	DeepCrawlPages int           `yaml:"deep_crawl_pages"` // default: 3
	DeepCrawlCap   int           `yaml:"deep_crawl_cap"`   // default: 6
	SitemapTimeout time.Duration `yaml:"sitemap_timeout"`  // default: 10s
}

// ScanConfig controls the orchestrator.
type ScanConfig struct {
	// Budget is the wall-clock budget of one scan.
	Budget time.Duration `yaml:"budget"` // default: 60s

	// AIReserve is the tail of the budget during which no new page fetch starts.
	AIReserve time.Duration `yaml:"ai_reserve"` // default: 15s

	// Concurrency bounds in-flight page fetches during EXTRACT.
	Concurrency int `yaml:"concurrency"` // default: 5

	// PageBudget is the maximum number of non-home pages extracted.
	PageBudget int `yaml:"page_budget"` // default: 10

	// HeavyScriptThreshold is the script count above which a page is "heavy".
	HeavyScriptThreshold int `yaml:"heavy_script_threshold"` // default: 40

	// TextSampleChars truncates PageSignals.TextSample.
	TextSampleChars int `yaml:"text_sample_chars"` // default: 1500

	// JobTTL is how long finished jobs stay queryable through the API.
	JobTTL time.Duration `yaml:"job_ttl"` // default: 1h
}

// AIConfig controls the LLM augmentation step.
type AIConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`    // default: "gpt-4o-mini"
	BaseURL string        `yaml:"base_url"` // default: "https://api.openai.com/v1"
	Timeout time.Duration `yaml:"timeout"`  // default: 14s

	// MaxPromptTokens caps the estimated size of the user message.
	MaxPromptTokens int `yaml:"max_prompt_tokens"` // default: 6000
}

// Enabled reports whether an API key is configured.
func (c AIConfig) Enabled() bool { return c.APIKey != "" }

// PricingConfig controls competitor price lookups.
type PricingConfig struct {
	Enabled bool `yaml:"enabled"` // default: true

	// SearchURL is a query-prefix; the product title is appended URL-escaped.
	SearchURL string `yaml:"search_url"`

	RequestsPerSecond float64       `yaml:"rps"`            // default: 1
	MaxLookups        int           `yaml:"max_lookups"`    // default: 3
	LookupTimeout     time.Duration `yaml:"lookup_timeout"` // default: 5s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool     `yaml:"enabled"` // default: true
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"rps"`   // default: 2
	Burst             int     `yaml:"burst"` // default: 5
}

// CacheConfig controls the scan result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"` // default: 500
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"

	// File, when set, tees log output into a rotated file.
	File string `yaml:"file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Browser: BrowserConfig{
			Enabled:              true,
			Headless:             true,
			MaxPages:             5,
			Stealth:              true,
			BlockedResourceTypes: []string{"Image", "Font", "Media"},
		},
		Fetch: FetchConfig{
			RenderedTimeout: 25 * time.Second,
			SettleDelay:     1500 * time.Millisecond,
			PlainTimeout:    12 * time.Second,
			MaxBodyBytes:    5 << 20,
			DomainMemoryTTL: 30 * time.Minute,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
		},
		Discovery: DiscoveryConfig{
			KeyPathCap:     8,
			SitemapCap:     6,
			MaxSubSitemaps: 3,
			DeepCrawlPages: 3,
			DeepCrawlCap:   6,
			SitemapTimeout: 10 * time.Second,
		},
		Scan: ScanConfig{
			Budget:               60 * time.Second,
			AIReserve:            15 * time.Second,
			Concurrency:          5,
			PageBudget:           10,
			HeavyScriptThreshold: 40,
			TextSampleChars:      1500,
			JobTTL:               time.Hour,
		},
		AI: AIConfig{
			Model:           "gpt-4o-mini",
			BaseURL:         "https://api.openai.com/v1",
			Timeout:         14 * time.Second,
			MaxPromptTokens: 6000,
		},
		Pricing: PricingConfig{
			Enabled:           true,
			SearchURL:         "https://html.duckduckgo.com/html/?q=",
			RequestsPerSecond: 1,
			MaxLookups:        3,
			LookupTimeout:     5 * time.Second,
		},
		Auth:      AuthConfig{Enabled: true},
		RateLimit: RateLimitConfig{RequestsPerSecond: 2, Burst: 5},
		Cache:     CacheConfig{MaxEntries: 500},
		Log:       LogConfig{Level: "info", Format: "json"},
		Metrics:   MetricsConfig{Enabled: true},
	}
}

// Load builds the configuration in three layers: built-in defaults, the
// optional YAML file named by SITESCAN_CONFIG, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("SITESCAN_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = envOr("SITESCAN_HOST", cfg.Server.Host)
	cfg.Server.Port = envIntOr("SITESCAN_PORT", cfg.Server.Port)
	cfg.Server.Mode = envOr("SITESCAN_MODE", cfg.Server.Mode)

	cfg.Browser.Enabled = envBoolOr("SITESCAN_BROWSER", cfg.Browser.Enabled)
	cfg.Browser.Headless = envBoolOr("SITESCAN_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.MaxPages = envIntOr("SITESCAN_MAX_PAGES", cfg.Browser.MaxPages)
	cfg.Browser.DefaultProxy = envOr("SITESCAN_PROXY", cfg.Browser.DefaultProxy)
	cfg.Browser.NoSandbox = envBoolOr("SITESCAN_NO_SANDBOX", cfg.Browser.NoSandbox)
	cfg.Browser.BrowserBin = envOr("SITESCAN_BROWSER_BIN", cfg.Browser.BrowserBin)
	cfg.Browser.Stealth = envBoolOr("SITESCAN_STEALTH", cfg.Browser.Stealth)
	cfg.Browser.BlockedResourceTypes = envSliceOr("SITESCAN_BLOCKED_RESOURCES", cfg.Browser.BlockedResourceTypes)

	cfg.Fetch.RenderedTimeout = envDurationOr("SITESCAN_RENDERED_TIMEOUT", cfg.Fetch.RenderedTimeout)
	cfg.Fetch.SettleDelay = envDurationOr("SITESCAN_SETTLE_DELAY", cfg.Fetch.SettleDelay)
	cfg.Fetch.PlainTimeout = envDurationOr("SITESCAN_PLAIN_TIMEOUT", cfg.Fetch.PlainTimeout)
	cfg.Fetch.AllowPrivateNetworks = envBoolOr("SITESCAN_ALLOW_PRIVATE", cfg.Fetch.AllowPrivateNetworks)
	cfg.Fetch.DomainMemoryTTL = envDurationOr("SITESCAN_DOMAIN_MEMORY_TTL", cfg.Fetch.DomainMemoryTTL)
	cfg.Fetch.UserAgent = envOr("SITESCAN_USER_AGENT", cfg.Fetch.UserAgent)

	cfg.Discovery.KeyPathCap = envIntOr("SITESCAN_KEY_PATH_CAP", cfg.Discovery.KeyPathCap)
	cfg.Discovery.SitemapCap = envIntOr("SITESCAN_SITEMAP_CAP", cfg.Discovery.SitemapCap)
	cfg.Discovery.MaxSubSitemaps = envIntOr("SITESCAN_MAX_SUB_SITEMAPS", cfg.Discovery.MaxSubSitemaps)
	cfg.Discovery.DeepCrawlPages = envIntOr("SITESCAN_DEEP_CRAWL_PAGES", cfg.Discovery.DeepCrawlPages)
	cfg.Discovery.DeepCrawlCap = envIntOr("SITESCAN_DEEP_CRAWL_CAP", cfg.Discovery.DeepCrawlCap)

	cfg.Scan.Budget = envDurationOr("SITESCAN_BUDGET", cfg.Scan.Budget)
	cfg.Scan.AIReserve = envDurationOr("SITESCAN_AI_RESERVE", cfg.Scan.AIReserve)
	cfg.Scan.Concurrency = envIntOr("SITESCAN_CONCURRENCY", cfg.Scan.Concurrency)
	cfg.Scan.PageBudget = envIntOr("SITESCAN_PAGE_BUDGET", cfg.Scan.PageBudget)
	cfg.Scan.JobTTL = envDurationOr("SITESCAN_JOB_TTL", cfg.Scan.JobTTL)

	cfg.AI.APIKey = envOr("SITESCAN_AI_API_KEY", envOr("OPENAI_API_KEY", cfg.AI.APIKey))
	cfg.AI.Model = envOr("SITESCAN_AI_MODEL", cfg.AI.Model)
	cfg.AI.BaseURL = envOr("SITESCAN_AI_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.Timeout = envDurationOr("SITESCAN_AI_TIMEOUT", cfg.AI.Timeout)

	cfg.Pricing.Enabled = envBoolOr("SITESCAN_PRICING", cfg.Pricing.Enabled)
	cfg.Pricing.SearchURL = envOr("SITESCAN_PRICING_SEARCH_URL", cfg.Pricing.SearchURL)
	cfg.Pricing.RequestsPerSecond = envFloatOr("SITESCAN_PRICING_RPS", cfg.Pricing.RequestsPerSecond)

	cfg.Auth.Enabled = envBoolOr("SITESCAN_AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.APIKeys = envSliceOr("SITESCAN_API_KEYS", cfg.Auth.APIKeys)

	cfg.RateLimit.RequestsPerSecond = envFloatOr("SITESCAN_RATE_RPS", cfg.RateLimit.RequestsPerSecond)
	cfg.RateLimit.Burst = envIntOr("SITESCAN_RATE_BURST", cfg.RateLimit.Burst)

	cfg.Cache.MaxEntries = envIntOr("SITESCAN_CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)

	cfg.Log.Level = envOr("SITESCAN_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("SITESCAN_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = envOr("SITESCAN_LOG_FILE", cfg.Log.File)

	cfg.Metrics.Enabled = envBoolOr("SITESCAN_METRICS", cfg.Metrics.Enabled)
}

// Validate rejects configurations the scan pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Scan.Budget <= 0 {
		errs = append(errs, errors.New("scan.budget must be positive"))
	}
	if c.Scan.AIReserve < 0 || c.Scan.AIReserve >= c.Scan.Budget {
		errs = append(errs, errors.New("scan.ai_reserve must be in [0, scan.budget)"))
	}
	if c.Scan.Concurrency < 1 {
		errs = append(errs, errors.New("scan.concurrency must be at least 1"))
	}
	if c.Scan.PageBudget < 0 {
		errs = append(errs, errors.New("scan.page_budget must not be negative"))
	}
	if c.Fetch.PlainTimeout <= 0 || c.Fetch.RenderedTimeout <= 0 {
		errs = append(errs, errors.New("fetch timeouts must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
