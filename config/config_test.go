package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SITESCAN_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Scan.Budget != 60*time.Second {
		t.Errorf("Budget = %v, want 60s", cfg.Scan.Budget)
	}
	if cfg.Scan.AIReserve != 15*time.Second {
		t.Errorf("AIReserve = %v, want 15s", cfg.Scan.AIReserve)
	}
	if cfg.Scan.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Scan.Concurrency)
	}
	if cfg.Discovery.MaxSubSitemaps != 3 {
		t.Errorf("MaxSubSitemaps = %d, want 3", cfg.Discovery.MaxSubSitemaps)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitescan.yaml")
	content := `
scan:
  budget: 45s
  concurrency: 3
discovery:
  sitemap_cap: 12
log:
  format: text
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SITESCAN_CONFIG", path)
	t.Setenv("SITESCAN_CONCURRENCY", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Scan.Budget != 45*time.Second {
		t.Errorf("Budget = %v, want 45s from file", cfg.Scan.Budget)
	}
	if cfg.Scan.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want env override 2", cfg.Scan.Concurrency)
	}
	if cfg.Discovery.SitemapCap != 12 {
		t.Errorf("SitemapCap = %d, want 12", cfg.Discovery.SitemapCap)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}
	// Untouched keys keep their defaults.
	if cfg.Scan.AIReserve != 15*time.Second {
		t.Errorf("AIReserve = %v, want default 15s", cfg.Scan.AIReserve)
	}
}

func TestLoad_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("SITESCAN_CONFIG", "")
	t.Setenv("SITESCAN_PAGE_BUDGET", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Scan.PageBudget != 10 {
		t.Errorf("PageBudget = %d, want fallback 10", cfg.Scan.PageBudget)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"reserve exceeds budget", func(c *Config) { c.Scan.AIReserve = c.Scan.Budget }, true},
		{"zero concurrency", func(c *Config) { c.Scan.Concurrency = 0 }, true},
		{"negative page budget", func(c *Config) { c.Scan.PageBudget = -1 }, true},
		{"zero plain timeout", func(c *Config) { c.Fetch.PlainTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("SITESCAN_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
