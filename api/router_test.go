package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fyxxlabs/sitescan/config"
	"github.com/fyxxlabs/sitescan/jobs"
	"github.com/fyxxlabs/sitescan/models"
	"github.com/fyxxlabs/sitescan/scan"
)

type stubRunner struct {
	release chan struct{}
}

func (s stubRunner) RunGuarded(ctx context.Context, req models.ScanRequest, sink models.ProgressSink, _ scan.Guard) (*models.ScanResult, error) {
	if s.release != nil {
		<-s.release
	}
	sink(models.Progress{Percent: 100, Step: models.StepDone})
	return &models.ScanResult{
		BaselineResult: models.BaselineResult{
			Score: 66,
			Issues: []models.Issue{
				{ID: "a", Title: "A", Impact: "high"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}, {ID: "d", Title: "D"},
			},
			Checklist: []models.ChecklistItem{{Label: "1"}, {Label: "2"}, {Label: "3"}, {Label: "4"}},
		},
		Confidence:   models.ConfidenceLow,
		PagesScanned: []string{req.URL},
	}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Mode = "test"
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []string{"key-1"}
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100}
	return cfg
}

func newTestServer(t *testing.T, runner jobs.Runner, cfg *config.Config) (*httptest.Server, *jobs.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m := jobs.NewManager(runner, jobs.Options{})
	srv := httptest.NewServer(NewRouter(ctx, cfg, m, nil, time.Now()))
	t.Cleanup(srv.Close)
	return srv, m
}

func do(t *testing.T, method, url, body string, out any) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "key-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp
}

func TestScanLifecycle(t *testing.T) {
	srv, m := newTestServer(t, stubRunner{}, testConfig())

	var accepted models.ScanAcceptedResponse
	resp := do(t, http.MethodPost, srv.URL+"/api/v1/scans", `{"url":"https://shop.example/"}`, &accepted)
	if resp.StatusCode != http.StatusAccepted || !accepted.Success || accepted.ID == "" || accepted.CacheStatus != "miss" {
		t.Fatalf("POST = %d %+v", resp.StatusCode, accepted)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.Wait(ctx, accepted.ID); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	var status models.ScanStatusResponse
	do(t, http.MethodGet, srv.URL+"/api/v1/scans/"+accepted.ID, "", &status)
	if status.Status != models.JobSucceeded || status.Progress.Percent != 100 {
		t.Errorf("status = %+v", status)
	}

	var result models.ScanResultResponse
	do(t, http.MethodGet, srv.URL+"/api/v1/scans/"+accepted.ID+"/result", "", &result)
	if result.Result == nil || result.Result.Score != 66 || len(result.Result.Issues) != 4 {
		t.Errorf("result = %+v", result.Result)
	}

	var prev models.ScanPreviewResponse
	do(t, http.MethodGet, srv.URL+"/api/v1/scans/"+accepted.ID+"/preview", "", &prev)
	if prev.Preview == nil || len(prev.Preview.TopIssues) != 3 || len(prev.Preview.Checklist) != 3 {
		t.Errorf("preview = %+v", prev.Preview)
	}

	if resp := do(t, http.MethodDelete, srv.URL+"/api/v1/scans/"+accepted.ID, "", nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE = %d", resp.StatusCode)
	}
	var errResp models.ErrorResponse
	if resp := do(t, http.MethodGet, srv.URL+"/api/v1/scans/"+accepted.ID, "", &errResp); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after delete = %d", resp.StatusCode)
	}
	if errResp.Error == nil || errResp.Error.Code != models.ErrCodeNotFound {
		t.Errorf("error = %+v", errResp.Error)
	}
}

func TestResultNotReady(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv, _ := newTestServer(t, stubRunner{release: release}, testConfig())

	var accepted models.ScanAcceptedResponse
	do(t, http.MethodPost, srv.URL+"/api/v1/scans", `{"url":"https://shop.example/"}`, &accepted)

	resp := do(t, http.MethodGet, srv.URL+"/api/v1/scans/"+accepted.ID+"/result", "", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestPostScan_Invalid(t *testing.T) {
	srv, _ := newTestServer(t, stubRunner{}, testConfig())
	for name, body := range map[string]string{
		"missing url": `{}`,
		"bad scheme":  `{"url":"ftp://shop.example/"}`,
		"bad mode":    `{"url":"https://shop.example/","fetch_mode":"turbo"}`,
		"not json":    `nope`,
	} {
		t.Run(name, func(t *testing.T) {
			var errResp models.ErrorResponse
			resp := do(t, http.MethodPost, srv.URL+"/api/v1/scans", body, &errResp)
			if resp.StatusCode != http.StatusBadRequest || errResp.Error.Code != models.ErrCodeInvalidInput {
				t.Errorf("got %d %+v", resp.StatusCode, errResp.Error)
			}
		})
	}
}

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(t, stubRunner{}, testConfig())

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"bearer", map[string]string{"Authorization": "Bearer key-1"}, http.StatusNotFound},
		{"header", map[string]string{"X-API-Key": "key-1"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/scans/unknown", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}
	srv, _ := newTestServer(t, stubRunner{}, cfg)

	var last *http.Response
	for range 3 {
		last = do(t, http.MethodGet, srv.URL+"/api/v1/scans/unknown", "", nil)
	}
	if last.StatusCode != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", last.StatusCode)
	}
	if last.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, stubRunner{}, testConfig())

	var health models.HealthResponse
	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	_ = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || health.Status != "healthy" || resp.Header.Get("X-Request-ID") == "" {
		t.Errorf("health = %d %+v", resp.StatusCode, health)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics = %d", resp.StatusCode)
	}
}
