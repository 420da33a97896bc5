package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fyxxlabs/sitescan/models"
)

// apiClient talks to a running sitescan API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{baseURL: baseURL, apiKey: apiKey, http: &http.Client{Timeout: 30 * time.Second}}
}

// apiError is a non-2xx API answer.
type apiError struct {
	status int
	detail *models.ErrorDetail
}

func (e *apiError) Error() string {
	if e.detail != nil {
		return fmt.Sprintf("API error %d: %s: %s", e.status, e.detail.Code, e.detail.Message)
	}
	return fmt.Sprintf("API error %d", e.status)
}

func (c *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var er models.ErrorResponse
		_ = json.Unmarshal(raw, &er)
		return &apiError{status: resp.StatusCode, detail: er.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *apiClient) StartScan(ctx context.Context, req models.ScanRequest) (*models.ScanAcceptedResponse, error) {
	var out models.ScanAcceptedResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/scans", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Status(ctx context.Context, id string) (*models.ScanStatusResponse, error) {
	var out models.ScanStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/scans/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Result(ctx context.Context, id string) (*models.ScanResultResponse, error) {
	var out models.ScanResultResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/scans/"+id+"/result", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Preview(ctx context.Context, id string) (*models.ScanPreviewResponse, error) {
	var out models.ScanPreviewResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/scans/"+id+"/preview", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// waitFinished polls the status endpoint until the scan is no longer
// queued or running.
func (c *apiClient) waitFinished(ctx context.Context, id string, every time.Duration) (*models.ScanStatusResponse, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		st, err := c.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		if st.Status != models.JobQueued && st.Status != models.JobRunning {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}
