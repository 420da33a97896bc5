package models

// Scan job statuses.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// ScanAcceptedResponse is the response for POST /api/v1/scans.
type ScanAcceptedResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Status  string `json:"status,omitempty"`

	// CacheStatus is "hit" when a cached result was reused, "miss" otherwise.
	CacheStatus string       `json:"cache_status,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
}

// ScanStatusResponse is the response for GET /api/v1/scans/:id.
type ScanStatusResponse struct {
	ID        string       `json:"id"`
	URL       string       `json:"url"`
	Status    string       `json:"status"`
	Progress  Progress     `json:"progress"`
	CreatedAt int64        `json:"created_at"`
	UpdatedAt int64        `json:"updated_at"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// ScanResultResponse wraps a full result for GET /api/v1/scans/:id/result.
type ScanResultResponse struct {
	ID     string      `json:"id"`
	Status string      `json:"status"`
	Result *ScanResult `json:"result"`
}

// ScanPreviewResponse wraps a preview for GET /api/v1/scans/:id/preview.
type ScanPreviewResponse struct {
	ID      string       `json:"id"`
	Status  string       `json:"status"`
	Preview *ScanPreview `json:"preview"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status      string    `json:"status"` // "healthy" or "degraded"
	Uptime      string    `json:"uptime"`
	PoolStats   PoolStats `json:"pool_stats"`
	ActiveScans int       `json:"active_scans"`
	Version     string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	Enabled     bool `json:"enabled"`
	MaxPages    int  `json:"max_pages"`
	ActivePages int  `json:"active_pages"`
}
