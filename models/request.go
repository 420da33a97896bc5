package models

// Fetch modes accepted by ScanRequest.FetchMode.
const (
	FetchModeRendered = "rendered"
	FetchModePlain    = "plain"
)

// ScanRequest is the payload for POST /api/v1/scans.
type ScanRequest struct {
	// URL is the storefront home page. Required.
	URL string `json:"url" binding:"required,url"`

	// Store metadata forwarded to the AI prompt.
	Platform      string `json:"platform,omitempty"`
	Country       string `json:"country,omitempty"`
	Stage         string `json:"stage,omitempty"`
	TrafficSource string `json:"traffic_source,omitempty"`
	AOVBucket     string `json:"aov_bucket,omitempty"`
	Goal          string `json:"goal,omitempty"`

	// Metrics is an opaque bag of connector-supplied store metrics
	// (orders, revenue, conversion rate...). Only forwarded to the prompt.
	Metrics map[string]any `json:"metrics,omitempty"`

	// CommerceAPIProducts, when present, replaces HTML-based product
	// analysis entirely.
	CommerceAPIProducts []CommerceProduct `json:"commerce_api_products,omitempty"`

	// FetchMode is the preferred fetch strategy for the home page and
	// extracted pages: "rendered" (default) or "plain".
	FetchMode string `json:"fetch_mode,omitempty" binding:"omitempty,oneof=rendered plain"`

	// SkipAI runs the baseline path only.
	SkipAI bool `json:"skip_ai,omitempty"`

	// MaxAge allows reuse of a cached result younger than MaxAge milliseconds.
	// 0 disables cache lookups.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// WebhookURL receives scan.completed / scan.failed events.
	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// CommerceProduct is one product from a connected commerce platform feed.
type CommerceProduct struct {
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Price       *float64  `json:"price,omitempty"`
	Prices      []float64 `json:"prices,omitempty"`
	Description string    `json:"description,omitempty"`
	ImageCount  int       `json:"image_count,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScanRequest) Defaults() {
	if r.FetchMode == "" {
		r.FetchMode = FetchModeRendered
	}
}
