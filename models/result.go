package models

// Confidence tiers.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Impact / confidence tiers used by issues and priority actions.
const (
	ImpactHigh   = "high"
	ImpactMedium = "medium"
	ImpactLow    = "low"
)

// AI statuses reported in raw.ai.status.
const (
	AIStatusOK       = "ok"
	AIStatusFailed   = "failed"
	AIStatusSkipped  = "skipped"
	AIStatusDisabled = "disabled"
)

// Breakdown holds the six 0-100 category sub-scores.
type Breakdown struct {
	Clarity int `json:"clarity"`
	Trust   int `json:"trust"`
	UX      int `json:"ux"`
	Offer   int `json:"offer"`
	Speed   int `json:"speed"`
	Funnel  int `json:"funnel"`
}

// Issue is one detected conversion problem with a canned fix.
type Issue struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Why        string   `json:"why"`
	FixSteps   []string `json:"fix_steps"`
	Impact     string   `json:"impact"`
	Confidence string   `json:"confidence"`
}

// PriorityAction is the single highest-leverage fix of a scan.
type PriorityAction struct {
	Title          string   `json:"title"`
	Steps          []string `json:"steps"`
	EstMinutes     int      `json:"est_minutes"`
	ExpectedImpact string   `json:"expected_impact"`
}

// ChecklistItem is one label/done pair of the checklist.
type ChecklistItem struct {
	Label string `json:"label"`
	Done  bool   `json:"done"`
}

// BaselineResult is the deterministic scoring output.
type BaselineResult struct {
	Score          int             `json:"score"`
	Breakdown      Breakdown       `json:"breakdown"`
	Issues         []Issue         `json:"issues"`
	PriorityAction PriorityAction  `json:"priority_action"`
	Checklist      []ChecklistItem `json:"checklist"`
}

// ScanResult is the finalized output of one scan run.
type ScanResult struct {
	BaselineResult

	Confidence   string         `json:"confidence"`
	PagesScanned []string       `json:"pages_scanned"`
	Limitations  []string       `json:"limitations,omitempty"`
	Raw          RawDiagnostics `json:"raw"`
}

// RawDiagnostics is the diagnostics bag attached to every ScanResult.
type RawDiagnostics struct {
	FetchMode       string            `json:"fetch_mode"`
	Downgraded      bool              `json:"downgraded"`
	HomeError       string            `json:"home_error,omitempty"`
	Timing          TimingInfo        `json:"timing"`
	Pages           PageStats         `json:"pages"`
	AI              AIDiagnostics     `json:"ai"`
	ProductAnalyses []ProductAnalysis `json:"product_analyses"`
	PriceInsights   PriceInsights     `json:"price_insights"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	TotalMs    int64 `json:"total_ms"`
	HomeMs     int64 `json:"home_ms"`
	DiscoverMs int64 `json:"discover_ms"`
	ExtractMs  int64 `json:"extract_ms"`
	AIMs       int64 `json:"ai_ms"`
}

// PageStats counts what happened to candidate pages during a run.
type PageStats struct {
	Discovered    int `json:"discovered"`
	Fetched       int `json:"fetched"`
	Failed        int `json:"failed"`
	SkippedBudget int `json:"skipped_budget"`
	PlainFallback int `json:"plain_fallback"`
}

// AIDiagnostics reports what the AI phase did.
type AIDiagnostics struct {
	Enabled   bool      `json:"enabled"`
	Status    string    `json:"status"`
	ErrorCode string    `json:"error_code,omitempty"`
	Model     string    `json:"model,omitempty"`
	Usage     *LLMUsage `json:"usage,omitempty"`
}

// LLMUsage reports token consumption for the AI call.
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ScanPreview is the redacted projection of a ScanResult for unentitled callers.
type ScanPreview struct {
	Score          int             `json:"score"`
	PriorityAction PriorityAction  `json:"priority_action"`
	TopIssues      []IssueSummary  `json:"top_issues"`
	Checklist      []ChecklistItem `json:"checklist"`
	Confidence     string          `json:"confidence"`
	Limitations    []string        `json:"limitations,omitempty"`
}

// IssueSummary is an Issue stripped to title and impact.
type IssueSummary struct {
	Title  string `json:"title"`
	Impact string `json:"impact"`
}
