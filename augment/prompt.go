package augment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyxxlabs/sitescan/cleaner"
	"github.com/fyxxlabs/sitescan/models"
)

// Input is everything the AI phase may look at.
type Input struct {
	Request  models.ScanRequest
	Pages    []models.PageSignals
	Products []models.ProductAnalysis
	Prices   models.PriceInsights
	Baseline models.BaselineResult
}

// promptOverheadTokens is reserved for everything except page samples.
const promptOverheadTokens = 1500

// minSampleTokens keeps every page sample at least this large.
const minSampleTokens = 80

const systemPrompt = `You are a senior e-commerce conversion rate consultant.
You receive structured signals extracted from a storefront plus a deterministic baseline audit.
Review them and return ONE JSON object, no markdown, with exactly these keys:

{
  "score": integer 0-100,
  "breakdown": {"clarity": 0-100, "trust": 0-100, "ux": 0-100, "offer": 0-100, "speed": 0-100, "funnel": 0-100},
  "issues": [{"id": string, "title": string, "why": string, "fix_steps": [string], "impact": "high"|"medium"|"low", "confidence": "high"|"medium"|"low"}],
  "priority_action": {"title": string, "steps": [string], "est_minutes": integer, "expected_impact": "high"|"medium"|"low"},
  "checklist": [{"label": string, "done": boolean}],
  "notes": {"confidence": "high"|"medium"|"low", "limitations": [string]}
}

Rules:
- At most 5 issues, most impactful first. Be specific to this store.
- Only claim what the signals support. If data is thin, say so in notes.limitations.
- Write in the language of the store.`

type promptStore struct {
	URL           string         `json:"url"`
	Platform      string         `json:"platform,omitempty"`
	Country       string         `json:"country,omitempty"`
	Stage         string         `json:"stage,omitempty"`
	TrafficSource string         `json:"traffic_source,omitempty"`
	AOVBucket     string         `json:"aov_bucket,omitempty"`
	Goal          string         `json:"goal,omitempty"`
	Metrics       map[string]any `json:"metrics,omitempty"`
}

type promptPage struct {
	URL            string                     `json:"url"`
	Type           models.PageType            `json:"type"`
	Title          string                     `json:"title,omitempty"`
	H1             string                     `json:"h1,omitempty"`
	Headings       []string                   `json:"headings,omitempty"`
	Flags          map[string]bool            `json:"flags"`
	ScriptCount    int                        `json:"script_count"`
	ImageAltRatio  float64                    `json:"image_alt_ratio"`
	StructuredData []models.StructuredProduct `json:"structured_data,omitempty"`
	Text           string                     `json:"text"`
}

type promptPayload struct {
	Store    promptStore              `json:"store"`
	Pages    []promptPage             `json:"pages"`
	Products []models.ProductAnalysis `json:"products,omitempty"`
	Prices   models.PriceInsights     `json:"price_insights"`
	Baseline models.BaselineResult    `json:"baseline"`
}

// BuildPrompt renders the system instruction and the user message. Page
// text samples share maxTokens so the estimated prompt stays within it.
func BuildPrompt(in Input, maxTokens int) (system, user string, err error) {
	perPage := minSampleTokens
	if n := len(in.Pages); n > 0 && maxTokens > promptOverheadTokens {
		perPage = max(minSampleTokens, (maxTokens-promptOverheadTokens)/n)
	}

	payload := promptPayload{
		Store: promptStore{
			URL:           in.Request.URL,
			Platform:      in.Request.Platform,
			Country:       in.Request.Country,
			Stage:         in.Request.Stage,
			TrafficSource: in.Request.TrafficSource,
			AOVBucket:     in.Request.AOVBucket,
			Goal:          in.Request.Goal,
			Metrics:       in.Request.Metrics,
		},
		Pages:    make([]promptPage, 0, len(in.Pages)),
		Products: in.Products,
		Prices:   in.Prices,
		Baseline: in.Baseline,
	}
	for _, p := range in.Pages {
		sd := p.StructuredData
		if len(sd) > 3 {
			sd = sd[:3]
		}
		payload.Pages = append(payload.Pages, promptPage{
			URL:      p.URL,
			Type:     p.PageType,
			Title:    p.Title,
			H1:       p.H1,
			Headings: p.Headings,
			Flags: map[string]bool{
				"cta":              p.HasCTA,
				"cta_above_fold":   p.CTAAboveFold,
				"price":            p.HasPrice,
				"price_above_fold": p.PriceAboveFold,
				"shipping_returns": p.HasShippingReturns,
				"contact":          p.HasContact,
				"reviews":          p.HasReviews,
				"trust_badges":     p.HasTrustBadges,
				"mobile_viewport":  p.HasViewportMobile,
			},
			ScriptCount:    p.ScriptCount,
			ImageAltRatio:  p.ImageAltRatio,
			StructuredData: sd,
			Text:           cleaner.TrimToTokens(p.TextSample, perPage),
		})
	}

	var b strings.Builder
	b.WriteString("Audit this storefront. Data:\n")
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", "", fmt.Errorf("augment: encode prompt data: %w", err)
	}
	return systemPrompt, b.String(), nil
}
