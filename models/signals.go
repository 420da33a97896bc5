package models

// PageType is the commercial role of a scanned page, derived from its URL path.
type PageType string

const (
	PageHome       PageType = "home"
	PageProduct    PageType = "product"
	PageCollection PageType = "collection"
	PageCart       PageType = "cart"
	PageAbout      PageType = "about"
	PageContact    PageType = "contact"
	PageOther      PageType = "other"
)

// PageSignals is everything extracted from one fetched page.
// Values are never mutated once produced.
type PageSignals struct {
	URL             string   `json:"url"`
	PageType        PageType `json:"page_type"`
	Title           string   `json:"title"`
	H1              string   `json:"h1"`
	MetaDescription string   `json:"meta_description"`
	Headings        []string `json:"headings"`

	HasCTA             bool `json:"has_cta"`
	HasPrice           bool `json:"has_price"`
	HasShippingReturns bool `json:"has_shipping_returns"`
	HasContact         bool `json:"has_contact"`
	HasReviews         bool `json:"has_reviews"`
	HasTrustBadges     bool `json:"has_trust_badges"`
	HasViewportMobile  bool `json:"has_viewport_mobile"`
	HasCanonical       bool `json:"has_canonical"`
	HasOpenGraph       bool `json:"has_open_graph"`
	HasProductLinks    bool `json:"has_product_links"`

	ScriptCount   int     `json:"script_count"`
	ImageCount    int     `json:"image_count"`
	H2Count       int     `json:"h2_count"`
	WordCount     int     `json:"word_count"`
	ImageAltRatio float64 `json:"image_alt_ratio"`

	StructuredData []StructuredProduct `json:"structured_data"`

	CTAAboveFold   bool `json:"cta_above_fold"`
	PriceAboveFold bool `json:"price_above_fold"`

	// DetectedPrices are the currency-adjacent amounts found in visible text.
	DetectedPrices []float64 `json:"detected_prices,omitempty"`

	TextSample  string `json:"text_sample"`
	Language    string `json:"language,omitempty"`
	Fingerprint uint64 `json:"fingerprint,omitempty"`
}

// StructuredProduct is a product record parsed from a JSON-LD block.
type StructuredProduct struct {
	Name     string   `json:"name,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
}

// Product analysis sources.
const (
	ProductSourceCrawl = "crawl"
	ProductSourceAPI   = "api"
)

// ProductAnalysis is the per-product view fed to price intelligence and the AI prompt.
type ProductAnalysis struct {
	URL             string    `json:"url,omitempty"`
	Title           string    `json:"title"`
	Source          string    `json:"source"`
	Prices          []float64 `json:"prices"`
	AvgPrice        *float64  `json:"avg_price"`
	ImageCount      int       `json:"image_count"`
	ScriptCount     int       `json:"script_count"`
	Issues          []string  `json:"issues"`
	Recommendations []string  `json:"recommendations"`
}

// PriceInsights aggregates prices over every ProductAnalysis of a run.
type PriceInsights struct {
	AvgPrice           *float64 `json:"avg_price"`
	MinPrice           *float64 `json:"min_price"`
	MaxPrice           *float64 `json:"max_price"`
	ProductURLs        []string `json:"product_urls"`
	CompetitorAvgPrice *float64 `json:"competitor_avg_price"`
	CompetitorSamples  int      `json:"competitor_samples"`
}
