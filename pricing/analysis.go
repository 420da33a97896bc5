package pricing

import (
	"strings"

	"github.com/fyxxlabs/sitescan/models"
	"github.com/samber/lo"
)

const minProductImages = 3

// FromSignals builds a product analysis from a crawled product page.
// heavyScripts is the script count above which the page is flagged.
func FromSignals(sig models.PageSignals, heavyScripts int) models.ProductAnalysis {
	prices := append([]float64(nil), sig.DetectedPrices...)
	for _, sd := range sig.StructuredData {
		if sd.Price != nil && *sd.Price >= MinPrice && *sd.Price <= MaxPrice {
			prices = append(prices, *sd.Price)
		}
	}
	prices = lo.Uniq(prices)

	title := sig.H1
	if title == "" {
		title = sig.Title
	}

	pa := models.ProductAnalysis{
		URL:             sig.URL,
		Title:           title,
		Source:          models.ProductSourceCrawl,
		Prices:          nonNil(prices),
		AvgPrice:        Average(prices),
		ImageCount:      sig.ImageCount,
		ScriptCount:     sig.ScriptCount,
		Issues:          []string{},
		Recommendations: []string{},
	}

	if len(prices) == 0 && !sig.HasPrice {
		addFinding(&pa, "No visible price on the product page", "Show the price next to the product title")
	}
	if !sig.HasCTA {
		addFinding(&pa, "No add-to-cart call to action detected", "Add a prominent add-to-cart button near the price")
	}
	if sig.ImageCount < minProductImages {
		addFinding(&pa, "Fewer than 3 product images", "Add lifestyle and detail shots of the product")
	}
	if sig.ImageAltRatio < 0.5 && sig.ImageCount > 0 {
		addFinding(&pa, "Most product images lack alt text", "Describe each product image in its alt attribute")
	}
	if !sig.HasReviews {
		addFinding(&pa, "No customer reviews on the product page", "Install a reviews widget and request reviews after delivery")
	}
	if heavyScripts > 0 && sig.ScriptCount > heavyScripts {
		addFinding(&pa, "Heavy script load slows the product page", "Remove unused apps and defer third-party scripts")
	}
	return pa
}

// FromCommerceProduct builds a product analysis from a connector feed item.
// No HTML was seen, so only price and catalogue-level checks apply.
func FromCommerceProduct(p models.CommerceProduct) models.ProductAnalysis {
	prices := append([]float64(nil), p.Prices...)
	if p.Price != nil {
		prices = append([]float64{*p.Price}, prices...)
	}
	prices = lo.Uniq(lo.Filter(prices, func(v float64, _ int) bool {
		return v >= MinPrice && v <= MaxPrice
	}))

	pa := models.ProductAnalysis{
		URL:             p.URL,
		Title:           strings.TrimSpace(p.Title),
		Source:          models.ProductSourceAPI,
		Prices:          nonNil(prices),
		AvgPrice:        Average(prices),
		ImageCount:      p.ImageCount,
		Issues:          []string{},
		Recommendations: []string{},
	}
	if len(prices) == 0 {
		addFinding(&pa, "Product has no price in the catalogue", "Set a price for every published product")
	}
	if p.ImageCount < minProductImages {
		addFinding(&pa, "Fewer than 3 product images", "Add lifestyle and detail shots of the product")
	}
	if len(strings.Fields(p.Description)) < 30 {
		addFinding(&pa, "Product description is thin", "Write at least a short paragraph covering benefits, materials and sizing")
	}
	return pa
}

func addFinding(pa *models.ProductAnalysis, issue, rec string) {
	pa.Issues = append(pa.Issues, issue)
	pa.Recommendations = append(pa.Recommendations, rec)
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}
