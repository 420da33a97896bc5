package pricing

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/fyxxlabs/sitescan/models"
	"github.com/samber/lo"
)

// Plausible price bounds. Anything outside is a SKU, a year or a phone number.
const (
	MinPrice = 0.5
	MaxPrice = 100000
)

const amount = `(\d{1,3}(?:[,.\x{00A0}\x{202F}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)`

var (
	// $19.99, €1.299,00, USD 45, £ 12
	prefixPriceRe = regexp.MustCompile(`(?i)(?:[$€£¥₹]|\b(?:usd|eur|gbp|cad|aud|chf)\b)\s?` + amount)
	// 19,99 €, 45 USD, 12.50$
	suffixPriceRe = regexp.MustCompile(`(?i)` + amount + `\s?(?:[$€£¥₹]|\b(?:usd|eur|gbp|cad|aud|chf)\b)`)
)

// ExtractPrices returns the distinct currency-adjacent amounts in text that
// fall within [MinPrice, MaxPrice], in order of first appearance.
func ExtractPrices(text string) []float64 {
	var found []float64
	for _, re := range []*regexp.Regexp{prefixPriceRe, suffixPriceRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if v, ok := parseAmount(m[1]); ok {
				found = append(found, v)
			}
		}
	}
	return lo.Uniq(found)
}

// parseAmount understands both 1,299.99 and 1.299,99 notations.
func parseAmount(s string) (float64, bool) {
	s = strings.NewReplacer("\u00a0", "", "\u202f", "").Replace(s)

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		// 1.299 is a thousands group, 12.99 is a decimal.
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < MinPrice || v > MaxPrice {
		return 0, false
	}
	return math.Round(v*100) / 100, true
}

// Average returns the mean of values, or nil when there are none.
func Average(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	avg := math.Round(lo.Sum(values)/float64(len(values))*100) / 100
	return &avg
}

// Aggregate computes own-price statistics over every product analysis.
// The competitor fields are left empty; Benchmark fills them.
func Aggregate(analyses []models.ProductAnalysis) models.PriceInsights {
	var all []float64
	urls := []string{}
	for _, pa := range analyses {
		all = append(all, pa.Prices...)
		if pa.URL != "" {
			urls = append(urls, pa.URL)
		}
	}
	all = lo.Uniq(all)

	insights := models.PriceInsights{
		AvgPrice:    Average(all),
		ProductURLs: lo.Uniq(urls),
	}
	if len(all) > 0 {
		sorted := append([]float64(nil), all...)
		sort.Float64s(sorted)
		low, high := sorted[0], sorted[len(sorted)-1]
		insights.MinPrice = &low
		insights.MaxPrice = &high
	}
	return insights
}
