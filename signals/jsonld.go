package signals

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/fyxxlabs/sitescan/models"
)

// maxJSONLDDepth bounds the walk over nested @graph / array values.
const maxJSONLDDepth = 6

// ldResult accumulates what the JSON-LD blocks of one page declare.
type ldResult struct {
	products  []models.StructuredProduct
	hasRating bool
}

// parseJSONLD decodes one ld+json block. Malformed blocks, unexpected
// shapes and non-product nodes are skipped silently.
func (r *ldResult) parseJSONLD(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return
	}
	r.walk(v, 0)
}

func (r *ldResult) walk(v any, depth int) {
	if depth > maxJSONLDDepth {
		return
	}
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			r.walk(item, depth+1)
		}
	case map[string]any:
		if graph, ok := node["@graph"]; ok {
			r.walk(graph, depth+1)
		}
		if _, ok := node["aggregateRating"]; ok {
			r.hasRating = true
		}
		if hasType(node["@type"], "Product", "ProductGroup") {
			r.products = append(r.products, productFromNode(node))
		}
	}
}

// hasType reports whether @type (a string or a list of strings) names any
// of the wanted types.
func hasType(t any, wanted ...string) bool {
	var types []string
	switch tv := t.(type) {
	case string:
		types = []string{tv}
	case []any:
		for _, x := range tv {
			if s, ok := x.(string); ok {
				types = append(types, s)
			}
		}
	}
	for _, have := range types {
		have = strings.TrimPrefix(have, "schema:")
		have = strings.TrimPrefix(have, "http://schema.org/")
		have = strings.TrimPrefix(have, "https://schema.org/")
		for _, w := range wanted {
			if strings.EqualFold(have, w) {
				return true
			}
		}
	}
	return false
}

func productFromNode(node map[string]any) models.StructuredProduct {
	p := models.StructuredProduct{}
	if name, ok := node["name"].(string); ok {
		p.Name = strings.TrimSpace(name)
	}

	var offers []map[string]any
	switch ov := node["offers"].(type) {
	case map[string]any:
		offers = append(offers, ov)
	case []any:
		for _, o := range ov {
			if m, ok := o.(map[string]any); ok {
				offers = append(offers, m)
			}
		}
	}
	for _, offer := range offers {
		price := toFloat(offer["price"])
		if price == nil {
			price = toFloat(offer["lowPrice"])
		}
		if price == nil {
			// priceSpecification is sometimes nested one level down.
			if spec, ok := offer["priceSpecification"].(map[string]any); ok {
				price = toFloat(spec["price"])
			}
		}
		if price == nil {
			continue
		}
		p.Price = price
		if cur, ok := offer["priceCurrency"].(string); ok {
			p.Currency = strings.ToUpper(strings.TrimSpace(cur))
		}
		break
	}

	if rating, ok := node["aggregateRating"].(map[string]any); ok {
		p.Rating = toFloat(rating["ratingValue"])
	}
	return p
}

// toFloat accepts JSON numbers and numeric strings ("19.99", "19,99").
// NaN and infinities are rejected.
func toFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		s := strings.TrimSpace(x)
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
