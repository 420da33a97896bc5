// Package signals turns one fetched page into a models.PageSignals record.
// Extraction is pure: no network, no clock, same input same output.
package signals

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"
	"github.com/andybalholm/cascadia"

	"github.com/fyxxlabs/sitescan/cleaner"
	"github.com/fyxxlabs/sitescan/models"
	"github.com/fyxxlabs/sitescan/pricing"
	"github.com/fyxxlabs/sitescan/simhash"
)

const (
	// FoldChars approximates the first viewport: the leading characters of
	// head+body markup.
	FoldChars = 12000

	// DefaultSampleChars caps TextSample when no extractor is configured.
	DefaultSampleChars = 1500

	maxHeadings = 20
)

var (
	ctaRe = regexp.MustCompile(`(?i)\b(?:add to (?:cart|bag|basket)|buy (?:it )?now|shop now|order now|get (?:it|yours) now|ajouter au panier|acheter maintenant|commander maintenant|in den warenkorb)\b`)

	shippingRe = regexp.MustCompile(`(?i)\b(?:shipping|delivery|returns|return policy|refunds?|exchanges|livraison|retours?|remboursement|versand)\b`)
	contactRe  = regexp.MustCompile(`(?i)\b(?:contact(?: us)?|email us|call us|customer (?:service|care)|get in touch|nous contacter|service client|kontakt)\b`)
	reviewsRe  = regexp.MustCompile(`(?i)\b(?:reviews?|testimonials?|rated \d|\d(?:\.\d)? out of 5|avis clients?|bewertungen)\b`)
	widgetRe   = regexp.MustCompile(`(?i)trustpilot|yotpo|judge\.?me|okendo|stamped\.io|stamped-|loox|reviews\.io|klaviyo-reviews`)
	trustRe    = regexp.MustCompile(`(?i)\b(?:secure (?:checkout|payments?)|money[- ]back|guarantee[d]?|ssl|paypal|visa|mastercard|american express|apple pay|google pay|klarna|paiement s[ée]curis[ée]|garantie)\b`)
	badgeImgRe = regexp.MustCompile(`(?i)visa|paypal|mastercard|amex|secure|badge|guarantee|trust|ssl`)
)

var (
	buttonSel    = cascadia.MustCompile(`button, input[type=submit], input[type=button], [role=button], a[class*=btn], a[class*=button]`)
	headingSel   = cascadia.MustCompile(`h1, h2, h3`)
	priceAttrSel = cascadia.MustCompile(`[itemprop=price], meta[property="product:price:amount"], meta[property="og:price:amount"]`)
	ogSel        = cascadia.MustCompile(`meta[property^="og:"]`)
	canonicalSel = cascadia.MustCompile(`link[rel=canonical][href]`)
	contactSel   = cascadia.MustCompile(`a[href^="mailto:"], a[href^="tel:"]`)
	hiddenSel    = cascadia.MustCompile(`script, style, noscript, template`)
)

// Extractor produces PageSignals. The zero value is not usable; use
// NewExtractor.
type Extractor struct {
	cleaner     *cleaner.Cleaner
	sampleChars int
}

// NewExtractor returns an Extractor whose TextSample is at most sampleChars
// runes.
func NewExtractor(c *cleaner.Cleaner, sampleChars int) *Extractor {
	if c == nil {
		c = cleaner.NewCleaner()
	}
	if sampleChars <= 0 {
		sampleChars = DefaultSampleChars
	}
	return &Extractor{cleaner: c, sampleChars: sampleChars}
}

var defaultExtractor = sync.OnceValue(func() *Extractor {
	return NewExtractor(cleaner.NewCleaner(), DefaultSampleChars)
})

// Extract runs the default Extractor.
func Extract(rawHTML, pageURL string) models.PageSignals {
	return defaultExtractor().Extract(rawHTML, pageURL)
}

// Extract parses rawHTML fetched from pageURL. It never fails: unparseable
// input yields a record with only URL and PageType set.
func (e *Extractor) Extract(rawHTML, pageURL string) models.PageSignals {
	sig := models.PageSignals{
		URL:            pageURL,
		PageType:       ClassifyPageType(pageURL),
		Headings:       []string{},
		StructuredData: []models.StructuredProduct{},
		DetectedPrices: []float64{},
		ImageAltRatio:  1,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return sig
	}

	sig.Title = normalizeSpace(doc.Find("title").First().Text())
	sig.H1 = normalizeSpace(doc.Find("h1").First().Text())
	sig.MetaDescription = metaContent(doc, "description")
	sig.HasViewportMobile = strings.Contains(strings.ToLower(metaContent(doc, "viewport")), "width=device-width")
	sig.HasCanonical = doc.FindMatcher(canonicalSel).Length() > 0
	sig.HasOpenGraph = doc.FindMatcher(ogSel).Length() > 0
	sig.H2Count = doc.Find("h2").Length()

	doc.FindMatcher(headingSel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if h := normalizeSpace(s.Text()); h != "" {
			sig.Headings = append(sig.Headings, h)
		}
		return len(sig.Headings) < maxHeadings
	})

	var ld ldResult
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		typ := strings.ToLower(s.AttrOr("type", ""))
		if strings.Contains(typ, "ld+json") {
			ld.parseJSONLD(s.Text())
			return
		}
		if strings.Contains(typ, "json") {
			return
		}
		sig.ScriptCount++
	})
	if ld.products != nil {
		sig.StructuredData = ld.products
	}

	imgs := doc.Find("img")
	sig.ImageCount = imgs.Length()
	badgeImage := false
	if sig.ImageCount > 0 {
		withAlt := 0
		imgs.Each(func(_ int, s *goquery.Selection) {
			alt := strings.TrimSpace(s.AttrOr("alt", ""))
			if alt != "" {
				withAlt++
			}
			if badgeImgRe.MatchString(alt + " " + s.AttrOr("src", "") + " " + s.AttrOr("class", "")) {
				badgeImage = true
			}
		})
		sig.ImageAltRatio = float64(withAlt) / float64(sig.ImageCount)
	}

	if base, err := url.Parse(pageURL); err == nil {
		for _, link := range cleaner.SameOriginLinksFromDoc(doc, base) {
			switch ClassifyPageType(link.Href) {
			case models.PageProduct, models.PageCollection, models.PageCart:
				sig.HasProductLinks = true
			}
			if sig.HasProductLinks {
				break
			}
		}
	}

	// Fold markup is taken before hidden elements are dropped below.
	fold := foldMarkup(doc)
	hasContactLink := doc.FindMatcher(contactSel).Length() > 0
	hasPriceAttr := doc.FindMatcher(priceAttrSel).Length() > 0
	hasButton := doc.FindMatcher(buttonSel).Length() > 0

	doc.FindMatcher(hiddenSel).Remove()
	text := visibleText(doc)

	sig.WordCount = len(strings.Fields(text))
	sig.HasCTA = ctaPresent(rawHTML, text, hasButton)
	sig.DetectedPrices = pricing.ExtractPrices(text)
	if sig.DetectedPrices == nil {
		sig.DetectedPrices = []float64{}
	}
	sig.HasPrice = len(sig.DetectedPrices) > 0 || hasPriceAttr || structuredPrice(sig.StructuredData)
	sig.HasShippingReturns = shippingRe.MatchString(text)
	sig.HasContact = hasContactLink || contactRe.MatchString(text)
	sig.HasReviews = ld.hasRating || reviewsRe.MatchString(text) || widgetRe.MatchString(rawHTML)
	sig.HasTrustBadges = badgeImage || trustRe.MatchString(text)

	sig.CTAAboveFold, sig.PriceAboveFold = foldSignals(fold)

	sig.TextSample = e.cleaner.Sample(rawHTML, pageURL, e.sampleChars).Markdown
	sig.Language = detectLanguage(doc, text)
	sig.Fingerprint = simhash.Fingerprint(text)
	return sig
}

// ctaPresent is true when a call-to-action phrase appears in the markup
// alongside a button-like element, or anywhere in the visible text.
func ctaPresent(markup, text string, hasButton bool) bool {
	return (hasButton && ctaRe.MatchString(markup)) || ctaRe.MatchString(text)
}

// foldMarkup returns the first FoldChars characters of head+body markup.
func foldMarkup(doc *goquery.Document) string {
	head, _ := goquery.OuterHtml(doc.Find("head"))
	body, _ := goquery.OuterHtml(doc.Find("body"))
	return truncateRunes(head+body, FoldChars)
}

// foldSignals applies the CTA and price heuristics to the fold fragment.
func foldSignals(fragment string) (cta, price bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return false, false
	}
	hasButton := doc.FindMatcher(buttonSel).Length() > 0
	hasPriceAttr := doc.FindMatcher(priceAttrSel).Length() > 0
	doc.FindMatcher(hiddenSel).Remove()
	text := visibleText(doc)

	cta = ctaPresent(fragment, text, hasButton)
	price = hasPriceAttr || len(pricing.ExtractPrices(text)) > 0
	return cta, price
}

func structuredPrice(products []models.StructuredProduct) bool {
	for _, p := range products {
		if p.Price != nil {
			return true
		}
	}
	return false
}

// detectLanguage prefers a confident detection from the visible text
// (ISO 639-3) and falls back to the declared <html lang>.
func detectLanguage(doc *goquery.Document, text string) string {
	if len(text) >= 40 {
		info := whatlanggo.Detect(text)
		if info.IsReliable() {
			return info.Lang.Iso6393()
		}
	}
	lang := strings.ToLower(strings.TrimSpace(doc.Find("html").AttrOr("lang", "")))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

func metaContent(doc *goquery.Document, name string) string {
	var content string
	doc.Find("meta[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(s.AttrOr("name", ""), name) {
			content = normalizeSpace(s.AttrOr("content", ""))
			return false
		}
		return true
	})
	return content
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		return normalizeSpace(doc.Text())
	}
	return normalizeSpace(body.Text())
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for count := 0; i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}
