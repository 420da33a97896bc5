// Package scoring computes the deterministic baseline result of a scan.
//
// The scorer is the fallback of record: it performs no I/O, never fails,
// and produces a complete BaselineResult for any input including none.
package scoring

import (
	"github.com/fyxxlabs/sitescan/models"
)

// BaseScore is the starting score before per-signal weights are added.
const BaseScore = 50

// DefaultHeavyScriptThreshold is the script count above which a page is
// considered heavy.
const DefaultHeavyScriptThreshold = 40

// MaxIssues caps the issue list.
const MaxIssues = 5

// Home page signal weights.
const (
	weightH1             = 5
	weightMeta           = 3
	weightCTA            = 6
	weightCTAAboveFold   = 6
	weightPrice          = 4
	weightPriceAboveFold = 3
	weightContact        = 4
	weightShipping       = 5
	weightTrustBadges    = 4
	weightReviews        = 5
	weightViewport       = 4
	weightProductLinks   = 4
	weightNoHeavyScripts = 3
)

// Scorer holds the tunables of the baseline scorer.
type Scorer struct {
	HeavyScriptThreshold int
}

// Score runs a Scorer with default tunables.
func Score(pages []models.PageSignals) models.BaselineResult {
	return Scorer{HeavyScriptThreshold: DefaultHeavyScriptThreshold}.Score(pages)
}

// Score computes the baseline from the collected page signals. The home
// page (or the first page when none is classified home) drives most rules.
func (s Scorer) Score(pages []models.PageSignals) models.BaselineResult {
	if s.HeavyScriptThreshold <= 0 {
		s.HeavyScriptThreshold = DefaultHeavyScriptThreshold
	}
	home := homePage(pages)
	heavy := s.anyHeavy(pages)

	score := BaseScore
	add := func(ok bool, w int) {
		if ok {
			score += w
		}
	}
	add(home.H1 != "", weightH1)
	add(home.MetaDescription != "", weightMeta)
	add(home.HasCTA, weightCTA)
	add(home.CTAAboveFold, weightCTAAboveFold)
	add(home.HasPrice, weightPrice)
	add(home.PriceAboveFold, weightPriceAboveFold)
	add(home.HasContact, weightContact)
	add(home.HasShippingReturns, weightShipping)
	add(home.HasTrustBadges, weightTrustBadges)
	add(home.HasReviews, weightReviews)
	add(home.HasViewportMobile, weightViewport)
	add(home.HasProductLinks, weightProductLinks)
	add(len(pages) > 0 && !heavy, weightNoHeavyScripts)

	return models.BaselineResult{
		Score:          Clamp(score),
		Breakdown:      s.breakdown(home, pages),
		Issues:         issues(home, len(pages) > 0 && heavy),
		PriorityAction: priorityAction(home),
		Checklist:      checklist(home),
	}
}

// Clamp bounds v to [0, 100].
func Clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func homePage(pages []models.PageSignals) models.PageSignals {
	for _, p := range pages {
		if p.PageType == models.PageHome {
			return p
		}
	}
	if len(pages) > 0 {
		return pages[0]
	}
	return models.PageSignals{}
}

func (s Scorer) anyHeavy(pages []models.PageSignals) bool {
	for _, p := range pages {
		if p.ScriptCount > s.HeavyScriptThreshold {
			return true
		}
	}
	return false
}

func (s Scorer) maxScripts(pages []models.PageSignals) int {
	m := 0
	for _, p := range pages {
		m = max(m, p.ScriptCount)
	}
	return m
}

func (s Scorer) breakdown(home models.PageSignals, pages []models.PageSignals) models.Breakdown {
	pts := func(ok bool, w int) int {
		if ok {
			return w
		}
		return 0
	}

	var anyProduct, productCTA, anyStructured bool
	for _, p := range pages {
		if p.PageType == models.PageProduct {
			anyProduct = true
			productCTA = productCTA || p.HasCTA
		}
		anyStructured = anyStructured || len(p.StructuredData) > 0
	}

	b := models.Breakdown{
		Clarity: pts(home.H1 != "", 40) + pts(home.MetaDescription != "", 30) +
			pts(home.Title != "", 15) + pts(home.H2Count > 0, 15),
		Trust: 25 * (b2i(home.HasContact) + b2i(home.HasShippingReturns) +
			b2i(home.HasTrustBadges) + b2i(home.HasReviews)),
		UX: pts(home.HasViewportMobile, 40) + pts(home.ImageAltRatio >= 0.8, 20) +
			pts(home.HasCanonical, 20) + pts(home.HasOpenGraph, 20),
		Offer: pts(home.HasPrice, 35) + pts(home.PriceAboveFold, 25) +
			pts(home.HasCTA, 25) + pts(anyStructured, 15),
		Speed: s.speed(pages),
		Funnel: pts(home.HasProductLinks, 30) + pts(home.CTAAboveFold, 30) +
			pts(anyProduct, 20) + pts(productCTA, 20),
	}

	b.Clarity = Clamp(b.Clarity)
	b.Trust = Clamp(b.Trust)
	b.UX = Clamp(b.UX)
	b.Offer = Clamp(b.Offer)
	b.Speed = Clamp(b.Speed)
	b.Funnel = Clamp(b.Funnel)
	return b
}

// speed uses the heaviest page's script count as a performance proxy.
// With nothing scanned there is no evidence either way.
func (s Scorer) speed(pages []models.PageSignals) int {
	if len(pages) == 0 {
		return 50
	}
	scripts := s.maxScripts(pages)
	switch {
	case scripts <= s.HeavyScriptThreshold/2:
		return 100
	case scripts <= s.HeavyScriptThreshold:
		return 75
	case scripts <= 2*s.HeavyScriptThreshold:
		return 45
	default:
		return 20
	}
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
