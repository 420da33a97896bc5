package signals

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/fyxxlabs/sitescan/models"
)

var (
	localeRootRe     = regexp.MustCompile(`^/[a-z]{2}(?:[-_][a-z]{2})?/?$`)
	productPathRe    = regexp.MustCompile(`/(?:products?|items?|p|dp)/[^/]+`)
	collectionPathRe = regexp.MustCompile(`/(?:collections?|category|categories|catalog|shop|store)(?:/|$)`)
	cartPathRe       = regexp.MustCompile(`/(?:cart|basket|bag|checkout|panier)(?:/|$)`)
	aboutPathRe      = regexp.MustCompile(`/(?:about|about-us|our-story|who-we-are|a-propos|pages/about[^/]*)(?:/|$)`)
	contactPathRe    = regexp.MustCompile(`/(?:contact|contact-us|support|help|pages/contact[^/]*)(?:/|$)`)
)

// ClassifyPageType infers a page's commercial role from its URL path.
// Rules are checked in order: home, product, collection, cart, about,
// contact. Anything else is PageOther.
func ClassifyPageType(rawURL string) models.PageType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.PageOther
	}
	path := strings.ToLower(u.Path)

	switch {
	case path == "" || path == "/" || localeRootRe.MatchString(path):
		return models.PageHome
	case productPathRe.MatchString(path):
		return models.PageProduct
	case collectionPathRe.MatchString(path):
		return models.PageCollection
	case cartPathRe.MatchString(path):
		return models.PageCart
	case aboutPathRe.MatchString(path):
		return models.PageAbout
	case contactPathRe.MatchString(path):
		return models.PageContact
	default:
		return models.PageOther
	}
}
