package cleaner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an anchor resolved against the page URL.
type Link struct {
	Href string
	Text string
}

// SameOriginLinks returns the de-duplicated http(s) links of rawHTML whose
// host matches sourceURL's host, in document order. Fragments are dropped.
func SameOriginLinks(rawHTML string, sourceURL string) []Link {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	return SameOriginLinksFromDoc(doc, base)
}

// SameOriginLinksFromDoc is SameOriginLinks over an already parsed document.
func SameOriginLinksFromDoc(doc *goquery.Document, base *url.URL) []Link {
	var links []Link
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !sameHost(resolved.Hostname(), base.Hostname()) {
			return
		}
		resolved.Fragment = ""
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, Link{Href: abs, Text: strings.Join(strings.Fields(s.Text()), " ")})
	})
	return links
}

// sameHost treats "www." as insignificant.
func sameHost(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "www.")
	b = strings.TrimPrefix(strings.ToLower(b), "www.")
	return a == b
}
