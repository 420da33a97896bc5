package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// boilerplateSelectors never carry content worth sending to the LLM.
var boilerplateSelectors = []string{
	"script", "style", "noscript", "template", "svg", "iframe",
	"nav", "[role=navigation]", "[aria-hidden=true]",
	"[class*=cookie]", "[id*=cookie]",
}

// StripBoilerplate removes non-content elements from rawHTML. On parse
// failure the input is returned unchanged.
func StripBoilerplate(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	doc.Find(strings.Join(boilerplateSelectors, ", ")).Remove()

	out, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return out
}

// VisibleText returns the whitespace-normalised text of the document body.
func VisibleText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		return strings.Join(strings.Fields(doc.Text()), " ")
	}
	return strings.Join(strings.Fields(body.Text()), " ")
}
