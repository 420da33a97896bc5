package cleaner

import (
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// Cleaner turns raw storefront HTML into the compact text sample that is
// shown to the LLM. The converter is created once and is goroutine-safe.
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{mdConverter: newMarkdownConverter()}
}

// Sample is the cleaned content of one page.
type Sample struct {
	// Markdown is the main content as Markdown, truncated.
	Markdown string
	// Text is the visible text of the whole page with boilerplate removed.
	Text string
	// Tokens estimates the size of Markdown.
	Tokens int
}

// Sample runs boilerplate stripping, readability and Markdown conversion.
// It never fails: each stage falls back to the previous stage's output.
func (c *Cleaner) Sample(rawHTML, sourceURL string, maxChars int) Sample {
	stripped := StripBoilerplate(rawHTML)
	text := VisibleText(stripped)

	content := stripped
	if article, ok := ExtractContent(stripped, sourceURL); ok {
		content = article.Content
	}

	md, err := ToMarkdown(c.mdConverter, content, sourceURL)
	if err != nil || strings.TrimSpace(md) == "" {
		md = text
	}
	md = Truncate(collapseBlankLines(md), maxChars)

	return Sample{Markdown: md, Text: text, Tokens: EstimateTokens(md)}
}

// Truncate cuts s to at most maxChars runes, on a word boundary when one is
// close. maxChars <= 0 disables truncation.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:maxChars])
	if idx := strings.LastIndexAny(cut, " \n"); idx > len(cut)*3/4 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, strings.TrimRight(l, " \t"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
