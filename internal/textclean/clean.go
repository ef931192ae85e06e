// Package textclean normalizes article text before it is stored or embedded.
package textclean

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// Clean unescapes HTML entities, strips markup, collapses runs of
// whitespace and returns the NFC form of the result.
func Clean(s string) string {
	if s == "" {
		return ""
	}

	text := html.UnescapeString(s)
	if strings.ContainsAny(text, "<>") {
		text = stripTags(text)
	}

	text = strings.Join(strings.Fields(text), " ")
	return norm.NFC.String(text)
}

func stripTags(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	// script and style bodies are not prose.
	doc.Find("script, style, noscript").Remove()

	// Keep block boundaries as spaces so adjacent words do not merge.
	doc.Find("p, div, br, li, h1, h2, h3, h4, h5, h6, td, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})

	return doc.Text()
}
