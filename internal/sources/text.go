// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cleanText flattens inline markup (<i>, <sup>, MathML, entities) to plain
// text and collapses runs of whitespace. Sources embed markup in titles and
// abstracts; the store keeps only text.
func cleanText(s string) string {
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}
