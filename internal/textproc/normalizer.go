// Package textproc cleans scraped web text and splits it into
// overlapping word windows suitable for embedding.
package textproc

import (
	"regexp"
	"strings"
)

// Boilerplate patterns stripped from scraped pages, applied in order.
// The Devanagari strip is aggressive and known to eat legitimate text
// on mixed-script pages; it is kept for parity with the ingestion
// behavior the caches were built with.
var (
	urlRe         = regexp.MustCompile(`https?://\S+`)
	emailRe       = regexp.MustCompile(`\S+@\S+\.\S+`)
	whitespaceRe  = regexp.MustCompile(`[\s\t\r\n]+`)
	copyrightRe   = regexp.MustCompile(`(?i)©\s*\d{4}.*?All rights reserved\.|Copyright\s*©?\s*\d{4}.*?\.`)
	legalRe       = regexp.MustCompile(`(?i)Skip to (main content|navigation)|Privacy Policy|Terms of Use|Cookie Policy`)
	socialRe      = regexp.MustCompile(`(?i)Follow us on.*?(Facebook|Twitter|Instagram|LinkedIn)|Share this (article|page|post)`)
	accountRe     = regexp.MustCompile(`(?i)Sign (up|in)|Register|Login|Accept\s*cookies?\s*[a-z\s]*settings|cookie\s*policy`)
	cookieRe      = regexp.MustCompile(`(?i)We use cookies.*?experience|like us on facebook|follow us on twitter`)
	navRe         = regexp.MustCompile(`(?i)home|about|contact|menu|search|subscribe to our newsletter|sign to our newsletter|sign up for updates`)
	parentheticRe = regexp.MustCompile(`\([^)]*\)`)
	devanagariRe  = regexp.MustCompile(`[\x{0900}-\x{097F}]+`)
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
)

// Normalize strips URLs, emails and boilerplate from raw scraped text and
// collapses whitespace. It never fails; empty input yields an empty string.
func Normalize(text string) string {
	text = urlRe.ReplaceAllString(text, "")
	text = emailRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = copyrightRe.ReplaceAllString(text, "")
	text = legalRe.ReplaceAllString(text, "")
	text = socialRe.ReplaceAllString(text, "")
	text = accountRe.ReplaceAllString(text, "")
	text = cookieRe.ReplaceAllString(text, "")
	text = navRe.ReplaceAllString(text, "")
	text = parentheticRe.ReplaceAllString(text, "")
	text = devanagariRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// WordCount reports the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
