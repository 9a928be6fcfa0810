package domain

import (
	"regexp"
	"strings"
)

// Extraction is regex based on purpose: pages are often malformed and a
// DOM parse buys nothing for two tags.
var (
	titleRe         = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	canonicalLinkRe = regexp.MustCompile(`(?is)<link\b[^>]*\brel\s*=\s*["']?canonical["']?[^>]*>`)
	hrefRe          = regexp.MustCompile(`(?is)\bhref\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"'>]+))`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// ExtractTitle returns the normalized (collapsed, trimmed, lowercased) text of
// the first <title> tag. ok is false when there is no usable title.
func ExtractTitle(html string) (title string, ok bool) {
	if html == "" {
		return "", false
	}
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return "", false
	}
	title = strings.ToLower(strings.TrimSpace(whitespaceRe.ReplaceAllString(m[1], " ")))
	if title == "" {
		return "", false
	}
	return title, true
}

// ExtractCanonical returns the href of the first <link rel="canonical"> tag,
// regardless of attribute order. The href is returned as written.
func ExtractCanonical(html string) (href string, ok bool) {
	if html == "" {
		return "", false
	}
	tag := canonicalLinkRe.FindString(html)
	if tag == "" {
		return "", false
	}
	m := hrefRe.FindStringSubmatch(tag)
	if m == nil {
		return "", false
	}
	for _, v := range m[1:] {
		if v = strings.TrimSpace(v); v != "" {
			return v, true
		}
	}
	return "", false
}
