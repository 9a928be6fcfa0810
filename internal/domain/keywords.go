package domain

import (
	"regexp"
	"strings"
)

const (
	// Title words must be longer than this to count as keywords.
	titleMinWordLen = 3
	// At most this many keywords are taken from the title.
	titleMaxKeywords = 5
	// Organizer words must be longer than this to count as keywords.
	organizerMinWordLen = 2
)

var punctuationRe = regexp.MustCompile(`[^\w\s]`)

// BuildKeywords derives lowercase matching keywords from an event title and
// organizer. Title keywords come first.
func BuildKeywords(title, organizer string) []string {
	keywords := make([]string, 0, titleMaxKeywords+4)

	for _, w := range words(title) {
		if len(keywords) == titleMaxKeywords {
			break
		}
		if len(w) > titleMinWordLen {
			keywords = append(keywords, w)
		}
	}

	for _, w := range words(organizer) {
		if len(w) > organizerMinWordLen {
			keywords = append(keywords, w)
		}
	}

	return keywords
}

func words(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(punctuationRe.ReplaceAllString(strings.ToLower(s), ""))
}
