package domain

import (
	"strings"
)

const (
	// Base score by status class
	ScoreOK       = 50
	ScoreRedirect = 30
	// ScoreClientErrorBase is reduced by ScoreClientErrorStep per status point above 400.
	ScoreClientErrorBase = 30
	ScoreClientErrorStep = 2

	// Redirect penalty per hop, capped
	ScoreRedirectPenaltyPerHop = 2
	ScoreRedirectPenaltyMax    = 10

	// Keyword bonus per matched keyword, capped
	ScoreKeywordPerMatch = 8
	ScoreKeywordMax      = 20

	ScoreCanonicalBonus = 10
	ScoreSPAPenalty     = 5
	ScoreContentBonus   = 5

	// Bodies longer than this earn the content bonus.
	ContentBonusMinLen = 1000
	// Bodies shorter than this with a root mount marker look like SPA shells.
	SPAShellMaxLen = 2000
	spaRootMarker  = `id="root"`

	ScoreMin = 0
	ScoreMax = 100

	// DefaultPublishableScore is the production publishable threshold.
	DefaultPublishableScore = 50
)

// ScoreInput is everything the scorer looks at. Missing pieces (no body, no
// title) simply earn no bonus.
type ScoreInput struct {
	Status        int
	RedirectChain []string
	Title         string
	Canonical     string
	Keywords      []string

	// Body is the decoded response text; HasBody is false when no body was read.
	Body    string
	HasBody bool

	// HTMLLike is true when the response declared or sniffed as HTML.
	HTMLLike bool
}

// ScoreLink computes the 0-100 link health score and whether the page looks
// like a client-rendered shell that static fetching cannot see.
func ScoreLink(in ScoreInput) (score int, needsJS bool) {
	score = baseScore(in.Status)

	score -= redirectPenalty(len(in.RedirectChain))

	if in.Title != "" {
		score += keywordBonus(in.Title, in.Keywords)
	}

	if in.Canonical != "" {
		score += ScoreCanonicalBonus
	}

	needsJS = IsSPAShell(in.HTMLLike, in.Body, in.HasBody)
	if needsJS {
		score -= ScoreSPAPenalty
	}

	if in.HasBody && len(in.Body) > ContentBonusMinLen {
		score += ScoreContentBonus
	}

	return clampScore(score), needsJS
}

// baseScore maps the HTTP status to the starting score. 404 starts at zero.
func baseScore(status int) int {
	switch {
	case status == 200 || status == 203:
		return ScoreOK
	case status == 301 || status == 302 || status == 307 || status == 308:
		return ScoreRedirect
	case status == 404:
		return 0
	case status >= 400:
		return max(0, ScoreClientErrorBase-(status-400)*ScoreClientErrorStep)
	default:
		return 0
	}
}

func redirectPenalty(hops int) int {
	return min(ScoreRedirectPenaltyMax, hops*ScoreRedirectPenaltyPerHop)
}

// keywordBonus counts keywords appearing in the (lowercased) title.
func keywordBonus(title string, keywords []string) int {
	title = strings.ToLower(title)
	matches := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(title, strings.ToLower(kw)) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}
	return min(ScoreKeywordMax, matches*ScoreKeywordPerMatch)
}

// IsSPAShell is the needs-JS heuristic: an HTML response with no body at all,
// or a short body carrying a root mount marker.
func IsSPAShell(htmlLike bool, body string, hasBody bool) bool {
	if !htmlLike {
		return false
	}
	if !hasBody || body == "" {
		return true
	}
	return len(body) < SPAShellMaxLen && strings.Contains(body, spaRootMarker)
}

func clampScore(score int) int {
	return min(ScoreMax, max(ScoreMin, score))
}

// IsPublishable is the publish gate: a healthy enough score on a non-error status.
func IsPublishable(score, status, minScore int) bool {
	return score >= minScore && status < 400
}
