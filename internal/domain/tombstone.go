package domain

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

const (
	// Dead 404/410 links below this score are tombstoned.
	TombstoneNotFoundMaxScore = 10
	// Server errors below this score are tombstoned.
	TombstoneServerErrorMaxScore = 5
	// Redirect chains at least this long are tombstoned regardless of score.
	TombstoneMaxRedirects = 5
)

// ShouldTombstone decides whether a check result marks the URL permanently dead.
func ShouldTombstone(status int, redirectChain []string, score int) bool {
	switch {
	case (status == 404 || status == 410) && score < TombstoneNotFoundMaxScore:
		return true
	case len(redirectChain) >= TombstoneMaxRedirects:
		return true
	case status >= 500 && score < TombstoneServerErrorMaxScore:
		return true
	default:
		return false
	}
}

// TombstoneReason is the short diagnostic stored with a tombstone.
func TombstoneReason(status, score int) string {
	return fmt.Sprintf("Status: %d, Score: %d", status, score)
}

// URLParts is the tombstone key of a URL.
type URLParts struct {
	Domain string
	Path   string // path plus "?query" when present
}

// ExtractURLParts splits an absolute URL into its tombstone key. ok is false
// for unparseable or host-less URLs.
func ExtractURLParts(raw string) (parts URLParts, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return URLParts{}, false
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return URLParts{
		Domain: strings.ToLower(u.Hostname()),
		Path:   path,
	}, true
}

// Site returns the registrable domain (eTLD+1) of a URL, falling back to the
// host name. Used to group log lines per site.
func Site(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
