package domain

import (
	"net/url"
	"strings"
)

// DefaultTrackingParams are stripped from every URL during healing.
var DefaultTrackingParams = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_content",
	"utm_term",
	"fbclid",
	"gclid",
}

// Healer proposes a cleaned-up variant of a broken URL.
type Healer struct {
	params map[string]bool
}

// NewHealer returns a healer stripping the default tracking parameters plus extra.
func NewHealer(extra ...string) *Healer {
	params := make(map[string]bool, len(DefaultTrackingParams)+len(extra))
	for _, p := range DefaultTrackingParams {
		params[p] = true
	}
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			params[p] = true
		}
	}
	return &Healer{params: params}
}

var defaultHealer = NewHealer()

// HealURL heals raw with the default tracking parameter set.
func HealURL(raw string) string {
	return defaultHealer.Heal(raw)
}

// Heal removes tracking query parameters and the fragment. Unparseable input
// is returned unchanged, as is a URL with nothing to strip.
func (h *Healer) Heal(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	changed := false

	if u.RawQuery != "" {
		if kept, dropped := h.stripParams(u.RawQuery); dropped {
			u.RawQuery = kept
			u.ForceQuery = false
			changed = true
		}
	}

	if u.Fragment != "" || u.RawFragment != "" || strings.HasSuffix(raw, "#") {
		u.Fragment = ""
		u.RawFragment = ""
		changed = true
	}

	if !changed {
		return raw
	}
	return u.String()
}

// stripParams drops tracking pairs from a raw query string. Surviving pairs
// keep their original order and encoding, including ones url.ParseQuery
// would reject.
func (h *Healer) stripParams(rawQuery string) (string, bool) {
	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if h.params[key] {
			continue
		}
		kept = append(kept, pair)
	}
	if len(kept) == len(pairs) {
		return rawQuery, false
	}
	return strings.Join(kept, "&"), true
}
