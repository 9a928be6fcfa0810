package fetcher

import (
	"context"
	"net/url"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
)

// Check fetches rawURL and scores the response against keywords. It never
// fails: network errors yield a zero score result carrying Error.
func (f *Fetcher) Check(ctx context.Context, rawURL string, keywords []string) domain.LinkCheckResult {
	resp, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return domain.LinkCheckResult{
			FinalURL:      rawURL,
			RedirectChain: []string{},
			Error:         err.Error(),
		}
	}

	title, _ := domain.ExtractTitle(resp.Body)
	canonical, ok := domain.ExtractCanonical(resp.Body)
	if ok {
		canonical = resolveAgainst(resp.FinalURL, canonical)
	}

	score, needsJS := domain.ScoreLink(domain.ScoreInput{
		Status:        resp.Status,
		RedirectChain: resp.RedirectChain,
		Title:         title,
		Canonical:     canonical,
		Keywords:      keywords,
		Body:          resp.Body,
		HasBody:       resp.HasBody,
		HTMLLike:      resp.HTMLLike,
	})

	return domain.LinkCheckResult{
		FinalURL:      resp.FinalURL,
		Status:        resp.Status,
		RedirectChain: resp.RedirectChain,
		Score:         score,
		NeedsJS:       needsJS,
		Canonical:     canonical,
		Title:         title,
	}
}

// resolveAgainst turns a relative canonical href into an absolute URL.
func resolveAgainst(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
