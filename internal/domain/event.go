package domain

import (
	"errors"
	"time"
)

// ErrEventNotFound is returned by event stores when no row matches the id.
var ErrEventNotFound = errors.New("event not found")

// Event is the subset of an event record the link validator reads and writes.
// Events are owned by the wider application; only the validation fields below
// are ever written here.
type Event struct {
	// ─────────────────────────────
	// Identity & content (read only)
	// ─────────────────────────────

	ID        string
	Title     string
	Organizer string

	// CandidateURL is the URL originally submitted with the event.
	CandidateURL string

	// ─────────────────────────────
	// Validation state
	// ─────────────────────────────

	// CanonicalURL is the best-known correct URL. Empty until a canonical
	// tag is found or a healed URL wins.
	CanonicalURL string

	// URLStatus is the last observed HTTP status (0 = fetch failed).
	URLStatus int

	RedirectChain []string

	// LinkHealthScore is always within [0,100].
	LinkHealthScore int

	// LastCheckedAt is nil until the first validation attempt.
	LastCheckedAt *time.Time

	Publishable bool
}

// URLToCheck returns the URL a validation pass should fetch: the canonical
// URL when known, otherwise the submitted one.
func (e *Event) URLToCheck() string {
	if e.CanonicalURL != "" {
		return e.CanonicalURL
	}
	return e.CandidateURL
}

// NeedsValidation reports whether the event is due for a re-check.
func (e *Event) NeedsValidation(now time.Time, recheckAfter time.Duration) bool {
	if e.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*e.LastCheckedAt) >= recheckAfter
}

// ValidationUpdate carries the fields written back after a validation pass.
type ValidationUpdate struct {
	// CanonicalURL is written only when non-nil.
	CanonicalURL  *string
	URLStatus     int
	RedirectChain []string
	Score         int
	CheckedAt     time.Time
	Publishable   bool
}

// Tombstone marks a (domain, path) pair as permanently dead.
type Tombstone struct {
	Domain    string
	Path      string
	Reason    string
	CreatedAt time.Time
}

// LinkCheckResult is the outcome of checking a single URL. It is produced per
// fetch attempt and never persisted as-is.
type LinkCheckResult struct {
	FinalURL      string
	Status        int
	RedirectChain []string
	Score         int
	NeedsJS       bool
	Canonical     string
	Title         string
	Error         string
}

// Failed reports whether the fetch itself failed (no HTTP response at all).
func (r LinkCheckResult) Failed() bool {
	return r.Status == 0
}
