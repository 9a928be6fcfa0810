package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/fetcher"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/logger"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestValidator(events EventStore, tombstones TombstoneStore, checker Checker, opts Options, extra ...Option) *Validator {
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	}
	return New(events, tombstones, checker, logger.NewNop(), opts, append(base, extra...)...)
}

func newHTTPChecker() *fetcher.Fetcher {
	return fetcher.New(fetcher.Config{Timeout: 2 * time.Second}, nil, nil)
}

func ago(d time.Duration) *time.Time {
	t := testNow.Add(-d)
	return &t
}

// --- End-to-end scenarios against real HTTP servers ---

func TestHealthyEventIsPublishable(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><head><title>Tax Conference 2025</title>
<link rel="canonical" href="%s/conference"></head><body>%s</body></html>`,
			ts.URL, strings.Repeat("<p>sessions, speakers and CPE credit</p>", 40))
	}))
	defer ts.Close()

	events := newFakeEvents(&domain.Event{
		ID:           "evt-1",
		Title:        "Tax Conference 2025",
		CandidateURL: ts.URL + "/conference?ref=listing",
	})
	v := newTestValidator(events, newFakeTombstones(), newHTTPChecker(), Options{})

	res := v.ValidateEventByID(context.Background(), "evt-1")

	if !res.Success {
		t.Fatalf("ValidateEventByID() failed: %s", res.Error)
	}
	if *res.Score < 80 {
		t.Errorf("Score = %d, want >= 80", *res.Score)
	}
	if !*res.Publishable {
		t.Error("Publishable = false, want true")
	}

	u, _ := events.lastUpdate("evt-1")
	if u.CanonicalURL == nil || *u.CanonicalURL != ts.URL+"/conference" {
		t.Errorf("CanonicalURL = %v, want %s/conference", u.CanonicalURL, ts.URL)
	}
	if u.URLStatus != http.StatusOK || !u.CheckedAt.Equal(testNow) {
		t.Errorf("update = %+v", u)
	}
}

func TestDeadLinkIsTombstoned(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	events := newFakeEvents(&domain.Event{ID: "evt-1", CandidateURL: ts.URL + "/gone"})
	tombstones := newFakeTombstones()
	v := newTestValidator(events, tombstones, newHTTPChecker(), Options{})

	summary, err := v.RunBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if summary != (domain.BatchSummary{Processed: 1, Validated: 1}) {
		t.Errorf("summary = %+v", summary)
	}

	u, _ := events.lastUpdate("evt-1")
	if u.Score != 0 || u.Publishable || u.URLStatus != http.StatusNotFound {
		t.Errorf("update = %+v, want score 0, 404, unpublishable", u)
	}

	reason, ok := tombstones.dead[tombstoneKey{"127.0.0.1", "/gone"}]
	if !ok {
		t.Fatalf("tombstone missing, have %v", tombstones.dead)
	}
	if reason != "Status: 404, Score: 0" {
		t.Errorf("reason = %q", reason)
	}
}

func TestHealedURLWins(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("utm_source") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Tax Conference 2025</title></head><body>agenda</body></html>`))
	}))
	defer ts.Close()

	events := newFakeEvents(&domain.Event{
		ID:           "evt-1",
		Title:        "Tax Conference 2025",
		CandidateURL: ts.URL + "/event?utm_source=newsletter&utm_medium=email#register",
	})
	tombstones := newFakeTombstones()
	v := newTestValidator(events, tombstones, newHTTPChecker(), Options{})

	res := v.ValidateEventByID(context.Background(), "evt-1")
	if !res.Success {
		t.Fatalf("ValidateEventByID() failed: %s", res.Error)
	}

	u, _ := events.lastUpdate("evt-1")
	if u.CanonicalURL == nil || *u.CanonicalURL != ts.URL+"/event" {
		t.Errorf("CanonicalURL = %v, want healed %s/event", u.CanonicalURL, ts.URL)
	}
	if u.URLStatus != http.StatusOK {
		t.Errorf("URLStatus = %d, want 200", u.URLStatus)
	}
	// 50 base + two keyword matches
	if u.Score != 66 {
		t.Errorf("Score = %d, want 66", u.Score)
	}
	if len(tombstones.inserts) != 0 {
		t.Errorf("unexpected tombstones %v", tombstones.inserts)
	}
}

func TestLongRedirectChainIsTombstoned(t *testing.T) {
	tests := []struct {
		name          string
		hops          int
		wantTombstone bool
	}{
		{"four hops stay alive", 4, false},
		{"five hops are tombstoned", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := 0
				_, _ = fmt.Sscanf(r.URL.Path, "/r%d", &n)
				if n < tt.hops {
					http.Redirect(w, r, fmt.Sprintf("/r%d", n+1), http.StatusFound)
					return
				}
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte(`<html><head><title>Tax Conference 2025</title></head><body>agenda</body></html>`))
			}))
			defer ts.Close()

			events := newFakeEvents(&domain.Event{
				ID:           "evt-1",
				Title:        "Tax Conference 2025",
				CandidateURL: ts.URL + "/r0",
			})
			tombstones := newFakeTombstones()
			v := newTestValidator(events, tombstones, newHTTPChecker(), Options{})

			if res := v.ValidateEventByID(context.Background(), "evt-1"); !res.Success {
				t.Fatalf("ValidateEventByID() failed: %s", res.Error)
			}

			u, _ := events.lastUpdate("evt-1")
			if len(u.RedirectChain) != tt.hops {
				t.Errorf("RedirectChain = %v, want %d entries", u.RedirectChain, tt.hops)
			}
			if u.URLStatus != http.StatusOK {
				t.Errorf("URLStatus = %d, want 200", u.URLStatus)
			}

			_, dead := tombstones.dead[tombstoneKey{"127.0.0.1", "/r0"}]
			if dead != tt.wantTombstone {
				t.Errorf("tombstoned = %v, want %v (inserts %v)", dead, tt.wantTombstone, tombstones.inserts)
			}
		})
	}
}

// --- Orchestration rules with fakes ---

func TestTombstoneShortCircuit(t *testing.T) {
	events := newFakeEvents(&domain.Event{
		ID:           "evt-1",
		CandidateURL: "https://example.com/dead",
		CanonicalURL: "",
	})
	tombstones := newFakeTombstones()
	tombstones.dead[tombstoneKey{"example.com", "/dead"}] = "Status: 404, Score: 0"
	checker := &fakeChecker{fn: healthyResult}

	v := newTestValidator(events, tombstones, checker, Options{})
	res := v.ValidateEventByID(context.Background(), "evt-1")

	if !res.Success || *res.Score != 0 || *res.Publishable {
		t.Fatalf("result = %+v, want success with score 0", res)
	}
	if checker.callCount() != 0 {
		t.Errorf("checker called %d times, want 0", checker.callCount())
	}

	u, _ := events.lastUpdate("evt-1")
	if u.URLStatus != 404 || u.Score != 0 || u.Publishable || u.CanonicalURL != nil {
		t.Errorf("update = %+v", u)
	}
	if !u.CheckedAt.Equal(testNow) {
		t.Errorf("CheckedAt = %v, want %v", u.CheckedAt, testNow)
	}
}

func TestTombstoneLookupFailureStillChecks(t *testing.T) {
	events := newFakeEvents(&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/a"})
	tombstones := newFakeTombstones()
	tombstones.existsErr = errors.New("db timeout")
	checker := &fakeChecker{fn: healthyResult}

	res := newTestValidator(events, tombstones, checker, Options{}).ValidateEventByID(context.Background(), "evt-1")

	if !res.Success || checker.callCount() != 1 {
		t.Errorf("result = %+v calls = %d", res, checker.callCount())
	}
}

func TestValidateEventByIDNotFound(t *testing.T) {
	events := newFakeEvents()
	checker := &fakeChecker{fn: healthyResult}

	res := newTestValidator(events, newFakeTombstones(), checker, Options{}).ValidateEventByID(context.Background(), "missing")

	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if res.Error != "Event not found" {
		t.Errorf("Error = %q", res.Error)
	}
	if !errors.Is(res.Err, domain.ErrEventNotFound) {
		t.Errorf("Err = %v", res.Err)
	}
	if res.Score != nil || res.Publishable != nil {
		t.Error("score/publishable should be omitted on failure")
	}
	if events.updateCount() != 0 || checker.callCount() != 0 {
		t.Error("storage or network touched for missing event")
	}
}

func TestValidateEventByIDNoURL(t *testing.T) {
	events := newFakeEvents(&domain.Event{ID: "evt-1", Title: "No link"})
	checker := &fakeChecker{fn: healthyResult}

	res := newTestValidator(events, newFakeTombstones(), checker, Options{}).ValidateEventByID(context.Background(), "evt-1")

	if res.Success || res.Error != "Event has no URL to validate" || !errors.Is(res.Err, ErrNoURL) {
		t.Errorf("result = %+v", res)
	}
	if events.updateCount() != 0 {
		t.Error("event updated despite missing URL")
	}
}

func TestValidateEventByIDIgnoresStaleness(t *testing.T) {
	events := newFakeEvents(&domain.Event{
		ID:            "evt-1",
		CandidateURL:  "https://example.com/a",
		LastCheckedAt: ago(time.Minute),
	})
	checker := &fakeChecker{fn: healthyResult}

	res := newTestValidator(events, newFakeTombstones(), checker, Options{}).ValidateEventByID(context.Background(), "evt-1")

	if !res.Success || checker.callCount() != 1 {
		t.Errorf("result = %+v calls = %d, want fresh event re-validated", res, checker.callCount())
	}
}

func TestValidateEventByIDPersistenceError(t *testing.T) {
	events := newFakeEvents(&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/a"})
	events.failUpdate["evt-1"] = errors.New("connection refused")

	res := newTestValidator(events, newFakeTombstones(), &fakeChecker{fn: healthyResult}, Options{}).
		ValidateEventByID(context.Background(), "evt-1")

	if res.Success || !strings.Contains(res.Error, "connection refused") {
		t.Errorf("result = %+v, want persistence failure", res)
	}
}

func TestURLToCheckPrefersCanonical(t *testing.T) {
	events := newFakeEvents(&domain.Event{
		ID:           "evt-1",
		CandidateURL: "https://example.com/old",
		CanonicalURL: "https://example.com/new",
	})
	checker := &fakeChecker{fn: healthyResult}

	newTestValidator(events, newFakeTombstones(), checker, Options{}).ValidateEventByID(context.Background(), "evt-1")

	if !checker.called("https://example.com/new") || checker.called("https://example.com/old") {
		t.Errorf("calls = %v, want canonical URL only", checker.calls)
	}
	u, _ := events.lastUpdate("evt-1")
	if u.CanonicalURL != nil {
		t.Errorf("CanonicalURL = %q, want unchanged", *u.CanonicalURL)
	}
}

func TestHealingNotImprovedKeepsOriginal(t *testing.T) {
	raw := "https://example.com/e?utm_source=x"
	events := newFakeEvents(&domain.Event{ID: "evt-1", CandidateURL: raw})
	tombstones := newFakeTombstones()
	checker := &fakeChecker{fn: func(url string) domain.LinkCheckResult {
		return domain.LinkCheckResult{FinalURL: url, Status: 404, RedirectChain: []string{}}
	}}

	newTestValidator(events, tombstones, checker, Options{}).ValidateEventByID(context.Background(), "evt-1")

	if checker.callCount() != 2 {
		t.Fatalf("calls = %v, want original and healed", checker.calls)
	}
	u, _ := events.lastUpdate("evt-1")
	if u.CanonicalURL != nil {
		t.Errorf("CanonicalURL = %q, want unchanged", *u.CanonicalURL)
	}
	if _, ok := tombstones.dead[tombstoneKey{"example.com", "/e?utm_source=x"}]; !ok {
		t.Errorf("tombstones = %v, want original URL tombstoned", tombstones.dead)
	}
}

func TestHealingOnlyForNotFoundStatuses(t *testing.T) {
	tests := []struct {
		status    int
		wantCalls int
	}{
		{404, 2},
		{410, 2},
		{500, 1},
		{403, 1},
		{0, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			events := newFakeEvents(&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/e#frag"})
			checker := &fakeChecker{fn: func(url string) domain.LinkCheckResult {
				return domain.LinkCheckResult{FinalURL: url, Status: tt.status, RedirectChain: []string{}}
			}}

			newTestValidator(events, newFakeTombstones(), checker, Options{}).ValidateEventByID(context.Background(), "evt-1")

			if checker.callCount() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", checker.callCount(), tt.wantCalls)
			}
		})
	}
}

func TestHealingSkippedWhenURLUnchanged(t *testing.T) {
	events := newFakeEvents(&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/clean"})
	checker := &fakeChecker{fn: func(url string) domain.LinkCheckResult {
		return domain.LinkCheckResult{FinalURL: url, Status: 404, RedirectChain: []string{}}
	}}

	newTestValidator(events, newFakeTombstones(), checker, Options{}).ValidateEventByID(context.Background(), "evt-1")

	if checker.callCount() != 1 {
		t.Errorf("calls = %v, want a single fetch", checker.calls)
	}
}

func TestTombstoneInsertFailureIsBestEffort(t *testing.T) {
	events := newFakeEvents(&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/gone"})
	tombstones := newFakeTombstones()
	tombstones.insertErr = errors.New("unique violation")
	checker := &fakeChecker{fn: func(url string) domain.LinkCheckResult {
		return domain.LinkCheckResult{FinalURL: url, Status: 404, RedirectChain: []string{}}
	}}

	summary, err := newTestValidator(events, tombstones, checker, Options{}).RunBatch(context.Background(), 5)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if summary.Errors != 0 || summary.Validated != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestScoreMinOption(t *testing.T) {
	events := newFakeEvents(&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/a"})
	checker := &fakeChecker{fn: func(url string) domain.LinkCheckResult {
		return domain.LinkCheckResult{FinalURL: url, Status: 200, RedirectChain: []string{}, Score: 45}
	}}

	strict := newTestValidator(events, newFakeTombstones(), checker, Options{}).ValidateEventByID(context.Background(), "evt-1")
	lenient := newTestValidator(events, newFakeTombstones(), checker, Options{ScoreMin: 30}).ValidateEventByID(context.Background(), "evt-1")

	if *strict.Publishable {
		t.Error("score 45 publishable with default threshold")
	}
	if !*lenient.Publishable {
		t.Error("score 45 not publishable with threshold 30")
	}
}

// --- Batch mode ---

func TestRunBatchStalenessGate(t *testing.T) {
	events := newFakeEvents(
		&domain.Event{ID: "never", CandidateURL: "https://example.com/never"},
		&domain.Event{ID: "stale", CandidateURL: "https://example.com/stale", LastCheckedAt: ago(25 * time.Hour)},
		&domain.Event{ID: "fresh", CandidateURL: "https://example.com/fresh", LastCheckedAt: ago(time.Hour)},
	)
	checker := &fakeChecker{fn: healthyResult}

	summary, err := newTestValidator(events, newFakeTombstones(), checker, Options{}).RunBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	want := domain.BatchSummary{Processed: 3, Validated: 2, Publishable: 2}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if checker.called("https://example.com/fresh") {
		t.Error("fresh event was fetched")
	}
	if !checker.called("https://example.com/never") || !checker.called("https://example.com/stale") {
		t.Errorf("calls = %v", checker.calls)
	}
}

func TestRunBatchResilience(t *testing.T) {
	events := newFakeEvents(
		&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/1"},
		&domain.Event{ID: "evt-2", CandidateURL: "https://example.com/2"},
		&domain.Event{ID: "evt-3", CandidateURL: "https://example.com/boom"},
		&domain.Event{ID: "evt-4", CandidateURL: "https://example.com/4"},
	)
	events.failUpdate["evt-2"] = errors.New("write failed")
	checker := &fakeChecker{fn: func(url string) domain.LinkCheckResult {
		if strings.HasSuffix(url, "/boom") {
			panic("unexpected nil")
		}
		return healthyResult(url)
	}}

	summary, err := newTestValidator(events, newFakeTombstones(), checker, Options{}).RunBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	want := domain.BatchSummary{Processed: 4, Validated: 2, Publishable: 2, Errors: 2}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
}

func TestRunBatchListError(t *testing.T) {
	events := newFakeEvents()
	events.listErr = errors.New("relation \"events\" does not exist")

	_, err := newTestValidator(events, newFakeTombstones(), &fakeChecker{fn: healthyResult}, Options{}).
		RunBatch(context.Background(), 10)
	if err == nil {
		t.Fatal("RunBatch() error = nil, want listing error")
	}
}

func TestRunBatchRespectsLimit(t *testing.T) {
	var list []*domain.Event
	for i := range 5 {
		list = append(list, &domain.Event{ID: fmt.Sprintf("evt-%d", i), CandidateURL: fmt.Sprintf("https://example.com/%d", i)})
	}
	checker := &fakeChecker{fn: healthyResult}

	summary, _ := newTestValidator(newFakeEvents(list...), newFakeTombstones(), checker, Options{}).RunBatch(context.Background(), 2)

	if summary.Processed != 2 || checker.callCount() != 2 {
		t.Errorf("summary = %+v calls = %d, want 2", summary, checker.callCount())
	}
}

func TestRunBatchPolitenessDelay(t *testing.T) {
	events := newFakeEvents(
		&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/1"},
		&domain.Event{ID: "evt-2", CandidateURL: "https://example.com/2"},
		&domain.Event{ID: "evt-3", CandidateURL: "https://example.com/3"},
	)

	var mu sync.Mutex
	var sleeps []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		sleeps = append(sleeps, d)
		return nil
	}

	v := newTestValidator(events, newFakeTombstones(), &fakeChecker{fn: healthyResult},
		Options{PolitenessDelay: 500 * time.Millisecond}, WithSleep(sleep))

	if _, err := v.RunBatch(context.Background(), 10); err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sleeps) != 2 {
		t.Fatalf("sleeps = %v, want 2 pauses between 3 events", sleeps)
	}
	for _, d := range sleeps {
		if d != 500*time.Millisecond {
			t.Errorf("sleep = %v, want 500ms", d)
		}
	}
}

func TestRunBatchWorkers(t *testing.T) {
	var list []*domain.Event
	for i := range 8 {
		list = append(list, &domain.Event{ID: fmt.Sprintf("evt-%d", i), CandidateURL: fmt.Sprintf("https://example.com/%d", i)})
	}
	events := newFakeEvents(list...)

	summary, err := newTestValidator(events, newFakeTombstones(), &fakeChecker{fn: healthyResult},
		Options{Workers: 3}).RunBatch(context.Background(), 100)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if summary.Processed != 8 || summary.Validated != 8 || events.updateCount() != 8 {
		t.Errorf("summary = %+v updates = %d", summary, events.updateCount())
	}
}

func TestRunBatchCancelledContext(t *testing.T) {
	events := newFakeEvents(
		&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/1"},
		&domain.Event{ID: "evt-2", CandidateURL: "https://example.com/2"},
	)
	checker := &fakeChecker{fn: healthyResult}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newTestValidator(events, newFakeTombstones(), checker, Options{}).RunBatch(ctx, 10)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if summary.Validated != 0 || checker.callCount() != 0 {
		t.Errorf("summary = %+v calls = %d, want nothing started", summary, checker.callCount())
	}
}

// --- Locking ---

func TestValidateEventByIDLocked(t *testing.T) {
	events := newFakeEvents(&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/a"})
	checker := &fakeChecker{fn: healthyResult}

	v := newTestValidator(events, newFakeTombstones(), checker, Options{}, WithLocker(newFakeLocker("evt-1")))
	res := v.ValidateEventByID(context.Background(), "evt-1")

	if res.Success || res.Error != "Validation already in progress" || !errors.Is(res.Err, ErrLocked) {
		t.Errorf("result = %+v", res)
	}
	if checker.callCount() != 0 || events.updateCount() != 0 {
		t.Error("locked event was validated")
	}
}

func TestRunBatchSkipsLockedEvents(t *testing.T) {
	events := newFakeEvents(
		&domain.Event{ID: "evt-1", CandidateURL: "https://example.com/1"},
		&domain.Event{ID: "evt-2", CandidateURL: "https://example.com/2"},
	)
	locker := newFakeLocker("evt-1")

	summary, err := newTestValidator(events, newFakeTombstones(), &fakeChecker{fn: healthyResult},
		Options{}, WithLocker(locker)).RunBatch(context.Background(), 10)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	want := domain.BatchSummary{Processed: 2, Validated: 1, Publishable: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if len(locker.released) != 1 || locker.released[0] != "evt-2" {
		t.Errorf("released = %v, want [evt-2]", locker.released)
	}
}
