package validation

import (
	"context"
	"sync"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
)

type fakeEvents struct {
	mu         sync.Mutex
	order      []string
	events     map[string]*domain.Event
	updates    map[string][]domain.ValidationUpdate
	failUpdate map[string]error
	listErr    error
}

func newFakeEvents(events ...*domain.Event) *fakeEvents {
	f := &fakeEvents{
		events:     make(map[string]*domain.Event, len(events)),
		updates:    make(map[string][]domain.ValidationUpdate),
		failUpdate: make(map[string]error),
	}
	for _, e := range events {
		f.order = append(f.order, e.ID)
		f.events[e.ID] = e
	}
	return f
}

func (f *fakeEvents) ListDue(_ context.Context, limit int) ([]*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*domain.Event, 0, limit)
	for _, id := range f.order {
		if len(out) == limit {
			break
		}
		e := *f.events[id]
		out = append(out, &e)
	}
	return out, nil
}

func (f *fakeEvents) GetByID(_ context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEvents) UpdateValidation(_ context.Context, id string, u domain.ValidationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.failUpdate[id]; err != nil {
		return err
	}
	e, ok := f.events[id]
	if !ok {
		return domain.ErrEventNotFound
	}
	f.updates[id] = append(f.updates[id], u)

	if u.CanonicalURL != nil {
		e.CanonicalURL = *u.CanonicalURL
	}
	e.URLStatus = u.URLStatus
	e.RedirectChain = u.RedirectChain
	e.LinkHealthScore = u.Score
	checked := u.CheckedAt
	e.LastCheckedAt = &checked
	e.Publishable = u.Publishable
	return nil
}

func (f *fakeEvents) lastUpdate(id string) (domain.ValidationUpdate, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.updates[id]
	if len(u) == 0 {
		return domain.ValidationUpdate{}, false
	}
	return u[len(u)-1], true
}

func (f *fakeEvents) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, u := range f.updates {
		n += len(u)
	}
	return n
}

type tombstoneKey struct{ domain, path string }

type fakeTombstones struct {
	mu        sync.Mutex
	dead      map[tombstoneKey]string
	inserts   []tombstoneKey
	existsErr error
	insertErr error
}

func newFakeTombstones() *fakeTombstones {
	return &fakeTombstones{dead: make(map[tombstoneKey]string)}
}

func (f *fakeTombstones) Exists(_ context.Context, domain, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.dead[tombstoneKey{domain, path}]
	return ok, nil
}

func (f *fakeTombstones) Insert(_ context.Context, domain, path, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return false, f.insertErr
	}
	key := tombstoneKey{domain, path}
	f.inserts = append(f.inserts, key)
	if _, ok := f.dead[key]; ok {
		return false, nil
	}
	f.dead[key] = reason
	return true, nil
}

type fakeChecker struct {
	mu    sync.Mutex
	fn    func(url string) domain.LinkCheckResult
	calls []string
}

func (f *fakeChecker) Check(_ context.Context, url string, _ []string) domain.LinkCheckResult {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	return f.fn(url)
}

func (f *fakeChecker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeChecker) called(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == url {
			return true
		}
	}
	return false
}

func healthyResult(url string) domain.LinkCheckResult {
	return domain.LinkCheckResult{
		FinalURL:      url,
		Status:        200,
		RedirectChain: []string{},
		Score:         70,
	}
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func newFakeLocker(held ...string) *fakeLocker {
	l := &fakeLocker{held: make(map[string]bool)}
	for _, id := range held {
		l.held[id] = true
	}
	return l
}

func (l *fakeLocker) Acquire(_ context.Context, id string) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[id] {
		return nil, false, nil
	}
	l.held[id] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, id)
		l.released = append(l.released, id)
		return nil
	}, true, nil
}
