package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
	"github.com/oneOoneData/TaxProExchange-sub003/internal/store/postgres"
)

// eventColumns lists the columns returned by event SELECT queries.
var eventColumns = []string{
	"id", "title", "organizer", "candidate_url", "canonical_url", "url_status",
	"redirect_chain", "link_health_score", "last_checked_at", "publishable",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = mockDB.Close() })

	return sqlx.NewDb(mockDB, "postgres"), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEventRepository_ListDue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewEventRepository(db)

	checked := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .+ FROM events .+ ORDER BY last_checked_at ASC NULLS FIRST").
		WithArgs(2).
		WillReturnRows(
			sqlmock.NewRows(eventColumns).
				AddRow("evt-1", "Tax Conference 2025", nil, "https://example.com/conf", nil, nil,
					"{}", nil, nil, false).
				AddRow("evt-2", "Ethics Update", "NATP", "https://example.com/a", "https://example.com/b", 301,
					"{https://example.com/a,https://example.com/b}", 26, checked, false),
		)

	events, err := repo.ListDue(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListDue() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}

	first := events[0]
	if first.ID != "evt-1" || first.LastCheckedAt != nil || first.CanonicalURL != "" {
		t.Errorf("first event = %+v", first)
	}
	if first.RedirectChain == nil || len(first.RedirectChain) != 0 {
		t.Errorf("first.RedirectChain = %#v, want empty", first.RedirectChain)
	}

	second := events[1]
	if second.URLStatus != 301 || second.LinkHealthScore != 26 || second.Organizer != "NATP" {
		t.Errorf("second event = %+v", second)
	}
	if second.LastCheckedAt == nil || !second.LastCheckedAt.Equal(checked) {
		t.Errorf("second.LastCheckedAt = %v, want %v", second.LastCheckedAt, checked)
	}
	if len(second.RedirectChain) != 2 || second.RedirectChain[1] != "https://example.com/b" {
		t.Errorf("second.RedirectChain = %v", second.RedirectChain)
	}
	if second.URLToCheck() != "https://example.com/b" {
		t.Errorf("URLToCheck() = %q", second.URLToCheck())
	}

	expectationsMet(t, mock)
}

func TestEventRepository_ListDue_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewEventRepository(db)

	mock.ExpectQuery("SELECT .+ FROM events").
		WillReturnError(errors.New("connection reset"))

	if _, err := repo.ListDue(context.Background(), 10); err == nil {
		t.Fatal("ListDue() error = nil, want error")
	}

	expectationsMet(t, mock)
}

func TestEventRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewEventRepository(db)

	mock.ExpectQuery("SELECT .+ FROM events WHERE id").
		WithArgs("evt-1").
		WillReturnRows(
			sqlmock.NewRows(eventColumns).
				AddRow("evt-1", "Tax Conference 2025", nil, "https://example.com/conf", nil, 200,
					"{}", 81, time.Now(), true),
		)

	event, err := repo.GetByID(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if event.Title != "Tax Conference 2025" || !event.Publishable || event.LinkHealthScore != 81 {
		t.Errorf("event = %+v", event)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewEventRepository(db)

	mock.ExpectQuery("SELECT .+ FROM events WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(eventColumns))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrEventNotFound", err)
	}

	expectationsMet(t, mock)
}

func TestEventRepository_UpdateValidation(t *testing.T) {
	checkedAt := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	canonical := "https://example.com/healed"

	tests := []struct {
		name         string
		canonical    *string
		wantArg      any
		rowsAffected int64
		wantErr      error
	}{
		{
			name:         "with canonical",
			canonical:    &canonical,
			wantArg:      canonical,
			rowsAffected: 1,
		},
		{
			name:         "canonical left unchanged",
			canonical:    nil,
			wantArg:      nil,
			rowsAffected: 1,
		},
		{
			name:         "missing row",
			canonical:    nil,
			wantArg:      nil,
			rowsAffected: 0,
			wantErr:      domain.ErrEventNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := postgres.NewEventRepository(db)

			mock.ExpectExec("UPDATE events").
				WithArgs("evt-1", tt.wantArg, 200, sqlmock.AnyArg(), 81, sqlmock.AnyArg(), true).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			err := repo.UpdateValidation(context.Background(), "evt-1", domain.ValidationUpdate{
				CanonicalURL:  tt.canonical,
				URLStatus:     200,
				RedirectChain: nil,
				Score:         81,
				CheckedAt:     checkedAt,
				Publishable:   true,
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("UpdateValidation() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("UpdateValidation() error = %v", err)
			}

			expectationsMet(t, mock)
		})
	}
}

func TestEventRepository_UpdateValidation_ExecError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewEventRepository(db)

	mock.ExpectExec("UPDATE events").
		WillReturnError(errors.New("deadlock detected"))

	err := repo.UpdateValidation(context.Background(), "evt-1", domain.ValidationUpdate{CheckedAt: time.Now()})
	if err == nil || errors.Is(err, domain.ErrEventNotFound) {
		t.Fatalf("UpdateValidation() error = %v, want exec error", err)
	}

	expectationsMet(t, mock)
}
