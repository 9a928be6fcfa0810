package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/oneOoneData/TaxProExchange-sub003/internal/domain"
)

// eventSelectColumns lists columns for SELECT queries on events.
const eventSelectColumns = `id, title, organizer, candidate_url, canonical_url, url_status,
	redirect_chain, link_health_score, last_checked_at, publishable`

type eventRow struct {
	ID              string         `db:"id"`
	Title           sql.NullString `db:"title"`
	Organizer       sql.NullString `db:"organizer"`
	CandidateURL    sql.NullString `db:"candidate_url"`
	CanonicalURL    sql.NullString `db:"canonical_url"`
	URLStatus       sql.NullInt64  `db:"url_status"`
	RedirectChain   pq.StringArray `db:"redirect_chain"`
	LinkHealthScore sql.NullInt64  `db:"link_health_score"`
	LastCheckedAt   sql.NullTime   `db:"last_checked_at"`
	Publishable     bool           `db:"publishable"`
}

func (r *eventRow) toDomain() *domain.Event {
	e := &domain.Event{
		ID:              r.ID,
		Title:           r.Title.String,
		Organizer:       r.Organizer.String,
		CandidateURL:    r.CandidateURL.String,
		CanonicalURL:    r.CanonicalURL.String,
		URLStatus:       int(r.URLStatus.Int64),
		RedirectChain:   []string(r.RedirectChain),
		LinkHealthScore: int(r.LinkHealthScore.Int64),
		Publishable:     r.Publishable,
	}
	if e.RedirectChain == nil {
		e.RedirectChain = []string{}
	}
	if r.LastCheckedAt.Valid {
		t := r.LastCheckedAt.Time
		e.LastCheckedAt = &t
	}
	return e
}

// EventRepository reads events and writes back validation results.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// ListDue returns up to limit events that have a URL, least recently checked
// first with never-checked events ahead of all others.
func (r *EventRepository) ListDue(ctx context.Context, limit int) ([]*domain.Event, error) {
	query := `SELECT ` + eventSelectColumns + `
		FROM events
		WHERE COALESCE(canonical_url, candidate_url, '') <> ''
		ORDER BY last_checked_at ASC NULLS FIRST, id ASC
		LIMIT $1`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list due events: %w", err)
	}

	events := make([]*domain.Event, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toDomain())
	}
	return events, nil
}

// GetByID returns domain.ErrEventNotFound when no event has the id.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	query := `SELECT ` + eventSelectColumns + ` FROM events WHERE id = $1`

	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// UpdateValidation persists one validation pass. canonical_url is only
// overwritten when the update carries one.
func (r *EventRepository) UpdateValidation(ctx context.Context, id string, u domain.ValidationUpdate) error {
	query := `
		UPDATE events
		SET canonical_url = COALESCE($2, canonical_url),
			url_status = $3,
			redirect_chain = $4,
			link_health_score = $5,
			last_checked_at = $6,
			publishable = $7
		WHERE id = $1
	`

	chain := u.RedirectChain
	if chain == nil {
		chain = []string{}
	}

	result, err := r.db.ExecContext(ctx, query,
		id, u.CanonicalURL, u.URLStatus, pq.Array(chain), u.Score, u.CheckedAt, u.Publishable)
	if err != nil {
		return fmt.Errorf("failed to update event %s: %w", id, err)
	}
	return execRequireRows(result, fmt.Errorf("update event %s: %w", id, domain.ErrEventNotFound))
}
