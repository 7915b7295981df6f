// Package intake provides the legacy webhook intake bounded context: the
// token-guarded HTTP endpoints external systems post call events to, the
// call_events table they land in, and the bridge that turns unprocessed
// events into leads.
package intake

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CallEvent is one inbound telephony/chat/form event awaiting bridging.
type CallEvent struct {
	ID              uuid.UUID
	PhoneNumber     string
	CustomerName    *string
	Notes           *string
	Source          string
	Status          string
	Direction       *string
	ExternalID      *string
	IsProcessed     bool
	ProcessedAction *string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// CreateCallEventParams are the fields accepted from the webhook intake.
type CreateCallEventParams struct {
	PhoneNumber  string
	CustomerName *string
	Notes        *string
	Source       string
	Status       string
	Direction    *string
	ExternalID   *string
}

// Repository provides data access for call events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new call-event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const callEventColumns = `
	id, phone_number, customer_name, notes, source, status, direction,
	external_id, is_processed, processed_action, created_at, processed_at`

// Create inserts a new call event.
func (r *Repository) Create(ctx context.Context, params CreateCallEventParams) (CallEvent, error) {
	var event CallEvent
	err := r.pool.QueryRow(ctx, `
		INSERT INTO call_events (phone_number, customer_name, notes, source, status, direction, external_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+callEventColumns+`
	`, params.PhoneNumber, params.CustomerName, params.Notes, params.Source,
		params.Status, params.Direction, params.ExternalID).Scan(
		&event.ID, &event.PhoneNumber, &event.CustomerName, &event.Notes,
		&event.Source, &event.Status, &event.Direction, &event.ExternalID,
		&event.IsProcessed, &event.ProcessedAction, &event.CreatedAt, &event.ProcessedAt,
	)
	return event, err
}

// NextUnprocessed returns at most one unprocessed call event, most recent
// first. Most-recent-first means older events can starve under sustained
// load; the source system behaves this way and it is preserved here.
func (r *Repository) NextUnprocessed(ctx context.Context) (*CallEvent, error) {
	var event CallEvent
	err := r.pool.QueryRow(ctx, `
		SELECT `+callEventColumns+`
		FROM call_events
		WHERE is_processed = false
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(
		&event.ID, &event.PhoneNumber, &event.CustomerName, &event.Notes,
		&event.Source, &event.Status, &event.Direction, &event.ExternalID,
		&event.IsProcessed, &event.ProcessedAction, &event.CreatedAt, &event.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// MarkProcessed flips the event to processed with an annotation describing
// the outcome ("bridged" or "skipped:<status>"). Once marked, the event is
// never read again by the bridge.
func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID, action string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE call_events
		SET is_processed = true, processed_action = $2, processed_at = now()
		WHERE id = $1
	`, id, action)
	return err
}
